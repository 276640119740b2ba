package index

import (
	"github.com/starford/onto/internal/model"
	"github.com/starford/onto/internal/storage"
)

// GraphIndex defines the projection operations the service depends on.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type GraphIndex interface {
	Replace(g *model.Graph, files []storage.FileInfo) error
	AllChecksums() (map[string]string, error)
	GetInstance(id string) (*InstanceRow, error)
	ListInstances(class string, limit, offset int) ([]InstanceRow, int, error)
	Outgoing(id string) ([]EdgeRow, error)
	Backlinks(id string) ([]EdgeRow, error)
	ClassCounts() ([]ClassCount, error)
	Close() error
}

// Verify *DB satisfies GraphIndex at compile time.
var _ GraphIndex = (*DB)(nil)
