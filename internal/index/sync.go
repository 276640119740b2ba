package index

import (
	"log/slog"

	"github.com/starford/onto/internal/loader"
)

// Sync brings the projection up to date with snap. It is a no-op when the
// stored file checksums already match the snapshot's files; otherwise the
// projection is rebuilt. The returned bool reports whether a rebuild ran.
func Sync(db GraphIndex, snap *loader.Snapshot, logger *slog.Logger) (bool, error) {
	checksums, err := db.AllChecksums()
	if err != nil {
		return false, err
	}

	if len(checksums) == len(snap.Files) {
		fresh := true
		for _, f := range snap.Files {
			if checksums[f.Path] != f.Checksum {
				fresh = false
				break
			}
		}
		if fresh {
			logger.Debug("sync: index up to date", slog.Int("files", len(snap.Files)))
			return false, nil
		}
	}

	if err := db.Replace(snap.Graph, snap.Files); err != nil {
		return false, err
	}
	logger.Debug("sync: index rebuilt",
		slog.Int("files", len(snap.Files)),
		slog.Int("instances", len(snap.Graph.Instances)),
		slog.Int("edges", len(snap.Graph.Edges)))
	return true, nil
}
