// Package storage defines the flat-file store abstraction.
package storage

import "time"

// FileInfo describes one storage file.
type FileInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for store file operations. Paths are relative to
// the store root and use forward slashes.
type Provider interface {
	// List returns metadata for every storage file (.yaml, .yml, .md) under dir.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a file is present at path.
	Exists(path string) (bool, error)
}
