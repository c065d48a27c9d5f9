// Package storage defines the inbox file-system abstraction.
package storage

import "time"

// FileInfo describes one Markdown file in the inbox.
type FileInfo struct {
	Path      string
	Size      int64
	UpdatedAt time.Time
}

// Provider is the interface for inbox file operations. Paths are relative to
// the inbox root.
type Provider interface {
	// List returns every .md file directly inside dir, sorted by name.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent directories. An
	// existing newPath gets a numeric suffix instead of being replaced; the
	// final path is returned.
	Move(oldPath, newPath string) (string, error)
	// Root returns the absolute inbox directory.
	Root() string
}
