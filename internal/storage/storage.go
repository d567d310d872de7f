package storage

import (
	"errors"
	"io"
	"os"
)

// ErrInvalidName is returned for names that would escape the storage root.
var ErrInvalidName = errors.New("invalid file name")

// Storage resolves catalog names to files under one directory.
type Storage interface {
	// Get opens a stored file for reading.
	Get(name string) (io.ReadCloser, error)
	// Create truncates or creates a file for writing.
	Create(name string) (io.WriteCloser, error)
	// Stat returns file info for a stored name.
	Stat(name string) (os.FileInfo, error)
	// GetPath returns the file path for a given name.
	GetPath(name string) (string, error)
}
