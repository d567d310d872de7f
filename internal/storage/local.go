package storage

import (
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// LocalStorage implements the Storage interface for the local filesystem.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// GetPath maps a catalog name to a path below the base directory. Absolute
// names and names climbing out with ".." are rejected.
func (s *LocalStorage) GetPath(name string) (string, error) {
	rel := filepath.FromSlash(name)
	if name == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.basePath, rel), nil
}

// Get opens a stored file.
func (s *LocalStorage) Get(name string) (io.ReadCloser, error) {
	filePath, err := s.GetPath(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", name)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Create truncates (or creates) the file for name, making parent
// directories as needed.
func (s *LocalStorage) Create(name string) (io.WriteCloser, error) {
	filePath, err := s.GetPath(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

// Stat returns file info for name.
func (s *LocalStorage) Stat(name string) (os.FileInfo, error) {
	filePath, err := s.GetPath(name)
	if err != nil {
		return nil, err
	}
	return os.Stat(filePath)
}

// NewHasher returns the BLAKE2b-256 hash used to fingerprint completed
// downloads.
func NewHasher() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	return h
}
