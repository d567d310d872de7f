package compressor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

// Extension marks lz4-framed files.
const Extension = ".lz4"

func IsCompressed(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), Extension)
}

type readCloser struct {
	io.Reader
	closer io.Closer
}

func (rc readCloser) Close() error {
	return rc.closer.Close()
}

// OpenReader opens filePath for reading, transparently decoding the lz4
// frame when the file carries the .lz4 extension.
func OpenReader(filePath string) (io.ReadCloser, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	if !IsCompressed(filePath) {
		return f, nil
	}
	return readCloser{Reader: lz4.NewReader(f), closer: f}, nil
}

// CompressFile writes an lz4-framed copy of srcPath to dstPath.
func CompressFile(srcPath, dstPath string) error {
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create compressed file: %w", err)
	}
	defer out.Close()

	writer := lz4.NewWriter(out)
	if _, err := io.Copy(writer, in); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	return out.Close()
}
