package downloader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// WantList yields the filenames the consumer intends to fetch, in priority
// order. It is reloaded every cycle so edits take effect without a restart.
type WantList interface {
	Load() ([]string, error)
}

// FileWantList reads wants from a text file, one per line.
type FileWantList struct {
	Path string
}

// Load reads the file. A missing file is an empty want-list.
func (f FileWantList) Load() ([]string, error) {
	file, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open want-list: %w", err)
	}
	defer file.Close()
	return ParseWantList(file)
}

// ParseWantList takes the first whitespace-delimited token of each line.
// Blank lines contribute nothing.
func ParseWantList(r io.Reader) ([]string, error) {
	var wants []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		wants = append(wants, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read want-list: %w", err)
	}
	return wants, nil
}

// StaticWantList is a fixed want-list.
type StaticWantList []string

func (s StaticWantList) Load() ([]string, error) {
	return s, nil
}
