package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jaywantadh/filecast/internal/compressor"
)

// LoadListing reads a catalog listing file. Listings ending in .lz4 are
// decompressed on the fly.
func LoadListing(path string) (*Catalog, error) {
	rc, err := compressor.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog listing: %w", err)
	}
	defer rc.Close()

	cat, err := ParseListing(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// ParseListing parses "name size" lines. The size accepts the units
// go-humanize understands (B, KB, MB, GB, KiB, ...) or a bare byte count.
// Blank lines and lines starting with # are skipped.
func ParseListing(r io.Reader) (*Catalog, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: invalid syntax %q (want \"name size\")", line, text)
		}
		size, err := humanize.ParseBytes(strings.Join(fields[1:], ""))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid size %q: %v", line, strings.Join(fields[1:], " "), err)
		}
		entries = append(entries, Entry{Name: fields[0], Size: size})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}
	return New(entries)
}

// Probe builds a catalog from the regular files directly inside dir, sorted
// by name, using their on-disk sizes.
func Probe(dir string) (*Catalog, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", filepath.Join(dir, de.Name()), err)
		}
		entries = append(entries, Entry{Name: de.Name(), Size: uint64(info.Size())})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return New(entries)
}
