// Package catalog holds the immutable file catalog a producer advertises at
// the start of every session, plus loaders that build one from a listing
// file or a resource directory.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidEntry is returned when an entry breaks the catalog rules: empty
// name, a name containing NUL, or a duplicate name.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Entry is a single advertised file.
type Entry struct {
	Name string
	Size uint64
}

// Catalog is an ordered, read-only list of entries. Once built it is never
// mutated, so one *Catalog is shared by every connection handler.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// New validates entries and builds a catalog preserving their order.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has an empty name", ErrInvalidEntry, i)
		}
		if strings.IndexByte(e.Name, 0) >= 0 {
			return nil, fmt.Errorf("%w: name %q contains NUL", ErrInvalidEntry, e.Name)
		}
		if _, dup := c.index[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidEntry, e.Name)
		}
		c.index[e.Name] = i
		c.entries[i] = e
	}
	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// At returns the i-th entry in catalog order.
func (c *Catalog) At(i int) Entry {
	return c.entries[i]
}

// Entries returns a copy of the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds an entry by exact name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// TotalSize sums the advertised sizes.
func (c *Catalog) TotalSize() uint64 {
	var total uint64
	for _, e := range c.Entries() {
		total += e.Size
	}
	return total
}
