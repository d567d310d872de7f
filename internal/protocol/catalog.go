package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jaywantadh/filecast/internal/catalog"
)

const (
	nameSeparator = "\x00"
	// cap on up-front allocation; larger catalogs still decode, they just grow.
	maxPrealloc = 4096
)

// WriteCatalog encodes c as: u64 count, count × u64 size, u64 blobLen and the
// NUL-joined name blob.
func WriteCatalog(w io.Writer, c *catalog.Catalog) error {
	entries := c.Entries()

	buf := make([]byte, 0, 16+8*len(entries))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(entries)))
	for _, e := range entries {
		buf = binary.BigEndian.AppendUint64(buf, e.Size)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	blob := strings.Join(names, nameSeparator)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(blob)))
	buf = append(buf, blob...)

	return writeAll(w, buf, "catalog")
}

// ReadCatalog decodes a catalog written by WriteCatalog.
func ReadCatalog(r io.Reader) (*catalog.Catalog, error) {
	var word [8]byte
	if err := readFull(r, word[:], "catalog entry count"); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint64(word[:])

	sizes := make([]uint64, 0, min(count, maxPrealloc))
	for i := uint64(0); i < count; i++ {
		if err := readFull(r, word[:], "catalog entry size"); err != nil {
			return nil, err
		}
		sizes = append(sizes, binary.BigEndian.Uint64(word[:]))
	}

	if err := readFull(r, word[:], "catalog name blob length"); err != nil {
		return nil, err
	}
	blobLen := binary.BigEndian.Uint64(word[:])
	if blobLen > math.MaxInt64 {
		return nil, violation("catalog name blob length %d out of range", blobLen)
	}

	var blob bytes.Buffer
	blob.Grow(int(min(blobLen, maxPrealloc)))
	n, err := io.CopyN(&blob, r, int64(blobLen))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: stream ended reading catalog name blob (%d of %d bytes): %w", ErrProtocolViolation, n, blobLen, err)
		}
		return nil, fmt.Errorf("%w: reading catalog name blob: %w", ErrTransport, err)
	}
	if !utf8.Valid(blob.Bytes()) {
		return nil, violation("catalog names are not valid UTF-8")
	}

	var names []string
	if count > 0 {
		names = strings.Split(blob.String(), nameSeparator)
	} else if blobLen != 0 {
		return nil, violation("empty catalog carries a %d byte name blob", blobLen)
	}
	if uint64(len(names)) != count {
		return nil, violation("catalog declares %d entries but carries %d names", count, len(names))
	}

	entries := make([]catalog.Entry, len(names))
	for i, name := range names {
		entries[i] = catalog.Entry{Name: name, Size: sizes[i]}
	}
	cat, err := catalog.New(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}
	return cat, nil
}
