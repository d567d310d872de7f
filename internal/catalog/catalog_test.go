package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jaywantadh/filecast/internal/compressor"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidEntries(t *testing.T) {
	cases := map[string][]Entry{
		"empty name": {{Name: "", Size: 1}},
		"nul":        {{Name: "a\x00b", Size: 1}},
		"duplicate":  {{Name: "a", Size: 1}, {Name: "a", Size: 2}},
	}
	for name, entries := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(entries)
			require.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestLookupAndOrder(t *testing.T) {
	cat, err := New([]Entry{{"b.bin", 2048}, {"a.txt", 10}})
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())
	require.Equal(t, "b.bin", cat.At(0).Name)
	require.Equal(t, uint64(2058), cat.TotalSize())

	e, ok := cat.Lookup("a.txt")
	require.True(t, ok)
	require.Equal(t, uint64(10), e.Size)
	_, ok = cat.Lookup("A.txt")
	require.False(t, ok)

	entries := cat.Entries()
	entries[0].Name = "mutated"
	require.Equal(t, "b.bin", cat.At(0).Name)
}

func TestParseListing(t *testing.T) {
	listing := `
# name size
a.txt 10B
b.bin 2 KiB
c.iso 1.5GB
raw.dat 4096
`
	cat, err := ParseListing(strings.NewReader(listing))
	require.NoError(t, err)
	require.Equal(t, []Entry{
		{"a.txt", 10},
		{"b.bin", 2048},
		{"c.iso", 1500000000},
		{"raw.dat", 4096},
	}, cat.Entries())
}

func TestParseListingErrors(t *testing.T) {
	_, err := ParseListing(strings.NewReader("lonely\n"))
	require.Error(t, err)

	_, err = ParseListing(strings.NewReader("a.txt lots\n"))
	require.Error(t, err)

	_, err = ParseListing(strings.NewReader("a.txt 1\na.txt 2\n"))
	require.ErrorIs(t, err, ErrInvalidEntry)
}

func TestLoadListingCompressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "files.txt")
	require.NoError(t, os.WriteFile(plain, []byte("a.txt 10B\nb.bin 2KiB\n"), 0644))
	packed := plain + compressor.Extension
	require.NoError(t, compressor.CompressFile(plain, packed))

	cat, err := LoadListing(packed)
	require.NoError(t, err)
	require.Equal(t, []Entry{{"a.txt", 10}, {"b.bin", 2048}}, cat.Entries())
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "z.bin"), make([]byte, 1024), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	cat, err := Probe(dir)
	require.NoError(t, err)
	require.Equal(t, []Entry{{"a.txt", 5}, {"empty", 0}, {"z.bin", 1024}}, cat.Entries())
}
