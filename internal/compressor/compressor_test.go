package compressor

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "listing.txt")
	packed := filepath.Join(dir, "listing.txt.lz4")
	content := strings.Repeat("movie.mkv 700MB\n", 200)
	require.NoError(t, os.WriteFile(plain, []byte(content), 0644))
	require.NoError(t, CompressFile(plain, packed))

	rc, err := OpenReader(packed)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, string(got))

	rc2, err := OpenReader(plain)
	require.NoError(t, err)
	defer rc2.Close()
	got, err = io.ReadAll(rc2)
	require.NoError(t, err)
	require.Equal(t, content, string(got))
}

func TestIsCompressed(t *testing.T) {
	require.True(t, IsCompressed("catalog.LZ4"))
	require.False(t, IsCompressed("catalog.txt"))
}
