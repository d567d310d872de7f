package chunker

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/jaywantadh/filecast/internal/protocol"
	"github.com/stretchr/testify/require"
)

func randomBytes(n int) []byte {
	data := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(data)
	return data
}

// decodeAll splits an encoded stream back into chunks.
func decodeAll(t *testing.T, stream []byte) []protocol.Chunk {
	t.Helper()
	r := bytes.NewReader(stream)
	var chunks []protocol.Chunk
	for r.Len() > 0 {
		c, err := protocol.ReadChunk(r, make([]byte, protocol.FixedChunkSize))
		require.NoError(t, err)
		chunks = append(chunks, c)
	}
	return chunks
}

func TestSendReceiveRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 1023, 1024, 1025, 2048, 5000, 64 * 1024} {
		data := randomBytes(size)

		var wire bytes.Buffer
		sent, err := Send(&wire, bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, int64(size), sent)

		chunks := decodeAll(t, wire.Bytes())
		require.Len(t, chunks, size/protocol.FixedChunkSize+1, "size %d", size)
		finals := 0
		for i, c := range chunks {
			if c.Final {
				finals++
				require.Equal(t, len(chunks)-1, i, "final chunk must be last (size %d)", size)
			}
		}
		require.Equal(t, 1, finals, "size %d", size)

		var out bytes.Buffer
		got, err := Receive(context.Background(), bytes.NewReader(wire.Bytes()), &out, nil)
		require.NoError(t, err)
		require.Equal(t, int64(size), got)
		require.Equal(t, data, out.Bytes())
	}
}

func TestExactMultipleEndsWithEmptyFinalChunk(t *testing.T) {
	var wire bytes.Buffer
	_, err := Send(&wire, bytes.NewReader(randomBytes(protocol.FixedChunkSize)))
	require.NoError(t, err)

	chunks := decodeAll(t, wire.Bytes())
	require.Len(t, chunks, 2)
	require.False(t, chunks[0].Final)
	require.True(t, chunks[1].Final)
	require.Empty(t, chunks[1].Payload)
	require.Equal(t, []byte{0x80, 0x00}, wire.Bytes()[wire.Len()-2:])
}

func TestReceiveReportsProgress(t *testing.T) {
	var wire bytes.Buffer
	_, err := Send(&wire, bytes.NewReader(randomBytes(2500)))
	require.NoError(t, err)

	var seen []int64
	_, err = Receive(context.Background(), &wire, &bytes.Buffer{}, func(total int64) {
		seen = append(seen, total)
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1024, 2048, 2500}, seen)
}

func TestReceiveStopsAtChunkBoundaryOnCancel(t *testing.T) {
	data := randomBytes(5 * protocol.FixedChunkSize)
	var wire bytes.Buffer
	_, err := Send(&wire, bytes.NewReader(data))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	got, err := Receive(ctx, &wire, &out, func(total int64) {
		if total == 2*protocol.FixedChunkSize {
			cancel()
		}
	})
	require.ErrorIs(t, err, protocol.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int64(2*protocol.FixedChunkSize), got)
	require.Equal(t, data[:2*protocol.FixedChunkSize], out.Bytes())
}

type brokenWriter struct{ after int }

func (w *brokenWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestReceiveDrainsStreamWhenDestinationFails(t *testing.T) {
	var wire bytes.Buffer
	_, err := Send(&wire, bytes.NewReader(randomBytes(4000)))
	require.NoError(t, err)
	// a second message queued behind the file must still be readable
	require.NoError(t, protocol.WriteControl(&wire, protocol.ControlStop))

	got, err := Receive(context.Background(), &wire, &brokenWriter{after: 1}, nil)
	require.ErrorIs(t, err, protocol.ErrLocalIO)
	require.Equal(t, int64(protocol.FixedChunkSize), got)

	ctl, err := protocol.ReadControl(&wire)
	require.NoError(t, err)
	require.Equal(t, protocol.ControlStop, ctl)
}

type failingSource struct{}

func (failingSource) Read([]byte) (int, error) { return 0, errors.New("bad sector") }

func TestSendSourceFailure(t *testing.T) {
	var wire bytes.Buffer
	_, err := Send(&wire, failingSource{})
	require.ErrorIs(t, err, protocol.ErrLocalIO)
	require.Zero(t, wire.Len())
}
