package chunker

import (
	"context"
	"fmt"
	"io"

	"github.com/jaywantadh/filecast/internal/protocol"
)

// ProgressFunc receives the running byte count after each chunk.
type ProgressFunc func(total int64)

// Send streams src as a sequence of chunks. Every read fills a full
// FixedChunkSize block unless src is exhausted; the first short read
// (including an empty one) becomes the final chunk, so exactly one final
// chunk is always written and it is the last.
func Send(w io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, protocol.FixedChunkSize)
	var sent int64
	for {
		n, err := io.ReadFull(src, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return sent, fmt.Errorf("%w: failed to read chunk: %w", protocol.ErrLocalIO, err)
		}

		chunk := protocol.NewChunk(buf[:n])
		if werr := protocol.WriteChunk(w, chunk); werr != nil {
			return sent, werr
		}
		sent += int64(n)

		if chunk.Final {
			return sent, nil
		}
	}
}

// Receive decodes chunks from r and appends them to dst in arrival order
// until a final chunk has been written. ctx is checked before every chunk,
// so a cancellation always lands on a chunk boundary.
//
// A failing dst does not stop the stream: the remaining chunks are read and
// discarded so the session stays in sync, then ErrLocalIO is returned.
func Receive(ctx context.Context, r io.Reader, dst io.Writer, progress ProgressFunc) (int64, error) {
	buf := make([]byte, protocol.FixedChunkSize)
	var received int64
	var writeErr error
	for {
		if err := ctx.Err(); err != nil {
			return received, protocol.Cancelled(err)
		}

		chunk, err := protocol.ReadChunk(r, buf)
		if err != nil {
			return received, err
		}

		if writeErr == nil && len(chunk.Payload) > 0 {
			if _, err := dst.Write(chunk.Payload); err != nil {
				writeErr = fmt.Errorf("%w: failed to write chunk: %w", protocol.ErrLocalIO, err)
			}
		}
		if writeErr == nil {
			received += int64(len(chunk.Payload))
			if progress != nil {
				progress(received)
			}
		}

		if chunk.Final {
			return received, writeErr
		}
	}
}
