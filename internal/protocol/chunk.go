package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FixedChunkSize is the payload size of every non-final chunk. The final
// chunk's length must fit in finalLenMask, so changing this constant means
// widening the header.
const FixedChunkSize = 1024

const (
	finalFlag    uint16 = 1 << 15
	finalLenMask uint16 = 0x3FF
)

// Chunk is one block of file data. Final is set iff the payload is shorter
// than FixedChunkSize; a file whose length is a multiple of FixedChunkSize
// ends with an empty final chunk.
type Chunk struct {
	Payload []byte
	Final   bool
}

// NewChunk tags payload as final when it is short.
func NewChunk(payload []byte) Chunk {
	return Chunk{Payload: payload, Final: len(payload) < FixedChunkSize}
}

// WriteChunk encodes a u16 header (bit 15 = final, low bits = final length)
// followed by the payload.
func WriteChunk(w io.Writer, c Chunk) error {
	n := len(c.Payload)
	var header uint16
	switch {
	case c.Final && n <= int(finalLenMask):
		header = finalFlag | uint16(n)
	case !c.Final && n == FixedChunkSize:
		header = 0
	default:
		return fmt.Errorf("%w: cannot encode %d byte chunk with final=%t", ErrProtocolViolation, n, c.Final)
	}

	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], header)
	if err := writeAll(w, hdr[:], "chunk header"); err != nil {
		return err
	}
	return writeAll(w, c.Payload, "chunk payload")
}

// ReadChunk decodes one chunk into buf, which must hold FixedChunkSize
// bytes. The returned payload aliases buf.
//
// A final header with any of bits 10-14 set is rejected as a protocol
// violation. Peers that mask the length with 0x3FF would accept such a
// header; this reader does not guess which bits were meant.
func ReadChunk(r io.Reader, buf []byte) (Chunk, error) {
	if len(buf) < FixedChunkSize {
		return Chunk{}, fmt.Errorf("chunk buffer too small: %d bytes", len(buf))
	}

	var hdr [2]byte
	if err := readFull(r, hdr[:], "chunk header"); err != nil {
		return Chunk{}, err
	}
	header := binary.BigEndian.Uint16(hdr[:])

	final := header&finalFlag != 0
	n := FixedChunkSize
	if final {
		length := header &^ finalFlag
		if length > finalLenMask {
			return Chunk{}, violation("final chunk length %d exceeds %d", length, finalLenMask)
		}
		n = int(length)
	}

	payload := buf[:n]
	if err := readFull(r, payload, "chunk payload"); err != nil {
		return Chunk{}, err
	}
	return Chunk{Payload: payload, Final: final}, nil
}
