package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Error taxonomy shared by both ends of a session. Match with errors.Is.
var (
	// ErrTransport is a read or write failure on the byte stream. Fatal to
	// the session.
	ErrTransport = errors.New("transport error")
	// ErrProtocolViolation is a malformed or truncated message. Fatal to the
	// session.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrFileNotFound means the requested name is not in the catalog.
	ErrFileNotFound = errors.New("file not found in catalog")
	// ErrLocalIO means a local file could not be opened, created or written.
	ErrLocalIO = errors.New("local i/o error")
	// ErrCancelled is returned when a cancellation was observed at a chunk
	// or file boundary.
	ErrCancelled = errors.New("transfer cancelled")
)

func violation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}

// readFull reads exactly len(buf) bytes. A stream that ends early is a
// protocol violation (io.EOF stays in the chain so callers can tell a clean
// hang-up); anything else is a transport error.
func readFull(r io.Reader, buf []byte, what string) error {
	n, err := io.ReadFull(r, buf)
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: stream ended reading %s (%d of %d bytes): %w", ErrProtocolViolation, what, n, len(buf), err)
	}
	return fmt.Errorf("%w: reading %s: %w", ErrTransport, what, err)
}

func writeAll(w io.Writer, buf []byte, what string) error {
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrTransport, what, err)
	}
	return nil
}

// Flush flushes a buffered writer, classifying the failure as a transport
// error.
func Flush(w interface{ Flush() error }) error {
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush: %w", ErrTransport, err)
	}
	return nil
}

// Cancelled wraps the context error in ErrCancelled.
func Cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
