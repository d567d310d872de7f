package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Control is the byte the consumer sends from the idle state.
type Control byte

const (
	ControlStop     Control = 0x00
	ControlContinue Control = 0x01
)

func (c Control) String() string {
	switch c {
	case ControlStop:
		return "stop"
	case ControlContinue:
		return "continue"
	}
	return fmt.Sprintf("control(0x%02x)", byte(c))
}

// MaxNameLength bounds a requested filename.
const MaxNameLength = 64 << 10

func WriteControl(w io.Writer, c Control) error {
	return writeAll(w, []byte{byte(c)}, "control byte")
}

func ReadControl(r io.Reader) (Control, error) {
	var b [1]byte
	if err := readFull(r, b[:], "control byte"); err != nil {
		return 0, err
	}
	c := Control(b[0])
	if c != ControlStop && c != ControlContinue {
		return 0, violation("unknown control byte 0x%02x", b[0])
	}
	return c, nil
}

// WriteRequest encodes a file request: u64 name length then the raw name.
func WriteRequest(w io.Writer, name string) error {
	if len(name) > MaxNameLength {
		return violation("requested name is %d bytes, limit is %d", len(name), MaxNameLength)
	}
	buf := make([]byte, 0, 8+len(name))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(name)))
	buf = append(buf, name...)
	return writeAll(w, buf, "file request")
}

func ReadRequest(r io.Reader) (string, error) {
	var word [8]byte
	if err := readFull(r, word[:], "request name length"); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(word[:])
	if n > MaxNameLength {
		return "", violation("requested name is %d bytes, limit is %d", n, MaxNameLength)
	}
	name := make([]byte, n)
	if err := readFull(r, name, "request name"); err != nil {
		return "", err
	}
	return string(name), nil
}

// Status is the producer's reply to a request. It is only on the wire when
// both peers run the report policy.
type Status byte

const (
	StatusOK          Status = 0x00
	StatusNotFound    Status = 0x01
	StatusUnavailable Status = 0x02
)

// Err maps a non-OK status onto the error taxonomy.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusNotFound:
		return ErrFileNotFound
	case StatusUnavailable:
		return fmt.Errorf("%w: producer could not open the file", ErrLocalIO)
	}
	return violation("unknown request status 0x%02x", byte(s))
}

func WriteStatus(w io.Writer, s Status) error {
	return writeAll(w, []byte{byte(s)}, "request status")
}

func ReadStatus(r io.Reader) (Status, error) {
	var b [1]byte
	if err := readFull(r, b[:], "request status"); err != nil {
		return 0, err
	}
	s := Status(b[0])
	if s > StatusUnavailable {
		return 0, violation("unknown request status 0x%02x", b[0])
	}
	return s, nil
}
