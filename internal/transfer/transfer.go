// Package transfer implements both ends of a filecast session: the
// producer-side connection handler and the consumer-side client.
package transfer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jaywantadh/filecast/internal/protocol"
)

// ErrSessionClosed is returned when a closed or desynchronised session is
// used again.
var ErrSessionClosed = errors.New("session closed")

// ErrRefused is returned under the strict policy when the producer hangs up
// after a request without sending a chunk, which is how strict producers
// refuse an unknown or unreadable file. The session is closed; the file can
// be skipped after reconnecting.
var ErrRefused = fmt.Errorf("%w: producer closed the session before any chunk", protocol.ErrFileNotFound)

// State is the session state machine position of one side.
type State int

const (
	StateAwaitingCatalog State = iota
	StateIdle
	StateTransferring
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingCatalog:
		return "awaiting-catalog"
	case StateIdle:
		return "idle"
	case StateTransferring:
		return "transferring"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Policy decides what happens when a request cannot be served.
type Policy string

const (
	// PolicyStrict terminates the connection without sending any chunk.
	PolicyStrict Policy = "strict"
	// PolicyReport answers every request with a status byte and keeps the
	// session alive on failure.
	PolicyReport Policy = "report"
)

// ParsePolicy accepts "strict" or "report" (case-insensitive); empty means
// strict.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyStrict, nil
	case PolicyStrict, PolicyReport:
		return p, nil
	}
	return "", fmt.Errorf("unknown not-found policy %q", s)
}

// TransferStatus represents the current status of a transfer
type TransferStatus string

const (
	StatusInProgress TransferStatus = "in_progress"
	StatusCompleted  TransferStatus = "completed"
	StatusFailed     TransferStatus = "failed"
	StatusCancelled  TransferStatus = "cancelled"
)
