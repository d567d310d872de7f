package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/jaywantadh/filecast/internal/catalog"
	"github.com/jaywantadh/filecast/internal/chunker"
	"github.com/jaywantadh/filecast/internal/protocol"
	"github.com/jaywantadh/filecast/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Client is the consumer side of one session. It is not safe for
// concurrent use; a session serves one file at a time.
type Client struct {
	conn    io.ReadWriteCloser
	r       *bufio.Reader
	w       *bufio.Writer
	catalog *catalog.Catalog
	policy  Policy
	state   State
	log     logrus.FieldLogger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientPolicy sets the not-found policy; it must match the producer's.
func WithClientPolicy(p Policy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithClientLogger sets the logger.
func WithClientLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// Dial connects to a producer and receives its catalog.
func Dial(ctx context.Context, addr string, opts ...ClientOption) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to %s: %w", protocol.ErrTransport, addr, err)
	}
	return NewClient(conn, opts...)
}

// NewClient starts a session over an established connection. It blocks
// until the catalog has been received; on failure conn is closed.
func NewClient(conn io.ReadWriteCloser, opts ...ClientOption) (*Client, error) {
	c := &Client{
		conn:   conn,
		r:      bufio.NewReaderSize(conn, 32*1024),
		w:      bufio.NewWriter(conn),
		policy: PolicyStrict,
		state:  StateAwaitingCatalog,
		log:    logging.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	cat, err := protocol.ReadCatalog(c.r)
	if err != nil {
		c.abort()
		return nil, fmt.Errorf("failed to receive catalog: %w", err)
	}
	c.catalog = cat
	c.state = StateIdle
	c.log.WithField("entries", cat.Len()).Debug("catalog received")
	return c, nil
}

// Catalog returns the producer's catalog.
func (c *Client) Catalog() *catalog.Catalog {
	return c.catalog
}

// State returns the current session state.
func (c *Client) State() State {
	return c.state
}

// Fetch requests name and streams its chunks into dst, returning the byte
// count received. An empty name is a no-op that never touches the wire.
//
// Failures that keep the stream in sync (a reported not-found or
// unavailable file, a failing dst) leave the session idle. A strict
// producer's refusal returns ErrRefused with the session closed. Anything
// else, including a mid-file cancellation, closes the session.
func (c *Client) Fetch(ctx context.Context, name string, dst io.Writer, progress chunker.ProgressFunc) (int64, error) {
	if name == "" {
		return 0, nil
	}
	if c.state != StateIdle {
		return 0, fmt.Errorf("%w: cannot request %q while %s", ErrSessionClosed, name, c.state)
	}
	if err := ctx.Err(); err != nil {
		return 0, protocol.Cancelled(err)
	}

	if err := c.sendRequest(name); err != nil {
		c.abort()
		return 0, err
	}

	if c.policy == PolicyReport {
		status, err := protocol.ReadStatus(c.r)
		if err != nil {
			c.abort()
			return 0, fmt.Errorf("request %q: %w", name, err)
		}
		if err := status.Err(); err != nil {
			return 0, fmt.Errorf("request %q: %w", name, err)
		}
	}

	c.state = StateTransferring
	n, err := chunker.Receive(ctx, c.r, dst, progress)
	switch {
	case err == nil:
		c.state = StateIdle
		return n, nil
	case errors.Is(err, protocol.ErrLocalIO):
		// Receive drained the stream up to the final chunk.
		c.state = StateIdle
		return n, fmt.Errorf("request %q: %w", name, err)
	case n == 0 && errors.Is(err, io.EOF) && c.policy == PolicyStrict:
		c.abort()
		return 0, fmt.Errorf("request %q: %w: %w", name, ErrRefused, err)
	default:
		c.abort()
		return n, fmt.Errorf("request %q: %w", name, err)
	}
}

func (c *Client) sendRequest(name string) error {
	if err := protocol.WriteControl(c.w, protocol.ControlContinue); err != nil {
		return err
	}
	if err := protocol.WriteRequest(c.w, name); err != nil {
		return err
	}
	return protocol.Flush(c.w)
}

// Stop ends an idle session with the stop control byte and closes the
// connection. A session that is not idle is closed without the stop byte.
func (c *Client) Stop() error {
	switch c.state {
	case StateClosed:
		return nil
	case StateIdle:
	default:
		return c.abort()
	}

	werr := protocol.WriteControl(c.w, protocol.ControlStop)
	if werr == nil {
		werr = protocol.Flush(c.w)
	}
	cerr := c.abort()
	if werr != nil {
		return werr
	}
	return cerr
}

// Close drops the connection without notifying the producer.
func (c *Client) Close() error {
	return c.abort()
}

func (c *Client) abort() error {
	if c.state == StateClosed {
		return nil
	}
	c.state = StateClosed
	return c.conn.Close()
}
