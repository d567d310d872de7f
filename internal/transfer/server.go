package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/jaywantadh/filecast/internal/catalog"
	"github.com/jaywantadh/filecast/internal/chunker"
	"github.com/jaywantadh/filecast/internal/protocol"
	"github.com/jaywantadh/filecast/internal/storage"
	"github.com/jaywantadh/filecast/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Server is the producer: it advertises one catalog and serves one session
// per accepted connection, each on its own goroutine.
type Server struct {
	catalog *catalog.Catalog
	files   storage.Storage
	policy  Policy
	log     logrus.FieldLogger
	wg      sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerPolicy sets the not-found policy; it must match the consumers'.
func WithServerPolicy(p Policy) ServerOption {
	return func(s *Server) { s.policy = p }
}

// WithServerLogger sets the logger.
func WithServerLogger(l logrus.FieldLogger) ServerOption {
	return func(s *Server) { s.log = l }
}

// NewServer creates a producer serving cat from the files in store.
func NewServer(cat *catalog.Catalog, files storage.Storage, opts ...ServerOption) *Server {
	s := &Server{
		catalog: cat,
		files:   files,
		policy:  PolicyStrict,
		log:     logging.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP listener: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes the
// listener and every live session and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	defer s.wg.Wait()

	s.log.WithFields(logrus.Fields{
		"addr":    ln.Addr().String(),
		"entries": s.catalog.Len(),
		"policy":  s.policy,
	}).Info("🌐 producer listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.WithError(err).Warn("❌ error accepting connection")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	log := s.log.WithFields(logrus.Fields{
		"session": uuid.NewString(),
		"remote":  conn.RemoteAddr().String(),
	})
	log.Info("🤝 connection established")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err := s.Handle(conn, log)
	switch {
	case err == nil:
		log.Info("🔌 session stopped by consumer")
	case ctx.Err() != nil:
		log.Info("🔌 session closed by shutdown")
	case errors.Is(err, protocol.ErrFileNotFound), errors.Is(err, protocol.ErrLocalIO):
		log.WithError(err).Warn("session terminated")
	case errors.Is(err, io.EOF):
		log.Info("🔌 consumer disconnected without stop")
	default:
		log.WithError(err).Error("session failed")
	}
}

// Handle runs one producer session over conn and closes it on return. It
// returns nil when the consumer sends stop.
func (s *Server) Handle(conn io.ReadWriteCloser, log logrus.FieldLogger) error {
	defer conn.Close()
	if log == nil {
		log = s.log
	}

	r := bufio.NewReader(conn)
	w := bufio.NewWriterSize(conn, 32*1024)

	if err := protocol.WriteCatalog(w, s.catalog); err != nil {
		return err
	}
	if err := protocol.Flush(w); err != nil {
		return err
	}

	for {
		ctl, err := protocol.ReadControl(r)
		if err != nil {
			return err
		}
		if ctl == protocol.ControlStop {
			return nil
		}

		name, err := protocol.ReadRequest(r)
		if err != nil {
			return err
		}
		if err := s.serveFile(w, name, log.WithField("file", name)); err != nil {
			return err
		}
	}
}

// serveFile answers one request. A returned error ends the session.
func (s *Server) serveFile(w *bufio.Writer, name string, log logrus.FieldLogger) error {
	entry, ok := s.catalog.Lookup(name)
	if !ok {
		return s.refuse(w, protocol.StatusNotFound, fmt.Errorf("%w: %q", protocol.ErrFileNotFound, name), log)
	}

	src, err := s.files.Get(entry.Name)
	if err != nil {
		return s.refuse(w, protocol.StatusUnavailable, fmt.Errorf("%w: %w", protocol.ErrLocalIO, err), log)
	}
	defer src.Close()

	if s.policy == PolicyReport {
		if err := protocol.WriteStatus(w, protocol.StatusOK); err != nil {
			return err
		}
	}

	log.WithField("size", entry.Size).Debug("📤 streaming file")
	sent, err := chunker.Send(w, src)
	if err != nil {
		// chunks already on the wire; the consumer cannot resync
		return err
	}
	if err := protocol.Flush(w); err != nil {
		return err
	}

	entryLog := log.WithField("bytes", sent)
	if uint64(sent) != entry.Size {
		entryLog = entryLog.WithField("advertised", entry.Size)
	}
	entryLog.Info("✅ file sent")
	return nil
}

// refuse applies the not-found policy: strict ends the session, report
// tells the consumer and keeps going.
func (s *Server) refuse(w *bufio.Writer, status protocol.Status, cause error, log logrus.FieldLogger) error {
	if s.policy != PolicyReport {
		return cause
	}
	log.WithError(cause).Warn("request refused")
	if err := protocol.WriteStatus(w, status); err != nil {
		return err
	}
	return protocol.Flush(w)
}
