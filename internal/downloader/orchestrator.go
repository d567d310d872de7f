// Package downloader drives the consumer side: it diffs the want-list
// against the ledger each cycle and fetches what is missing.
package downloader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jaywantadh/filecast/internal/catalog"
	"github.com/jaywantadh/filecast/internal/chunker"
	"github.com/jaywantadh/filecast/internal/protocol"
	"github.com/jaywantadh/filecast/internal/storage"
	"github.com/jaywantadh/filecast/internal/transfer"
	"github.com/jaywantadh/filecast/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Session is the consumer end of one connection. *transfer.Client
// implements it.
type Session interface {
	Catalog() *catalog.Catalog
	Fetch(ctx context.Context, name string, dst io.Writer, progress chunker.ProgressFunc) (int64, error)
	State() transfer.State
	Stop() error
	Close() error
}

// Dialer opens a new session to the producer.
type Dialer func(ctx context.Context) (Session, error)

// Options tunes an Orchestrator.
type Options struct {
	PollInterval time.Duration
	Progress     *transfer.ProgressTracker
	Logger       logrus.FieldLogger
}

// Orchestrator runs the download loop over a single session at a time.
type Orchestrator struct {
	dial     Dialer
	wants    WantList
	ledger   *Ledger
	out      storage.Storage
	poll     time.Duration
	progress *transfer.ProgressTracker
	log      logrus.FieldLogger

	session Session
}

// New creates an orchestrator writing completed files into out.
func New(dial Dialer, wants WantList, ledger *Ledger, out storage.Storage, opts Options) *Orchestrator {
	o := &Orchestrator{
		dial:     dial,
		wants:    wants,
		ledger:   ledger,
		out:      out,
		poll:     opts.PollInterval,
		progress: opts.Progress,
		log:      opts.Logger,
	}
	if o.poll <= 0 {
		o.poll = 2 * time.Second
	}
	if o.log == nil {
		o.log = logging.Logger()
	}
	return o
}

// Run repeats RunCycle every poll interval until ctx is done. Cycle errors
// are logged; the next cycle reconnects if the session was lost. On return
// the session is stopped cleanly when it is still in sync.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := o.RunCycle(ctx); err != nil {
			if errors.Is(err, protocol.ErrCancelled) || ctx.Err() != nil {
				return nil
			}
			o.log.WithError(err).Warn("download cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(o.poll):
		}
	}
}

// RunCycle connects if needed, reloads the want-list and drains the
// resulting queue. Files the producer refuses or this side cannot write are
// skipped; a strict refusal costs a reconnect before the next file.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return protocol.Cancelled(err)
	}
	if err := o.connect(ctx); err != nil {
		return err
	}

	wants, err := o.wants.Load()
	if err != nil {
		return err
	}
	queue := o.ledger.Pending(wants)
	if len(queue) == 0 {
		return nil
	}
	o.log.WithField("queued", len(queue)).Debug("work queue built")

	for _, name := range queue {
		if err := ctx.Err(); err != nil {
			return protocol.Cancelled(err)
		}
		// a strict refusal of the previous file hangs up the session
		if err := o.connect(ctx); err != nil {
			return err
		}
		err := o.download(ctx, name)
		switch {
		case err == nil:
		case errors.Is(err, protocol.ErrCancelled):
			return err
		case errors.Is(err, protocol.ErrFileNotFound), errors.Is(err, protocol.ErrLocalIO):
			o.log.WithError(err).WithField("file", name).Warn("skipping file")
			if o.session.State() == transfer.StateClosed {
				o.session = nil
			}
		default:
			o.log.WithError(err).Warn("session lost; reconnecting next cycle")
			o.session.Close()
			o.session = nil
			return err
		}
	}
	return nil
}

func (o *Orchestrator) connect(ctx context.Context) error {
	if o.session != nil {
		return nil
	}
	s, err := o.dial(ctx)
	if err != nil {
		return err
	}
	if err := o.ledger.Sync(s.Catalog()); err != nil {
		s.Close()
		return err
	}
	o.session = s
	o.log.WithField("entries", s.Catalog().Len()).Info("🤝 connected to producer")
	return nil
}

// download fetches one file from byte 0, hashing it as it streams.
func (o *Orchestrator) download(ctx context.Context, name string) error {
	rec, _ := o.ledger.Record(name)

	dst, err := o.out.Create(name)
	if err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrLocalIO, err)
	}
	hasher := storage.NewHasher()

	var progress chunker.ProgressFunc
	if o.progress != nil {
		o.progress.StartTracking(name, rec.Size)
		progress = func(total int64) { o.progress.UpdateProgress(name, total) }
	}

	n, err := o.session.Fetch(ctx, name, io.MultiWriter(dst, hasher), progress)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %w", protocol.ErrLocalIO, cerr)
	}
	if err == nil {
		if err = o.ledger.MarkDone(name, n, hex.EncodeToString(hasher.Sum(nil))); err != nil {
			err = fmt.Errorf("%w: %w", protocol.ErrLocalIO, err)
		}
	}

	if o.progress != nil {
		switch {
		case err == nil:
			o.progress.Finish(name, transfer.StatusCompleted)
		case errors.Is(err, protocol.ErrCancelled):
			o.progress.Finish(name, transfer.StatusCancelled)
		default:
			o.progress.Finish(name, transfer.StatusFailed)
		}
		o.progress.RemoveTransfer(name)
	} else if err == nil {
		o.log.WithFields(logrus.Fields{"file": name, "bytes": n}).Info("✅ download complete")
	}
	return err
}

// Close ends the current session, sending stop when it is idle.
func (o *Orchestrator) Close() error {
	if o.session == nil {
		return nil
	}
	s := o.session
	o.session = nil
	if s.State() == transfer.StateIdle {
		return s.Stop()
	}
	return s.Close()
}
