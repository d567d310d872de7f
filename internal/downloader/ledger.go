package downloader

import (
	"fmt"
	"sync"

	"github.com/jaywantadh/filecast/internal/catalog"
	"github.com/jaywantadh/filecast/internal/metadata"
	"github.com/jaywantadh/filecast/internal/storage"
	"github.com/jaywantadh/filecast/pkg/logging"
	"github.com/sirupsen/logrus"
)

// Ledger holds one DownloadRecord per catalog entry the consumer has seen.
// Records are only ever added or completed, never removed.
type Ledger struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*metadata.DownloadRecord
	store   *metadata.RecordStore
	out     storage.Storage
	log     logrus.FieldLogger
}

// NewLedger creates a ledger. store may be nil, in which case completion
// state lives only as long as the process.
func NewLedger(store *metadata.RecordStore, out storage.Storage, log logrus.FieldLogger) *Ledger {
	if log == nil {
		log = logging.Logger()
	}
	return &Ledger{
		records: make(map[string]*metadata.DownloadRecord),
		store:   store,
		out:     out,
		log:     log,
	}
}

// Sync adds a record for every catalog entry not yet known. A persisted
// record is restored as done only if its size still matches the catalog and
// the output file is exactly as long as what was received.
func (l *Ledger) Sync(cat *catalog.Catalog) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored := 0
	for _, e := range cat.Entries() {
		if _, ok := l.records[e.Name]; ok {
			continue
		}
		rec := metadata.NewDownloadRecord(e.Name, e.Size)
		if l.store != nil {
			saved, found, err := l.store.GetRecord(e.Name)
			if err != nil {
				return fmt.Errorf("failed to load record %q: %w", e.Name, err)
			}
			if found && l.stillComplete(saved, e) {
				rec = saved
				restored++
			}
		}
		l.records[e.Name] = &rec
		l.order = append(l.order, e.Name)
	}
	l.log.WithFields(logrus.Fields{"records": len(l.order), "restored": restored}).Debug("ledger synced")
	return nil
}

func (l *Ledger) stillComplete(saved metadata.DownloadRecord, e catalog.Entry) bool {
	if !saved.Done || saved.Size != e.Size || l.out == nil {
		return false
	}
	info, err := l.out.Stat(e.Name)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Size() == saved.Bytes
}

// Pending builds the work queue: each want, in order and at most once, that
// names a known record not yet done.
func (l *Ledger) Pending(wants []string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var queue []string
	seen := make(map[string]struct{}, len(wants))
	for _, name := range wants {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		rec, ok := l.records[name]
		if !ok || rec.Done {
			continue
		}
		queue = append(queue, name)
	}
	return queue
}

// Record returns a copy of the record for name.
func (l *Ledger) Record(name string) (metadata.DownloadRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[name]
	if !ok {
		return metadata.DownloadRecord{}, false
	}
	return *rec, true
}

// MarkDone completes the record for name and persists it.
func (l *Ledger) MarkDone(name string, bytes int64, digest string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[name]
	if !ok {
		return fmt.Errorf("no record for %q", name)
	}
	rec.Complete(bytes, digest)
	if l.store == nil {
		return nil
	}
	if err := l.store.PutRecord(*rec); err != nil {
		return fmt.Errorf("failed to persist record %q: %w", name, err)
	}
	return nil
}

// Records returns copies of all records in catalog order.
func (l *Ledger) Records() []metadata.DownloadRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]metadata.DownloadRecord, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, *l.records[name])
	}
	return out
}
