package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const recordPrefix = "record:"

// DownloadRecord is the consumer-side completion state of one catalog entry.
type DownloadRecord struct {
	Name        string `json:"name"`
	Size        uint64 `json:"size"` // advertised catalog size
	Done        bool   `json:"done"`
	Bytes       int64  `json:"bytes"` // bytes actually received
	Digest      string `json:"digest,omitempty"`
	CompletedAt int64  `json:"completed_at,omitempty"` // Unix timestamp
}

// RecordStore wraps BadgerDB for download record persistence.
type RecordStore struct {
	db *badger.DB
}

// OpenRecordStore opens (or creates) a BadgerDB at the given path. An empty
// path opens an in-memory store.
func OpenRecordStore(dbPath string) (*RecordStore, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(nil)
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &RecordStore{db: db}, nil
}

// Close closes the BadgerDB.
func (rs *RecordStore) Close() error {
	return rs.db.Close()
}

// PutRecord stores a download record keyed by name.
func (rs *RecordStore) PutRecord(rec DownloadRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return rs.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordPrefix+rec.Name), val)
	})
}

// GetRecord retrieves a record by name. The bool is false when no record
// was stored.
func (rs *RecordStore) GetRecord(name string) (DownloadRecord, bool, error) {
	var rec DownloadRecord
	err := rs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordPrefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return DownloadRecord{}, false, nil
	}
	if err != nil {
		return DownloadRecord{}, false, err
	}
	return rec, true, nil
}

// ListRecords returns every stored record in key order.
func (rs *RecordStore) ListRecords() ([]DownloadRecord, error) {
	var records []DownloadRecord
	err := rs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(recordPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec DownloadRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// NewDownloadRecord creates an unfinished record for a catalog entry.
func NewDownloadRecord(name string, size uint64) DownloadRecord {
	return DownloadRecord{Name: name, Size: size}
}

// Complete marks the record done with the received byte count and digest.
func (r *DownloadRecord) Complete(bytes int64, digest string) {
	r.Done = true
	r.Bytes = bytes
	r.Digest = digest
	r.CompletedAt = time.Now().Unix()
}
