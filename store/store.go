// Package store keeps a history of cell scans in BadgerDB so earlier
// results can be compared after the modem has been re-locked.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"i4.energy/across/atbridge/decode"
)

const (
	DefaultRetention = 90 * 24 * time.Hour

	keyPrefix  = "scan:"
	gcInterval = 15 * time.Minute
)

// ErrNoScans is returned by Latest when nothing has been recorded.
var ErrNoScans = errors.New("no scans recorded")

// Scan is one recorded cell scan.
type Scan struct {
	Taken time.Time               `json:"taken"`
	Cells []decode.CellScanRecord `json:"cells"`
}

// Config configures the history store.
type Config struct {
	// Dir is the database directory; empty keeps the history in memory
	Dir string
	// Retention is how long a scan is kept
	Retention time.Duration
	Logger    *slog.Logger
}

// Store is the scan history.
type Store struct {
	db        *badger.DB
	retention time.Duration
	logger    *slog.Logger
	stopGC    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the history database.
func Open(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}

	var opts badger.Options
	if cfg.Dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.
		WithNumVersionsToKeep(1).
		WithLoggingLevel(badger.WARNING).
		WithCompression(0)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{
		db:        db,
		retention: cfg.Retention,
		logger:    cfg.Logger,
		stopGC:    make(chan struct{}),
	}
	if cfg.Dir != "" {
		go s.runGC()
	}
	return s, nil
}

// key orders scans by time: the prefix followed by big-endian nanoseconds.
func key(taken time.Time) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], uint64(taken.UnixNano()))
	return k
}

// Record stores the cells of a scan taken at the given time.
func (s *Store) Record(taken time.Time, cells []decode.CellScanRecord) error {
	data, err := json.Marshal(Scan{Taken: taken.UTC(), Cells: cells})
	if err != nil {
		return fmt.Errorf("marshal scan: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key(taken), data).WithTTL(s.retention))
	})
	if err != nil {
		return fmt.Errorf("write scan: %w", err)
	}

	s.logger.Debug("Recorded cell scan", "taken", taken, "cells", len(cells))
	return nil
}

// List returns up to limit scans, newest first. A limit of zero or less
// returns every scan.
func (s *Store) List(limit int) ([]Scan, error) {
	var scans []Scan

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the last key not past the seek key.
		seek := append([]byte(keyPrefix), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(scans) == limit {
				break
			}
			var scan Scan
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &scan)
			}); err != nil {
				return fmt.Errorf("decode scan %x: %w", it.Item().Key(), err)
			}
			scans = append(scans, scan)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	return scans, nil
}

// Latest returns the most recent scan.
func (s *Store) Latest() (Scan, error) {
	scans, err := s.List(1)
	if err != nil {
		return Scan{}, err
	}
	if len(scans) == 0 {
		return Scan{}, ErrNoScans
	}
	return scans[0], nil
}

// Close stops background maintenance and closes the database. Later
// calls return the first result.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopGC)
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

func (s *Store) runGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Warn("History GC failed", "error", err)
					}
					break
				}
			}
		case <-s.stopGC:
			return
		}
	}
}
