package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/fraudshield/internal/metrics"
	"github.com/gyaneshwarpardhi/fraudshield/internal/prediction"
	"github.com/gyaneshwarpardhi/fraudshield/internal/traces"
)

var (
	// ErrStorageUnavailable wraps any I/O failure on the backing file.
	ErrStorageUnavailable = errors.New("history storage unavailable")
	// ErrClosed is returned by mutations after Close.
	ErrClosed = errors.New("history store closed")
)

// document is the persisted layout.
type document struct {
	Predictions []prediction.Record `json:"predictions"`
}

// Store is an append-only prediction log kept in a single JSON file.
//
// Insert and Clear are serialised on one writer goroutine. Reads parse the
// file once and work on that snapshot; writes replace the file by rename, so
// a reader never sees a partial document.
type Store struct {
	path   string
	logger *slog.Logger
	writes *writer
	now    func() time.Time

	// corrupt is set while an unreadable file has been reported and not yet
	// overwritten, so the recovery event is logged once.
	corrupt atomic.Bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for saved_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open prepares the backing file and starts the writer. A missing file is
// created empty; an unreadable one is reset to empty.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create dir for %s: %v", ErrStorageUnavailable, path, err)
	}

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) || s.corrupt.Load() {
		if err := s.save(doc); err != nil {
			return nil, err
		}
	}
	metrics.HistoryRecords.Set(float64(len(doc.Predictions)))

	s.writes = newWriter()
	return s, nil
}

// Close stops the writer goroutine. Reads keep working.
func (s *Store) Close() {
	s.writes.stop()
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Insert appends rec with the next sequence number and persists the whole
// document before returning the stored record.
func (s *Store) Insert(ctx context.Context, rec prediction.Record) (prediction.Record, error) {
	_, span := traces.StartSpan(ctx, "history.Insert")
	defer span.End()

	var saved prediction.Record
	err := s.writes.do(ctx, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.TransactionID == "" {
			rec.TransactionID = rec.ID
		}
		rec.SequenceNumber = int64(len(doc.Predictions)) + 1
		rec.SavedAt = prediction.FormatTimestamp(s.now())
		doc.Predictions = append(doc.Predictions, rec)
		if err := s.save(doc); err != nil {
			return err
		}
		saved = rec
		return nil
	})
	if err != nil {
		traces.RecordError(span, err)
		return prediction.Record{}, err
	}
	span.SetAttributes(traces.SequenceNumber(saved.SequenceNumber))
	return saved, nil
}

// Clear empties the store. The next Insert gets sequence number 1.
func (s *Store) Clear(ctx context.Context) error {
	return s.writes.do(ctx, func() error {
		if err := s.save(document{Predictions: []prediction.Record{}}); err != nil {
			return err
		}
		s.logger.Info("prediction history cleared", "path", s.path)
		return nil
	})
}

// ListAll returns every record, newest timestamp first. Records with equal
// timestamps keep insertion order; an empty timestamp sorts last.
func (s *Store) ListAll(ctx context.Context) ([]prediction.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	recs := doc.Predictions
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Timestamp > recs[j].Timestamp
	})
	return recs, nil
}

// load reads the current snapshot. Absent or unparseable files read as empty.
func (s *Store) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return document{Predictions: []prediction.Record{}}, nil
	}
	if err != nil {
		return document{}, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, s.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		if s.corrupt.CompareAndSwap(false, true) {
			metrics.HistoryCorruptRecovered.Inc()
			s.logger.Warn("history file unreadable; treating as empty, prior records will be discarded on next write",
				"path", s.path, "err", err)
		}
		return document{Predictions: []prediction.Record{}}, nil
	}
	if doc.Predictions == nil {
		doc.Predictions = []prediction.Record{}
	}
	return doc, nil
}

// save replaces the file atomically with doc.
func (s *Store) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrStorageUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: sync %s: %v", ErrStorageUnavailable, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: close %s: %v", ErrStorageUnavailable, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: replace %s: %v", ErrStorageUnavailable, s.path, err)
	}

	s.corrupt.Store(false)
	metrics.HistoryRecords.Set(float64(len(doc.Predictions)))
	return nil
}
