// Package recorder keeps the append-only log of completed orchestration
// records and exports it on demand.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mpataki/arena/internal/models"
)

// ErrPersist wraps every failure to write the log to its destination.
var ErrPersist = errors.New("failed to persist run log")

// Exporter receives a full snapshot of the log and replaces whatever it
// held before.
type Exporter interface {
	ExportRecords(ctx context.Context, records []models.Record) error
}

// Recorder is a concurrency-safe in-memory run log. Records are kept in
// append order and never modified once appended: Append stores a deep
// copy and Records hands out deep copies.
type Recorder struct {
	mu            sync.Mutex
	records       []models.Record
	lastTimestamp float64
}

func New() *Recorder {
	return &Recorder{}
}

// Append commits r to the log. A battle timestamp earlier than the last
// one committed is raised to it so timestamps never go backwards.
func (r *Recorder) Append(rec models.Record) {
	if rec == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := rec.(*models.BattleRecord); ok {
		if b.Timestamp < r.lastTimestamp {
			b.Timestamp = r.lastTimestamp
		}
		r.lastTimestamp = b.Timestamp
	}
	r.records = append(r.records, models.CloneRecord(rec))
}

// Records returns a point-in-time deep copy of the log. Changing the
// returned records does not affect the log.
func (r *Recorder) Records() []models.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Record, len(r.records))
	for i, rec := range r.records {
		out[i] = models.CloneRecord(rec)
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Persist writes the whole log to path as a JSON array, replacing any
// previous file. The log itself is untouched on failure, so the call can
// be retried.
func (r *Recorder) Persist(path string) error {
	data, err := Marshal(r.Records())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// PersistTo hands the whole log to an exporter.
func (r *Recorder) PersistTo(ctx context.Context, exp Exporter) error {
	if err := exp.ExportRecords(ctx, r.Records()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Marshal encodes records in the persisted file format.
func Marshal(records []models.Record) ([]byte, error) {
	entries := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		data, err := models.EncodeRecord(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, data)
	}
	return json.MarshalIndent(entries, "", "  ")
}

// Load reads a file written by Persist.
func Load(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run log: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse run log: %w", err)
	}

	records := make([]models.Record, 0, len(entries))
	for i, entry := range entries {
		rec, err := models.DecodeRecord(entry)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
