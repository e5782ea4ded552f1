package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"dida/internal/logging"
	"dida/internal/task"
)

// LegacyKey is the key-value slot the previous generation kept its whole
// state blob under.
const LegacyKey = "task-storage"

type legacyBlob struct {
	State struct {
		Tasks []json.RawMessage `json:"tasks"`
	} `json:"state"`
	Version int `json:"version"`
}

// ReadLegacy returns the raw legacy blob, or ok=false when the slot is empty.
func (s *Store) ReadLegacy(ctx context.Context) (blob []byte, ok bool, err error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	var v string
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?;`, LegacyKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(v), true, nil
}

// WriteLegacy stores blob in the legacy slot, replacing any previous value.
func (s *Store) WriteLegacy(ctx context.Context, blob []byte) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, LegacyKey, string(blob))
	return err
}

// MigrateLegacy imports the legacy blob into the tasks table. It only runs
// while the tasks table is empty, so a store that already holds data is never
// overwritten and a completed import never repeats. Each record is validated
// on its own; invalid ones are logged and skipped. A malformed blob is logged
// and reported as zero imported tasks.
func (s *Store) MigrateLegacy(ctx context.Context) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	blob, ok, err := s.ReadLegacy(ctx)
	if err != nil || !ok {
		return 0, err
	}

	raw, err := decodeLegacy(blob)
	if err != nil {
		logging.Warn("storage", "legacy import skipped: %v", err)
		return 0, nil
	}
	tasks, rejected := task.DecodeRecords(raw)
	for _, rerr := range rejected {
		logging.Warn("storage", "legacy import dropped %v", rerr)
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	if err := s.BulkPut(ctx, tasks); err != nil {
		return 0, fmt.Errorf("legacy import: %w", err)
	}
	logging.Info("storage", "migrated %d tasks from legacy storage", len(tasks))
	return len(tasks), nil
}

// decodeLegacy accepts the blob either as an object or as a JSON string that
// itself holds the object, which is how some writers double-encoded it.
func decodeLegacy(blob []byte) ([]json.RawMessage, error) {
	var inner string
	if err := json.Unmarshal(blob, &inner); err == nil {
		blob = []byte(inner)
	}
	var b legacyBlob
	if err := json.Unmarshal(blob, &b); err != nil {
		return nil, err
	}
	if b.State.Tasks == nil {
		return nil, errors.New("blob has no state.tasks array")
	}
	return b.State.Tasks, nil
}

// ReadLegacyFile loads an exported legacy blob from disk. Comments and
// trailing commas are tolerated; the result is standard JSON.
func ReadLegacyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if _, err := decodeLegacy(std); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return std, nil
}
