package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"dida/internal/logging"
	"dida/internal/task"
)

var ErrClosed = errors.New("store is closed")

// Store is the durable mirror of the task collection, backed by SQLite.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Columns are nullable on purpose: a row written by an older or foreign
// schema must still load so validation can reject it instead of the scan.
func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	title TEXT,
	description TEXT,
	status TEXT,
	is_in_progress INTEGER,
	priority TEXT,
	sort_order REAL,
	due_date INTEGER,
	is_all_day INTEGER,
	checklist TEXT,
	created_at INTEGER,
	updated_at INTEGER,
	completed_at INTEGER
);
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	if err := s.ensureTaskColumns(); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS tasks_position ON tasks(position);`)
	return err
}

func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"tags":     "ALTER TABLE tasks ADD COLUMN tags TEXT DEFAULT NULL;",
		"position": "ALTER TABLE tasks ADD COLUMN position INTEGER NOT NULL DEFAULT 0;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

const selectColumns = `id, title, description, status, is_in_progress, priority, sort_order,
	due_date, is_all_day, checklist, tags, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (task.Record, error) {
	var (
		r                           task.Record
		title, desc, prio           sql.NullString
		status, checklist, tags     sql.NullString
		inProgress, allDay          sql.NullInt64
		order                       sql.NullFloat64
		due, created, updated, done sql.NullInt64
	)
	if err := row.Scan(&r.ID, &title, &desc, &status, &inProgress, &prio, &order,
		&due, &allDay, &checklist, &tags, &created, &updated, &done); err != nil {
		return r, err
	}
	r.Status = status.String
	r.Priority = prio.String
	if title.Valid {
		r.Title = &title.String
	}
	if desc.Valid {
		r.Description = &desc.String
	}
	if inProgress.Valid {
		r.IsInProgress = task.Ptr(inProgress.Int64 == 1)
	}
	if order.Valid {
		r.Order = &order.Float64
	}
	if due.Valid {
		r.DueDate = &due.Int64
	}
	if allDay.Valid {
		r.IsAllDay = task.Ptr(allDay.Int64 == 1)
	}
	if created.Valid {
		r.CreatedAt = &created.Int64
	}
	if updated.Valid {
		r.UpdatedAt = &updated.Int64
	}
	if done.Valid {
		r.CompletedAt = &done.Int64
	}
	if checklist.Valid && checklist.String != "" {
		if err := json.Unmarshal([]byte(checklist.String), &r.Checklist); err != nil {
			return r, &task.ValidationError{ID: r.ID, Field: "checklist", Reason: "is not a JSON array"}
		}
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &r.Tags); err != nil {
			return r, &task.ValidationError{ID: r.ID, Field: "tags", Reason: "is not a JSON array"}
		}
	}
	return r, nil
}

// GetAll returns every valid task in collection order. Rows that fail schema
// validation are logged and left out.
func (s *Store) GetAll(ctx context.Context) ([]task.Task, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+selectColumns+` FROM tasks ORDER BY position, rowid;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		r, err := scanRecord(rows)
		var verr *task.ValidationError
		if errors.As(err, &verr) {
			logging.Warn("storage", "dropping row: %v", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		t, err := r.ToTask()
		if err != nil {
			logging.Warn("storage", "dropping row: %v", err)
			continue
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks;`).Scan(&n)
	return n, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Add inserts t after every existing task. Adding an id that already
// exists fails.
func (s *Store) Add(ctx context.Context, t task.Task) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return insert(ctx, db, t)
}

func insert(ctx context.Context, ex execer, t task.Task) error {
	args, err := rowArgs(t)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO tasks (`+selectColumns+`, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks));`, args...)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

func rowArgs(t task.Task) ([]any, error) {
	r := task.FromTask(t)
	checklist, err := jsonColumn(r.Checklist)
	if err != nil {
		return nil, err
	}
	tags, err := jsonColumn(r.Tags)
	if err != nil {
		return nil, err
	}
	return []any{
		r.ID, *r.Title, nullString(r.Description), r.Status, nullBool(r.IsInProgress), r.Priority, *r.Order,
		nullInt(r.DueDate), nullBool(r.IsAllDay), checklist, tags, *r.CreatedAt, *r.UpdatedAt, nullInt(r.CompletedAt),
	}, nil
}

// UpdateByID applies p to the stored row. A missing id is not an error.
func (s *Store) UpdateByID(ctx context.Context, id string, p task.Patch) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	sets, args, err := patchClauses(p)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	q := `UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE id = ?;`
	if _, err := db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

func patchClauses(p task.Patch) ([]string, []any, error) {
	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		if *p.Description == "" {
			set("description", nil)
		} else {
			set("description", *p.Description)
		}
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.InProgress != nil {
		set("is_in_progress", boolInt(*p.InProgress))
	}
	if p.Priority != nil {
		set("priority", string(*p.Priority))
	}
	if p.Order != nil {
		set("sort_order", *p.Order)
	}
	if p.ClearDue {
		set("due_date", nil)
	} else if p.DueDate != nil {
		set("due_date", task.Millis(*p.DueDate))
	}
	if p.AllDay != nil {
		set("is_all_day", boolInt(*p.AllDay))
	}
	if p.Checklist != nil {
		r := task.FromTask(task.Task{Checklist: *p.Checklist})
		v, err := jsonColumn(r.Checklist)
		if err != nil {
			return nil, nil, err
		}
		set("checklist", v)
	}
	if p.Tags != nil {
		v, err := jsonColumn(task.DedupeTags(*p.Tags))
		if err != nil {
			return nil, nil, err
		}
		set("tags", v)
	}
	if p.UpdatedAt != nil {
		set("updated_at", task.Millis(*p.UpdatedAt))
	}
	if p.ClearDone {
		set("completed_at", nil)
	} else if p.CompletedAt != nil {
		set("completed_at", task.Millis(*p.CompletedAt))
	}
	return sets, args, nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id)
	return err
}

// BulkPut upserts every task in one transaction. New ids are appended in
// slice order; existing rows keep their position.
func (s *Store) BulkPut(ctx context.Context, tasks []task.Task) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range tasks {
		args, err := rowArgs(t)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO tasks (`+selectColumns+`, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tasks))
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	description = excluded.description,
	status = excluded.status,
	is_in_progress = excluded.is_in_progress,
	priority = excluded.priority,
	sort_order = excluded.sort_order,
	due_date = excluded.due_date,
	is_all_day = excluded.is_all_day,
	checklist = excluded.checklist,
	tags = excluded.tags,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at,
	completed_at = excluded.completed_at;`, args...)
		if err != nil {
			return fmt.Errorf("put task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// SetPositions rewrites the stored order: ids come first in the given
// order, every other row follows in its prior relative order.
func (s *Store) SetPositions(ctx context.Context, ids []string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM tasks ORDER BY position, rowid;`)
	if err != nil {
		return err
	}
	var current []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		current = append(current, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for pos, id := range Linearize(current, ids) {
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET position = ? WHERE id = ?;`, pos, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Linearize places the ids of current that appear in order at the front, in
// that order, followed by the rest of current in their original order. Ids
// in order that are not in current are ignored, as are repeats.
func Linearize(current, order []string) []string {
	present := make(map[string]struct{}, len(current))
	for _, id := range current {
		present[id] = struct{}{}
	}
	out := make([]string, 0, len(current))
	placed := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, ok := present[id]; !ok {
			continue
		}
		if _, dup := placed[id]; dup {
			continue
		}
		placed[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range current {
		if _, ok := placed[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func jsonColumn[T any](v []T) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullBool(v *bool) any {
	if v == nil {
		return nil
	}
	return boolInt(*v)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
