package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"dida/internal/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTask(id string, at time.Time) task.Task {
	return task.Task{
		ID:        id,
		Title:     "task " + id,
		Status:    task.StatusTodo,
		Priority:  task.PriorityNone,
		Order:     float64(at.UnixMilli()),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func find(t *testing.T, s *Store, id string) (task.Task, bool) {
	t.Helper()
	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	for _, x := range all {
		if x.ID == id {
			return x, true
		}
	}
	return task.Task{}, false
}

func ids(tasks []task.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

var base = time.UnixMilli(1_760_000_000_000).Local()

func TestStore_AddAndGetAll(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	full := sampleTask("a", base)
	full.Description = "notes"
	full.Priority = task.PriorityP1
	full.DueDate = base.Add(24 * time.Hour)
	full.AllDay = true
	full.InProgress = true
	full.Checklist = []task.SubTask{{ID: "s1", Title: "one"}, {ID: "s2", Title: "two", Done: true}}
	full.Tags = []string{"home", "errand"}

	require.NoError(t, s.Add(ctx, full))
	require.NoError(t, s.Add(ctx, sampleTask("b", base)))

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(got))
	if diff := cmp.Diff(full, got[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_AddDuplicateFails(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, sampleTask("a", base)))
	require.Error(t, s.Add(ctx, sampleTask("a", base)))
}

func TestStore_UpdateByID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	orig := sampleTask("a", base)
	orig.DueDate = base
	require.NoError(t, s.Add(ctx, orig))

	later := base.Add(time.Hour)
	err := s.UpdateByID(ctx, "a", task.Patch{
		Title:       task.Ptr("renamed"),
		Status:      task.Ptr(task.StatusCompleted),
		CompletedAt: &later,
		UpdatedAt:   &later,
		ClearDue:    true,
		Tags:        task.Ptr([]string{"x", "x", "y"}),
	})
	require.NoError(t, err)

	got, ok := find(t, s, "a")
	require.True(t, ok)
	require.Equal(t, "renamed", got.Title)
	require.Equal(t, task.StatusCompleted, got.Status)
	require.True(t, got.CompletedAt.Equal(later))
	require.False(t, got.HasDueDate())
	require.Equal(t, []string{"x", "y"}, got.Tags)
}

func TestStore_UpdateMissingIsNoop(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpdateByID(context.Background(), "ghost", task.Patch{Title: task.Ptr("x")}))
}

func TestStore_DeleteByID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, sampleTask("a", base)))
	require.NoError(t, s.DeleteByID(ctx, "a"))
	_, ok := find(t, s, "a")
	require.False(t, ok)
}

func TestStore_BulkPutUpsertsAndKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, sampleTask("a", base)))
	require.NoError(t, s.Add(ctx, sampleTask("b", base)))

	changed := sampleTask("a", base)
	changed.Title = "changed"
	require.NoError(t, s.BulkPut(ctx, []task.Task{sampleTask("c", base), changed}))

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids(got))
	require.Equal(t, "changed", got[0].Title)
}

func TestStore_SetPositions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Add(ctx, sampleTask(id, base)))
	}
	require.NoError(t, s.SetPositions(ctx, []string{"c", "a", "zzz"}))

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b", "d"}, ids(got))

	// new rows land after the reordered ones
	require.NoError(t, s.Add(ctx, sampleTask("e", base)))
	got, err = s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a", "b", "d", "e"}, ids(got))
}

func TestStore_GetAllDropsInvalidRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, sampleTask("good", base)))

	_, err := s.db.Exec(`INSERT INTO tasks (id, title, status, priority, sort_order, created_at, updated_at)
VALUES ('bad-status', 't', 'archived', 'none', 1, 1, 1),
       ('bad-priority', 't', 'todo', 'urgent', 1, 1, 1),
       ('no-created', 't', 'todo', 'none', 1, NULL, 1);`)
	require.NoError(t, err)
	_, err = s.db.Exec(`INSERT INTO tasks (id, title, status, priority, sort_order, created_at, updated_at, checklist)
VALUES ('bad-checklist', 't', 'todo', 'none', 1, 1, 1, '{not json');`)
	require.NoError(t, err)

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"good"}, ids(got))
}

func TestStore_GetAllNormalizesInProgressStatus(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.db.Exec(`INSERT INTO tasks (id, title, status, sort_order, created_at, updated_at)
VALUES ('a', 't', 'in_progress', 1, 1, 1);`)
	require.NoError(t, err)

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, task.StatusTodo, got[0].Status)
	require.True(t, got[0].InProgress)
	require.Equal(t, task.PriorityNone, got[0].Priority)
}

func TestStore_ClosedStore(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Close())
	_, err := s.GetAll(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestLinearize(t *testing.T) {
	tests := []struct {
		name    string
		current []string
		order   []string
		want    []string
	}{
		{"empty order keeps input", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"full order", []string{"a", "b", "c"}, []string{"c", "b", "a"}, []string{"c", "b", "a"}},
		{"partial order", []string{"a", "b", "c", "d"}, []string{"d", "b"}, []string{"d", "b", "a", "c"}},
		{"unknown and repeated ids", []string{"a", "b"}, []string{"x", "b", "b"}, []string{"b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Linearize(tt.current, tt.order)); diff != "" {
				t.Errorf("Linearize (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMigrateLegacy(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	blob := `{"state":{"tasks":[
		{"id":"a","title":"keep","status":"todo","priority":"p1","order":1,"createdAt":1,"updatedAt":2,"tags":["x","x"]},
		{"id":"b","title":"bad","status":"nope","priority":"p1","order":1,"createdAt":1,"updatedAt":2},
		{"id":"c","title":"no order","status":"todo","createdAt":1,"updatedAt":2},
		{"id":"d","title":"done","status":"completed","order":2,"createdAt":1,"updatedAt":5,"completedAt":5}
	]},"version":0}`
	require.NoError(t, s.WriteLegacy(ctx, []byte(blob)))

	n, err := s.MigrateLegacy(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "d"}, ids(got))
	require.Equal(t, []string{"x"}, got[0].Tags)

	// store is non-empty now, so a second run imports nothing
	n, err = s.MigrateLegacy(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMigrateLegacy_SkipsWhenStoreHasData(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, sampleTask("existing", base)))
	require.NoError(t, s.WriteLegacy(ctx, []byte(`{"state":{"tasks":[{"id":"a","title":"t","status":"todo","order":1,"createdAt":1,"updatedAt":1}]}}`)))

	n, err := s.MigrateLegacy(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	c, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, c)
}

func TestMigrateLegacy_DoubleEncodedAndMalformed(t *testing.T) {
	ctx := context.Background()

	s := openTestStore(t)
	require.NoError(t, s.WriteLegacy(ctx, []byte(`"{\"state\":{\"tasks\":[{\"id\":\"a\",\"title\":\"t\",\"status\":\"todo\",\"order\":1,\"createdAt\":1,\"updatedAt\":1}]}}"`)))
	n, err := s.MigrateLegacy(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	s2 := openTestStore(t)
	require.NoError(t, s2.WriteLegacy(ctx, []byte(`{broken`)))
	n, err = s2.MigrateLegacy(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMigrateLegacy_EmptySlot(t *testing.T) {
	s := openTestStore(t)
	n, err := s.MigrateLegacy(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReadLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	content := `{
	// exported from the browser build
	"state": {"tasks": [
		{"id": "a", "title": "t", "status": "todo", "order": 1, "createdAt": 1, "updatedAt": 1,},
	]},
	"version": 0,
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	blob, err := ReadLegacyFile(path)
	require.NoError(t, err)
	raw, err := decodeLegacy(blob)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	require.NoError(t, os.WriteFile(path, []byte(`{"nothing": true}`), 0o644))
	_, err = ReadLegacyFile(path)
	require.Error(t, err)
}
