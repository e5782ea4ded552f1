// Package engine owns the authoritative in-memory task collection. Every
// mutation takes effect in memory before it returns and is then mirrored to
// the backend by a single background writer, in submission order.
package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dida/internal/logging"
	"dida/internal/task"
	"dida/internal/view"
)

// Backend is the durable store the collection is mirrored to.
type Backend interface {
	GetAll(ctx context.Context) ([]task.Task, error)
	Add(ctx context.Context, t task.Task) error
	UpdateByID(ctx context.Context, id string, p task.Patch) error
	DeleteByID(ctx context.Context, id string) error
	BulkPut(ctx context.Context, tasks []task.Task) error
	SetPositions(ctx context.Context, ids []string) error
}

// DefaultRetention is how long completed tasks survive the cleanup sweep.
const DefaultRetention = 48 * time.Hour

type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to random UUIDs.
	NewID func() string
	Retry RetryPolicy
	// Retention defaults to DefaultRetention.
	Retention time.Duration
	// OnPersistError is called from the writer goroutine when a write gives up.
	OnPersistError func(Failure)
	GroupBy        view.GroupBy
}

type Engine struct {
	backend   Backend
	now       func() time.Time
	newID     func() string
	retention time.Duration
	w         *writer

	mu       sync.RWMutex
	tasks    []task.Task
	search   string
	groupBy  view.GroupBy
	selected string
}

func New(b Backend, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetry
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if _, ok := view.ParseGroupBy(string(opts.GroupBy)); !ok {
		opts.GroupBy = view.GroupByPriority
	}
	return &Engine{
		backend:   b,
		now:       opts.Now,
		newID:     opts.NewID,
		retention: opts.Retention,
		w:         newWriter(opts.Retry, opts.OnPersistError),
		groupBy:   opts.GroupBy,
	}
}

// Load replaces the in-memory collection with the backend's contents. It
// is meant to run once at startup, before any mutation.
func (e *Engine) Load(ctx context.Context) error {
	tasks, err := e.backend.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}
	e.mu.Lock()
	e.tasks = tasks
	e.mu.Unlock()
	logging.Info("engine", "loaded %d tasks", len(tasks))
	return nil
}

// Flush waits for every write submitted so far.
func (e *Engine) Flush(ctx context.Context) error {
	return e.w.flush(ctx)
}

// Close flushes pending writes and stops the writer. Mutations after Close
// still change memory but their commits fail with ErrClosed.
func (e *Engine) Close(ctx context.Context) error {
	return e.w.close(ctx)
}

func (e *Engine) stamp() time.Time {
	return e.now()
}

// indexOf must be called with e.mu held.
func (e *Engine) indexOf(id string) int {
	for i := range e.tasks {
		if e.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Tasks returns a copy of the collection in order.
func (e *Engine) Tasks() []task.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]task.Task, len(e.tasks))
	for i, t := range e.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (e *Engine) Get(id string) (task.Task, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i := e.indexOf(id); i >= 0 {
		return e.tasks[i].Clone(), true
	}
	return task.Task{}, false
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tasks)
}

// Now is the engine's clock, for callers that derive projections.
func (e *Engine) Now() time.Time {
	return e.now()
}

// update applies fn to a copy of the task with id, normalizes it and, when
// anything changed, stores it and persists the difference. fn returning
// false aborts without touching the task. Must be called with e.mu held.
func (e *Engine) update(op, id string, fn func(t *task.Task) bool) *Commit {
	i := e.indexOf(id)
	if i < 0 {
		return resolvedCommit(nil)
	}
	before := e.tasks[i]
	after := before.Clone()
	if !fn(&after) {
		return resolvedCommit(nil)
	}
	restoreInvalid(&after, before)
	now := e.stamp()
	after.UpdatedAt = now
	task.Normalize(&after, now)
	e.tasks[i] = after

	patch := task.Diff(before, after)
	return e.w.submit(op, id, func(ctx context.Context) error {
		return e.backend.UpdateByID(ctx, id, patch)
	})
}

// restoreInvalid puts back prev's status or priority where t carries a
// value outside the enum, so the store never receives a row it would reject
// on the next load.
func restoreInvalid(t *task.Task, prev task.Task) {
	if !t.Status.Valid() {
		logging.Warn("engine", "ignoring unknown status %q on %s", t.Status, t.ID)
		t.Status = prev.Status
	}
	if !t.Priority.Valid() {
		logging.Warn("engine", "ignoring unknown priority %q on %s", t.Priority, t.ID)
		t.Priority = prev.Priority
	}
}

// AddTask appends a new task built from p. Unset fields take defaults:
// todo status, no priority, order and timestamps set to now, empty checklist.
func (e *Engine) AddTask(p task.Patch) (task.Task, *Commit) {
	now := e.stamp()
	t := task.Task{
		ID:        e.newID(),
		Status:    task.StatusTodo,
		Priority:  task.PriorityNone,
		Order:     float64(now.UnixMilli()),
		Checklist: []task.SubTask{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	defaults := t
	p.Apply(&t)
	restoreInvalid(&t, defaults)
	if t.Title == "" {
		t.Title = "New Task"
	}
	for i := range t.Checklist {
		if t.Checklist[i].ID == "" {
			t.Checklist[i].ID = e.newID()
		}
	}
	task.Normalize(&t, now)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, t)
	stored := t.Clone()
	c := e.w.submit("add", t.ID, func(ctx context.Context) error {
		return e.backend.Add(ctx, stored)
	})
	return t.Clone(), c
}

// UpdateTask merges p into the task and stamps UpdatedAt. Status invariants
// are re-established after the merge. A missing id is a no-op.
func (e *Engine) UpdateTask(id string, p task.Patch) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("update", id, func(t *task.Task) bool {
		p.Apply(t)
		return true
	})
}

func (e *Engine) DeleteTask(id string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.indexOf(id)
	if i < 0 {
		return resolvedCommit(nil)
	}
	e.tasks = slices.Delete(e.tasks, i, i+1)
	if e.selected == id {
		e.selected = ""
	}
	return e.w.submit("delete", id, func(ctx context.Context) error {
		return e.backend.DeleteByID(ctx, id)
	})
}

// ToggleTaskStatus flips between completed and todo. Either way the task
// leaves the in-progress state.
func (e *Engine) ToggleTaskStatus(id string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("toggle", id, func(t *task.Task) bool {
		t.InProgress = false
		if t.IsCompleted() {
			t.Status = task.StatusTodo
			t.CompletedAt = time.Time{}
		} else {
			t.Status = task.StatusCompleted
			t.CompletedAt = e.stamp()
		}
		return true
	})
}

// SetTaskStatus sets status explicitly. StatusInProgress is stored as todo
// with the in-progress flag. An already completed task keeps its original
// completion time.
func (e *Engine) SetTaskStatus(id string, status task.Status) *Commit {
	if !status.Valid() {
		return resolvedCommit(nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("set-status", id, func(t *task.Task) bool {
		switch status {
		case task.StatusInProgress:
			t.Status = task.StatusTodo
			t.InProgress = true
		case task.StatusCompleted:
			if !t.IsCompleted() {
				t.CompletedAt = e.stamp()
			}
			t.Status = task.StatusCompleted
			t.InProgress = false
		default:
			t.Status = task.StatusTodo
			t.InProgress = false
		}
		return true
	})
}

// CleanupCompletedTasks deletes every task completed longer ago than the
// retention window and returns how many were removed.
func (e *Engine) CleanupCompletedTasks() (int, *Commit) {
	cutoff := e.stamp().Add(-e.retention)

	e.mu.Lock()
	defer e.mu.Unlock()
	var removed []string
	kept := e.tasks[:0:0]
	for _, t := range e.tasks {
		if t.IsCompleted() && !t.CompletedAt.IsZero() && !t.CompletedAt.After(cutoff) {
			removed = append(removed, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	if len(removed) == 0 {
		return 0, resolvedCommit(nil)
	}
	e.tasks = kept
	if slices.Contains(removed, e.selected) {
		e.selected = ""
	}
	logging.Info("engine", "cleanup removed %d completed tasks", len(removed))
	return len(removed), e.w.submit("cleanup", "", func(ctx context.Context) error {
		for _, id := range removed {
			if err := e.backend.DeleteByID(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}
