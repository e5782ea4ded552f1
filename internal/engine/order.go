package engine

import (
	"context"
	"slices"

	"dida/internal/storage"
	"dida/internal/task"
)

// ReorderTasks moves the named tasks to the front of the collection in the
// given order; every other task follows in its previous relative order.
// Unknown and repeated ids are ignored.
func (e *Engine) ReorderTasks(ids []string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	order := e.reorder(ids)
	if order == nil {
		return resolvedCommit(nil)
	}
	return e.w.submit("reorder", "", func(ctx context.Context) error {
		return e.backend.SetPositions(ctx, order)
	})
}

// MoveTask reorders the collection and merges p into taskID as one step.
// Readers never observe the reorder without the update. p may be nil.
func (e *Engine) MoveTask(taskID string, ids []string, p *task.Patch) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()

	var patch task.Patch
	changed := false
	if i := e.indexOf(taskID); i >= 0 && p != nil {
		before := e.tasks[i]
		after := before.Clone()
		p.Apply(&after)
		restoreInvalid(&after, before)
		now := e.stamp()
		after.UpdatedAt = now
		task.Normalize(&after, now)
		e.tasks[i] = after
		patch = task.Diff(before, after)
		changed = true
	}
	order := e.reorder(ids)
	if !changed && order == nil {
		return resolvedCommit(nil)
	}
	return e.w.submit("move", taskID, func(ctx context.Context) error {
		if changed {
			if err := e.backend.UpdateByID(ctx, taskID, patch); err != nil {
				return err
			}
		}
		if order != nil {
			return e.backend.SetPositions(ctx, order)
		}
		return nil
	})
}

// reorder relinearizes e.tasks around ids and returns the resulting id
// order, or nil when the order did not change. Must be called with e.mu held.
func (e *Engine) reorder(ids []string) []string {
	current := make([]string, len(e.tasks))
	byID := make(map[string]task.Task, len(e.tasks))
	for i, t := range e.tasks {
		current[i] = t.ID
		byID[t.ID] = t
	}
	order := storage.Linearize(current, ids)
	if slices.Equal(order, current) {
		return nil
	}
	tasks := make([]task.Task, len(order))
	for i, id := range order {
		tasks[i] = byID[id]
	}
	e.tasks = tasks
	return order
}
