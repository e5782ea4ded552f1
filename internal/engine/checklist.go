package engine

import (
	"slices"
	"strings"
	"time"

	"dida/internal/task"
)

// AddSubTask appends an unchecked item to the task's checklist and returns
// the new item's id, or "" when the task does not exist.
func (e *Engine) AddSubTask(taskID, title string) (string, *Commit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := ""
	c := e.update("add-subtask", taskID, func(t *task.Task) bool {
		id = e.newID()
		t.Checklist = append(t.Checklist, task.SubTask{ID: id, Title: strings.TrimSpace(title)})
		return true
	})
	return id, c
}

// ToggleSubTask flips one checklist item and re-derives the task status
// from how many items are done.
func (e *Engine) ToggleSubTask(taskID, subTaskID string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("toggle-subtask", taskID, func(t *task.Task) bool {
		i := slices.IndexFunc(t.Checklist, func(st task.SubTask) bool { return st.ID == subTaskID })
		if i < 0 {
			return false
		}
		t.Checklist[i].Done = !t.Checklist[i].Done
		deriveStatus(t, e.stamp())
		return true
	})
}

func (e *Engine) DeleteSubTask(taskID, subTaskID string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("delete-subtask", taskID, func(t *task.Task) bool {
		n := len(t.Checklist)
		t.Checklist = slices.DeleteFunc(t.Checklist, func(st task.SubTask) bool { return st.ID == subTaskID })
		return len(t.Checklist) != n
	})
}

// RenameSubTask changes a checklist item's title.
func (e *Engine) RenameSubTask(taskID, subTaskID, title string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("rename-subtask", taskID, func(t *task.Task) bool {
		i := slices.IndexFunc(t.Checklist, func(st task.SubTask) bool { return st.ID == subTaskID })
		if i < 0 {
			return false
		}
		t.Checklist[i].Title = strings.TrimSpace(title)
		return true
	})
}

// deriveStatus maps the checklist's done count onto the status:
// all done completes the task, some done marks it in progress, none done
// reopens it.
func deriveStatus(t *task.Task, now time.Time) {
	done := t.DoneCount()
	switch {
	case len(t.Checklist) > 0 && done == len(t.Checklist):
		if !t.IsCompleted() {
			t.CompletedAt = now
		}
		t.Status = task.StatusCompleted
		t.InProgress = false
	case done > 0:
		t.Status = task.StatusTodo
		t.InProgress = true
		t.CompletedAt = time.Time{}
	default:
		t.Status = task.StatusTodo
		t.InProgress = false
		t.CompletedAt = time.Time{}
	}
}
