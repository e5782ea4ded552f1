// Package task defines the task entity, its persisted record shape and the
// schema rules records must satisfy before they reach the collection.
package task

import (
	"slices"
	"time"
)

type Status string

const (
	StatusTodo      Status = "todo"
	StatusCompleted Status = "completed"
	// StatusInProgress is accepted as input and on read. It is never stored
	// on a Task: in-progress work is StatusTodo with InProgress set.
	StatusInProgress Status = "in_progress"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusCompleted, StatusInProgress:
		return true
	}
	return false
}

type Priority string

const (
	PriorityP0   Priority = "p0"
	PriorityP1   Priority = "p1"
	PriorityP2   Priority = "p2"
	PriorityNone Priority = "none"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityNone}

func (p Priority) Valid() bool {
	return slices.Contains(Priorities, p)
}

// Weight orders priorities p0 > p1 > p2 > none. Unknown values weigh 0.
func (p Priority) Weight() int {
	switch p {
	case PriorityP0:
		return 4
	case PriorityP1:
		return 3
	case PriorityP2:
		return 2
	case PriorityNone:
		return 1
	}
	return 0
}

type SubTask struct {
	ID    string
	Title string
	Done  bool
}

type Task struct {
	ID          string
	Title       string
	Description string
	Status      Status
	InProgress  bool
	Priority    Priority
	Order       float64
	DueDate     time.Time // zero means no due date
	AllDay      bool
	Checklist   []SubTask
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time // set iff Status == StatusCompleted
}

func (t Task) HasDueDate() bool   { return !t.DueDate.IsZero() }
func (t Task) IsCompleted() bool  { return t.Status == StatusCompleted }
func (t Task) IsInProgress() bool { return t.Status == StatusTodo && t.InProgress }

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	t.Checklist = slices.Clone(t.Checklist)
	t.Tags = slices.Clone(t.Tags)
	return t
}

// DoneCount reports how many checklist items are done.
func (t Task) DoneCount() int {
	n := 0
	for _, st := range t.Checklist {
		if st.Done {
			n++
		}
	}
	return n
}

// DedupeTags drops repeated tags, keeping the first occurrence of each.
func DedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// Normalize enforces the status invariants on t:
// in_progress becomes todo with InProgress, completed tasks are never in
// progress, and CompletedAt is present exactly when the task is completed.
// now stamps CompletedAt when a completed task lacks one. Values outside
// the status and priority enums fall back to todo and none.
func Normalize(t *Task, now time.Time) {
	if !t.Status.Valid() {
		t.Status = StatusTodo
	}
	if t.Status == StatusInProgress {
		t.Status = StatusTodo
		t.InProgress = true
	}
	if !t.Priority.Valid() {
		t.Priority = PriorityNone
	}
	if t.Status == StatusCompleted {
		t.InProgress = false
		if t.CompletedAt.IsZero() {
			t.CompletedAt = now
		}
	} else {
		t.CompletedAt = time.Time{}
	}
	t.Tags = DedupeTags(t.Tags)
}
