package view

import (
	"slices"

	"dida/internal/task"
)

// Drop is the outcome of dropping one list item onto another.
type Drop struct {
	// Order is the full collection order to commit: open tasks in their new
	// visual order followed by the completed tasks.
	Order []string
	// Patch moves the dragged task into the target's group, or is nil when
	// both already share the grouping key.
	Patch *task.Patch
}

// DragTarget computes the drop of activeID onto overID within l, grouped by
// by. ok is false when either id is not an open task or they are the same.
func DragTarget(l List, by GroupBy, activeID, overID string) (Drop, bool) {
	if activeID == overID {
		return Drop{}, false
	}
	ids := l.IDs()
	from := slices.Index(ids, activeID)
	to := slices.Index(ids, overID)
	if from < 0 || to < 0 {
		return Drop{}, false
	}
	active, _ := l.task(activeID)
	over, _ := l.task(overID)

	order := slices.Delete(slices.Clone(ids), from, from+1)
	order = slices.Insert(order, to, activeID)
	for _, t := range l.Completed.Tasks {
		order = append(order, t.ID)
	}

	drop := Drop{Order: order}
	switch by {
	case GroupByPriority:
		if active.Priority != over.Priority {
			drop.Patch = &task.Patch{Priority: task.Ptr(over.Priority)}
		}
	case GroupByDate:
		if !active.DueDate.Equal(over.DueDate) {
			if over.HasDueDate() {
				drop.Patch = &task.Patch{DueDate: task.Ptr(over.DueDate)}
			} else {
				drop.Patch = &task.Patch{ClearDue: true}
			}
		}
	}
	return drop, true
}

func (l List) task(id string) (task.Task, bool) {
	g, i, ok := l.Find(id)
	if !ok {
		return task.Task{}, false
	}
	return l.Groups[g].Tasks[i], true
}
