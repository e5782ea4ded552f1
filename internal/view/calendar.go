package view

import (
	"time"

	"dida/internal/task"
)

// Calendar buckets open tasks with a due date by local calendar day.
type Calendar struct {
	loc  *time.Location
	days map[string][]task.Task
}

// CalendarOf builds the calendar projection in loc. Completed tasks and
// tasks without a due date are left out; within a day tasks keep collection
// order.
func CalendarOf(tasks []task.Task, loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	c := Calendar{loc: loc, days: map[string][]task.Task{}}
	for _, t := range tasks {
		if t.IsCompleted() || !t.HasDueDate() {
			continue
		}
		key := task.DayKey(t.DueDate.In(loc))
		c.days[key] = append(c.days[key], t)
	}
	return c
}

// On returns the tasks due on day's calendar date.
func (c Calendar) On(day time.Time) []task.Task {
	return c.days[task.DayKey(day.In(c.loc))]
}

// Len counts the days that hold at least one task.
func (c Calendar) Len() int {
	return len(c.days)
}
