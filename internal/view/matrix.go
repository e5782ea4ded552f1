package view

import (
	"sort"
	"time"

	"dida/internal/task"
)

type Quadrant int

const (
	DoNow     Quadrant = iota // important and urgent
	Schedule                  // important, not urgent
	Delegate                  // urgent, not important
	Eliminate                 // neither
)

// Quadrants lists every quadrant in display order.
var Quadrants = []Quadrant{DoNow, Schedule, Delegate, Eliminate}

func (q Quadrant) String() string {
	switch q {
	case DoNow:
		return "do now"
	case Schedule:
		return "schedule"
	case Delegate:
		return "delegate"
	case Eliminate:
		return "eliminate"
	}
	return "unknown"
}

// Title is the heading shown above the quadrant.
func (q Quadrant) Title() string {
	switch q {
	case DoNow:
		return "重要且紧急"
	case Schedule:
		return "重要不紧急"
	case Delegate:
		return "紧急不重要"
	case Eliminate:
		return "不重要不紧急"
	}
	return ""
}

// Matrix holds the four quadrants, each sorted by priority weight then due date.
type Matrix [4][]task.Task

func (m Matrix) In(q Quadrant) []task.Task {
	return m[q]
}

func IsImportant(t task.Task) bool {
	return t.Priority == task.PriorityP0 || t.Priority == task.PriorityP1
}

// IsUrgent reports whether t is p0/p2 or is due today or earlier.
func IsUrgent(t task.Task, now time.Time) bool {
	if t.Priority == task.PriorityP0 || t.Priority == task.PriorityP2 {
		return true
	}
	if !t.HasDueDate() {
		return false
	}
	return !t.DueDate.After(now) || task.SameDay(now, t.DueDate)
}

func Classify(t task.Task, now time.Time) Quadrant {
	important, urgent := IsImportant(t), IsUrgent(t, now)
	switch {
	case important && urgent:
		return DoNow
	case important:
		return Schedule
	case urgent:
		return Delegate
	}
	return Eliminate
}

// MatrixOf classifies every todo task. Ties on weight and due date keep
// collection order.
func MatrixOf(tasks []task.Task, now time.Time) Matrix {
	var m Matrix
	for _, t := range tasks {
		if t.Status != task.StatusTodo {
			continue
		}
		q := Classify(t, now)
		m[q] = append(m[q], t)
	}
	for q := range m {
		sortQuadrant(m[q])
	}
	return m
}

func sortQuadrant(tasks []task.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		wi, wj := tasks[i].Priority.Weight(), tasks[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		a, b := tasks[i], tasks[j]
		switch {
		case !a.HasDueDate():
			return false
		case !b.HasDueDate():
			return true
		}
		return a.DueDate.Before(b.DueDate)
	})
}
