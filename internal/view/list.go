// Package view derives the list, calendar and matrix projections from a flat
// task collection. Every function here is pure: the same tasks and the same
// reference time always produce the same output.
package view

import (
	"sort"
	"time"

	"dida/internal/task"
)

type GroupBy string

const (
	GroupByPriority GroupBy = "priority"
	GroupByDate     GroupBy = "date"
)

func ParseGroupBy(s string) (GroupBy, bool) {
	switch GroupBy(s) {
	case GroupByPriority, GroupByDate:
		return GroupBy(s), true
	}
	return "", false
}

// Toggle returns the other grouping mode.
func (g GroupBy) Toggle() GroupBy {
	if g == GroupByDate {
		return GroupByPriority
	}
	return GroupByDate
}

const (
	TitleInProgress = "处理中"
	TitleCompleted  = "已完成"
	TitleToday      = "今天"
	TitleTomorrow   = "明天"
	TitleNoDate     = "无日期"
)

var priorityTitles = map[task.Priority]string{
	task.PriorityP0:   "紧急",
	task.PriorityP1:   "高优先级",
	task.PriorityP2:   "普通",
	task.PriorityNone: "无优先级",
}

// PriorityTitle returns the list heading for p.
func PriorityTitle(p task.Priority) string {
	if title, ok := priorityTitles[p]; ok {
		return title
	}
	return priorityTitles[task.PriorityNone]
}

// Group is one bucket of the list projection. Tasks keep collection order.
type Group struct {
	Key   string
	Title string
	Tasks []task.Task
}

// List is the status-grouped list projection: open groups in display order
// followed by the completed tasks.
type List struct {
	Groups    []Group
	Completed Group
}

// IDs returns the visual order of every open task, group by group.
func (l List) IDs() []string {
	var ids []string
	for _, g := range l.Groups {
		for _, t := range g.Tasks {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Find returns the group index and position of id among the open groups.
func (l List) Find(id string) (group, pos int, ok bool) {
	for gi, g := range l.Groups {
		for ti, t := range g.Tasks {
			if t.ID == id {
				return gi, ti, true
			}
		}
	}
	return -1, -1, false
}

const keyInProgress = "in_progress"

type bucket struct {
	group Group
	rank  int
	day   time.Time
}

// GroupList buckets every open task by priority or by due date. In-progress
// tasks always lead in their own group; completed tasks are collected into
// List.Completed. now decides which dates count as today and tomorrow.
func GroupList(tasks []task.Task, by GroupBy, now time.Time) List {
	today := task.StartOfDay(now)
	tomorrow := task.AddDays(today, 1)

	var out List
	out.Completed = Group{Key: string(task.StatusCompleted), Title: TitleCompleted}
	buckets := map[string]*bucket{}
	var keys []string

	for _, t := range tasks {
		if t.IsCompleted() {
			out.Completed.Tasks = append(out.Completed.Tasks, t)
			continue
		}
		key, b := classify(t, by, today, tomorrow)
		existing, ok := buckets[key]
		if !ok {
			buckets[key] = &b
			existing = &b
			keys = append(keys, key)
		}
		existing.group.Tasks = append(existing.group.Tasks, t)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := buckets[keys[i]], buckets[keys[j]]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.day.Before(b.day)
	})
	for _, k := range keys {
		out.Groups = append(out.Groups, buckets[k].group)
	}
	return out
}

// Ranks order groups: in-progress, then the mode's fixed buckets, with
// dated groups sorted chronologically inside their rank.
const (
	rankInProgress = iota
	rankToday
	rankTomorrow
	rankDated
	rankNoDate
)

func classify(t task.Task, by GroupBy, today, tomorrow time.Time) (string, bucket) {
	if t.IsInProgress() {
		return keyInProgress, bucket{group: Group{Key: keyInProgress, Title: TitleInProgress}, rank: rankInProgress}
	}
	if by == GroupByPriority {
		p := t.Priority
		if !p.Valid() {
			p = task.PriorityNone
		}
		// p0 has weight 4; ranks start after the in-progress group
		rank := 1 + (task.PriorityP0.Weight() - p.Weight())
		return string(p), bucket{group: Group{Key: string(p), Title: PriorityTitle(p)}, rank: rank}
	}
	if !t.HasDueDate() {
		return "none", bucket{group: Group{Key: "none", Title: TitleNoDate}, rank: rankNoDate}
	}
	day := task.StartOfDay(t.DueDate.In(today.Location()))
	switch {
	case day.Equal(today):
		return "today", bucket{group: Group{Key: "today", Title: TitleToday}, rank: rankToday, day: day}
	case day.Equal(tomorrow):
		return "tomorrow", bucket{group: Group{Key: "tomorrow", Title: TitleTomorrow}, rank: rankTomorrow, day: day}
	}
	key := task.DayKey(day)
	return key, bucket{group: Group{Key: key, Title: day.Format("Jan 2")}, rank: rankDated, day: day}
}
