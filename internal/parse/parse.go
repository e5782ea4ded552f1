// Package parse pulls a priority token and a relative due date out of a
// free-text task title.
package parse

import (
	"regexp"
	"strings"
	"time"

	"dida/internal/task"
)

var priorityRe = regexp.MustCompile(`(?i)!(p[0-2])`)

type keyword struct {
	word string
	days int
}

// Relative day keywords, checked in this order before any weekday.
var relativeDays = []keyword{
	{"明天", 1},
	{"后天", 2},
	{"今天", 0},
}

type weekdayName struct {
	word string
	day  time.Weekday
}

var weekdays = []weekdayName{
	{"周日", time.Sunday},
	{"星期日", time.Sunday},
	{"周一", time.Monday},
	{"星期一", time.Monday},
	{"周二", time.Tuesday},
	{"星期二", time.Tuesday},
	{"周三", time.Wednesday},
	{"星期三", time.Wednesday},
	{"周四", time.Thursday},
	{"星期四", time.Thursday},
	{"周五", time.Friday},
	{"星期五", time.Friday},
	{"周六", time.Saturday},
	{"星期六", time.Saturday},
}

// Result is what Parse found. Priority is empty and DueDate is zero when
// the input carried no such token.
type Result struct {
	Title    string
	Priority task.Priority
	DueDate  time.Time
}

// Parse extracts at most one "!p0".."!p2" token and at most one date
// keyword from input, relative to now. Input without tokens comes back as
// its trimmed self.
func Parse(input string, now time.Time) Result {
	r := Result{Title: input}

	if m := priorityRe.FindStringSubmatchIndex(r.Title); m != nil {
		r.Priority = task.Priority(strings.ToLower(r.Title[m[2]:m[3]]))
		r.Title = strings.TrimSpace(r.Title[:m[0]] + r.Title[m[1]:])
	}

	today := task.StartOfDay(now)
	if word, due, ok := matchDate(r.Title, today); ok {
		r.DueDate = due
		r.Title = strings.Replace(r.Title, word, "", 1)
	}
	r.Title = strings.TrimSpace(r.Title)
	return r
}

func matchDate(s string, today time.Time) (string, time.Time, bool) {
	for _, k := range relativeDays {
		if strings.Contains(s, k.word) {
			return k.word, task.AddDays(today, k.days), true
		}
	}
	for _, w := range weekdays {
		if strings.Contains(s, w.word) {
			return w.word, NextWeekday(today, w.day), true
		}
	}
	return "", time.Time{}, false
}

// NextWeekday returns the first day strictly after from that falls on day.
func NextWeekday(from time.Time, day time.Weekday) time.Time {
	delta := (int(day) - int(from.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return task.AddDays(task.StartOfDay(from), delta)
}

// Patch turns the result into fields for a new task.
func (r Result) Patch() task.Patch {
	p := task.Patch{Title: task.Ptr(r.Title)}
	if r.Priority != "" {
		p.Priority = task.Ptr(r.Priority)
	}
	if !r.DueDate.IsZero() {
		p.DueDate = task.Ptr(r.DueDate)
		p.AllDay = task.Ptr(true)
	}
	return p
}
