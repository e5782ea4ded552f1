// Package calendar materializes a bounded, growable window of days for a
// horizontally scrolling calendar. Only the days near the scroll position
// are built into renderable columns; the rest of the window is reported as
// placeholder width so scroll math stays exact.
package calendar

import (
	"math"
	"time"

	"dida/internal/logging"
	"dida/internal/task"
)

// Config sizes the window and its virtualization. Widths and offsets share
// one unit (terminal cells for the TUI).
type Config struct {
	PastDays        int
	FutureDays      int
	BatchDays       int
	BufferDays      int
	ColumnWidth     int
	ScrollThreshold int
	EdgeThreshold   int
}

func DefaultConfig() Config {
	return Config{
		PastDays:        3,
		FutureDays:      30,
		BatchDays:       7,
		BufferDays:      2,
		ColumnWidth:     24,
		ScrollThreshold: 8,
		EdgeThreshold:   24,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PastDays < 0 {
		c.PastDays = d.PastDays
	}
	if c.FutureDays < 0 {
		c.FutureDays = d.FutureDays
	}
	if c.BatchDays <= 0 {
		c.BatchDays = d.BatchDays
	}
	if c.BufferDays < 0 {
		c.BufferDays = d.BufferDays
	}
	if c.ColumnWidth <= 0 {
		c.ColumnWidth = d.ColumnWidth
	}
	if c.ScrollThreshold < 0 {
		c.ScrollThreshold = d.ScrollThreshold
	}
	if c.EdgeThreshold < 0 {
		c.EdgeThreshold = d.EdgeThreshold
	}
	return c
}

// Feed is not safe for concurrent use; it belongs to the UI loop.
type Feed struct {
	cfg Config
	now func() time.Time

	start, end time.Time // inclusive, both at start of day

	first, last int // visible day indices, inclusive
	viewport    int
	offset      int
	settled     int // offset at the last visible-range recompute
	pending     bool
	scrolled    bool
}

// New opens the window at [today-PastDays, today+FutureDays] with today
// centered in the visible range.
func New(cfg Config, now func() time.Time) *Feed {
	if now == nil {
		now = time.Now
	}
	cfg = cfg.withDefaults()
	today := task.StartOfDay(now())
	f := &Feed{
		cfg:   cfg,
		now:   now,
		start: task.AddDays(today, -cfg.PastDays),
		end:   task.AddDays(today, cfg.FutureDays),
	}
	idx := cfg.PastDays
	span := cfg.BufferDays + 3
	f.first = max(0, idx-span)
	f.last = min(f.Len()-1, idx+span)
	f.offset = f.centerOn(idx)
	f.settled = f.offset
	return f
}

func (f *Feed) today() time.Time { return task.StartOfDay(f.now()) }

// Len is the number of days in the window.
func (f *Feed) Len() int { return task.DaysBetween(f.start, f.end) + 1 }

// Window returns the first and last loaded day.
func (f *Feed) Window() (start, end time.Time) { return f.start, f.end }

// Days lists every loaded day in order.
func (f *Feed) Days() []time.Time {
	days := make([]time.Time, f.Len())
	for i := range days {
		days[i] = task.AddDays(f.start, i)
	}
	return days
}

// Visible returns the indices of the first and last materialized day.
func (f *Feed) Visible() (first, last int) { return f.first, f.last }

func (f *Feed) Offset() int { return f.offset }

func (f *Feed) Viewport() int { return f.viewport }

// Total is the scrollable width of the whole window.
func (f *Feed) Total() int { return f.Len() * f.cfg.ColumnWidth }

func (f *Feed) maxOffset() int { return max(0, f.Total()-f.viewport) }

func (f *Feed) clamp(offset int) int { return min(max(offset, 0), f.maxOffset()) }

// LoadMorePast prepends a batch of days unless the window already reaches
// today-PastDays. The visible range and offset shift with the new days so
// the same dates stay on screen. It reports whether days were added.
func (f *Feed) LoadMorePast() bool {
	limit := task.AddDays(f.today(), -f.cfg.PastDays)
	if !f.start.After(limit) {
		return false
	}
	next := task.AddDays(f.start, -f.cfg.BatchDays)
	if next.Before(limit) {
		next = limit
	}
	added := task.DaysBetween(next, f.start)
	f.start = next
	f.first += added
	f.last += added
	shift := added * f.cfg.ColumnWidth
	f.offset += shift
	f.settled += shift
	logging.Debug("calendar", "loaded %d past days, window starts %s", added, task.DayKey(f.start))
	f.recompute()
	return true
}

// LoadMoreFuture appends a batch of days unless the window already reaches
// today+FutureDays. It reports whether days were added.
func (f *Feed) LoadMoreFuture() bool {
	limit := task.AddDays(f.today(), f.cfg.FutureDays)
	if !f.end.Before(limit) {
		return false
	}
	next := task.AddDays(f.end, f.cfg.BatchDays)
	if next.After(limit) {
		next = limit
	}
	added := task.DaysBetween(f.end, next)
	f.end = next
	logging.Debug("calendar", "loaded %d future days, window ends %s", added, task.DayKey(f.end))
	f.recompute()
	return true
}

// ScrollToToday centers today and forces the visible range around it. ok is
// false when today is outside the window.
func (f *Feed) ScrollToToday() (offset int, ok bool) {
	idx := task.DaysBetween(f.start, f.today())
	if idx < 0 || idx >= f.Len() {
		return f.offset, false
	}
	f.first = max(0, idx-f.cfg.BufferDays)
	f.last = min(f.Len()-1, idx+f.cfg.BufferDays)
	f.offset = f.centerOn(idx)
	f.settled = f.offset
	f.pending = false
	return f.offset, true
}

func (f *Feed) centerOn(idx int) int {
	col := f.cfg.ColumnWidth
	return f.clamp(idx*col - f.viewport/2 + col/2)
}

// Resize sets the viewport width and recomputes the visible range. Until
// the first Scroll, today stays centered in the new width.
func (f *Feed) Resize(viewport int) {
	f.viewport = max(0, viewport)
	if idx := task.DaysBetween(f.start, f.today()); !f.scrolled && idx >= 0 && idx < f.Len() {
		f.offset = f.centerOn(idx)
	} else {
		f.offset = f.clamp(f.offset)
	}
	f.recompute()
}

// Scroll moves the scroll position. The visible range is not recomputed
// until Settle; Scroll reports true only when no settle is pending yet, so
// bursts of scroll events collapse into one recompute at the latest offset.
func (f *Feed) Scroll(offset int) bool {
	f.scrolled = true
	f.offset = f.clamp(offset)
	if f.pending {
		return false
	}
	f.pending = true
	return true
}

// ScrollBy is Scroll relative to the current offset.
func (f *Feed) ScrollBy(delta int) bool { return f.Scroll(f.offset + delta) }

// Settle applies the latest scroll position. The visible range follows only
// if the offset moved at least ScrollThreshold since the last recompute.
// Settling near either end of the window loads the next batch there.
func (f *Feed) Settle() {
	f.pending = false
	if abs(f.offset-f.settled) >= f.cfg.ScrollThreshold {
		f.recompute()
	}
	if f.offset <= f.cfg.EdgeThreshold {
		f.LoadMorePast()
	}
	if f.offset+f.viewport >= f.Total()-f.cfg.EdgeThreshold {
		f.LoadMoreFuture()
	}
}

// Pending reports whether a scroll is waiting for Settle.
func (f *Feed) Pending() bool { return f.pending }

func (f *Feed) recompute() {
	col := f.cfg.ColumnWidth
	f.first = max(0, f.offset/col-f.cfg.BufferDays)
	f.last = min(f.Len()-1, int(math.Ceil(float64(f.offset+f.viewport)/float64(col)))+f.cfg.BufferDays)
	f.settled = f.offset
}

// Day is one materialized calendar column.
type Day struct {
	Date  time.Time
	Index int
	Today bool
	Tasks []task.Task
}

// Layout is the renderable slice of the window: placeholder width before and
// after the materialized days. Leading + len(Days)*ColumnWidth + Trailing
// always equals Total.
type Layout struct {
	Leading  int
	Days     []Day
	Trailing int
	Total    int
}

// Layout materializes the visible days, asking lookup for each day's tasks.
func (f *Feed) Layout(lookup func(day time.Time) []task.Task) Layout {
	col := f.cfg.ColumnWidth
	today := f.today()
	l := Layout{
		Leading:  f.first * col,
		Trailing: (f.Len() - 1 - f.last) * col,
		Total:    f.Total(),
	}
	for i := f.first; i <= f.last; i++ {
		d := task.AddDays(f.start, i)
		day := Day{Date: d, Index: i, Today: task.SameDay(d, today)}
		if lookup != nil {
			day.Tasks = lookup(d)
		}
		l.Days = append(l.Days, day)
	}
	return l
}

// DayAt returns the day under x, measured from the start of the window.
func (f *Feed) DayAt(x int) (time.Time, bool) {
	idx := x / f.cfg.ColumnWidth
	if x < 0 || idx >= f.Len() {
		return time.Time{}, false
	}
	return task.AddDays(f.start, idx), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
