package task

import "time"

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days, keeping wall-clock time across DST.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween counts calendar days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	a = StartOfDay(a)
	b = StartOfDay(b.In(a.Location()))
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// DayKey formats t's local date as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// FromMillis converts a millisecond timestamp to local time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).Local()
}

// Millis converts t to a millisecond timestamp; zero time maps to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
