package task

import (
	"slices"
	"time"
)

// Patch is a partial update. Nil fields are left untouched. Optional
// timestamps are cleared through the matching Clear flag.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	InProgress  *bool
	Priority    *Priority
	Order       *float64
	DueDate     *time.Time
	ClearDue    bool
	AllDay      *bool
	Checklist   *[]SubTask
	Tags        *[]string
	UpdatedAt   *time.Time
	CompletedAt *time.Time
	ClearDone   bool
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T { return &v }

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply merges p into t without enforcing invariants; callers run Normalize.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.InProgress != nil {
		t.InProgress = *p.InProgress
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.ClearDue {
		t.DueDate = time.Time{}
	} else if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.AllDay != nil {
		t.AllDay = *p.AllDay
	}
	if p.Checklist != nil {
		t.Checklist = slices.Clone(*p.Checklist)
	}
	if p.Tags != nil {
		t.Tags = DedupeTags(*p.Tags)
	}
	if p.UpdatedAt != nil {
		t.UpdatedAt = *p.UpdatedAt
	}
	if p.ClearDone {
		t.CompletedAt = time.Time{}
	} else if p.CompletedAt != nil {
		t.CompletedAt = *p.CompletedAt
	}
}

// Diff returns the patch that turns before into after.
func Diff(before, after Task) Patch {
	var p Patch
	if before.Title != after.Title {
		p.Title = Ptr(after.Title)
	}
	if before.Description != after.Description {
		p.Description = Ptr(after.Description)
	}
	if before.Status != after.Status {
		p.Status = Ptr(after.Status)
	}
	if before.InProgress != after.InProgress {
		p.InProgress = Ptr(after.InProgress)
	}
	if before.Priority != after.Priority {
		p.Priority = Ptr(after.Priority)
	}
	if before.Order != after.Order {
		p.Order = Ptr(after.Order)
	}
	if !before.DueDate.Equal(after.DueDate) {
		if after.DueDate.IsZero() {
			p.ClearDue = true
		} else {
			p.DueDate = Ptr(after.DueDate)
		}
	}
	if before.AllDay != after.AllDay {
		p.AllDay = Ptr(after.AllDay)
	}
	if !slices.Equal(before.Checklist, after.Checklist) {
		p.Checklist = Ptr(slices.Clone(after.Checklist))
	}
	if !slices.Equal(before.Tags, after.Tags) {
		p.Tags = Ptr(slices.Clone(after.Tags))
	}
	if !before.UpdatedAt.Equal(after.UpdatedAt) {
		p.UpdatedAt = Ptr(after.UpdatedAt)
	}
	if !before.CompletedAt.Equal(after.CompletedAt) {
		if after.CompletedAt.IsZero() {
			p.ClearDone = true
		} else {
			p.CompletedAt = Ptr(after.CompletedAt)
		}
	}
	return p
}
