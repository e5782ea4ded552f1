package task

import (
	"encoding/json"
	"fmt"
)

// Record is the persisted shape of one task. Timestamps are Unix
// milliseconds. Required fields are pointers so a missing field can be told
// apart from a zero value.
type Record struct {
	ID           string          `json:"id"`
	Title        *string         `json:"title"`
	Description  *string         `json:"description,omitempty"`
	Status       string          `json:"status"`
	IsInProgress *bool           `json:"isInProgress,omitempty"`
	Priority     string          `json:"priority,omitempty"`
	Order        *float64        `json:"order"`
	DueDate      *int64          `json:"dueDate,omitempty"`
	IsAllDay     *bool           `json:"isAllDay,omitempty"`
	Checklist    []SubTaskRecord `json:"checklist,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	CreatedAt    *int64          `json:"createdAt"`
	UpdatedAt    *int64          `json:"updatedAt"`
	CompletedAt  *int64          `json:"completedAt,omitempty"`
}

type SubTaskRecord struct {
	ID    *string `json:"id"`
	Title *string `json:"title"`
	Done  *bool   `json:"done"`
}

// ValidationError describes why a record was rejected.
type ValidationError struct {
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid task record: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid task record %s: %s %s", e.ID, e.Field, e.Reason)
}

// Validate checks r against the task schema.
func (r Record) Validate() error {
	bad := func(field, reason string) error {
		return &ValidationError{ID: r.ID, Field: field, Reason: reason}
	}
	switch {
	case r.ID == "":
		return bad("id", "is required")
	case r.Title == nil:
		return bad("title", "is required")
	case !Status(r.Status).Valid():
		return bad("status", fmt.Sprintf("has unknown value %q", r.Status))
	case r.Priority != "" && !Priority(r.Priority).Valid():
		return bad("priority", fmt.Sprintf("has unknown value %q", r.Priority))
	case r.Order == nil:
		return bad("order", "is required")
	case r.CreatedAt == nil:
		return bad("createdAt", "is required")
	case r.UpdatedAt == nil:
		return bad("updatedAt", "is required")
	}
	for i, st := range r.Checklist {
		if st.ID == nil || st.Title == nil || st.Done == nil {
			return bad(fmt.Sprintf("checklist[%d]", i), "needs id, title and done")
		}
	}
	return nil
}

// ToTask validates r and converts it into a normalized Task.
func (r Record) ToTask() (Task, error) {
	if err := r.Validate(); err != nil {
		return Task{}, err
	}
	t := Task{
		ID:        r.ID,
		Title:     *r.Title,
		Status:    Status(r.Status),
		Priority:  Priority(r.Priority),
		Order:     *r.Order,
		Tags:      r.Tags,
		CreatedAt: FromMillis(*r.CreatedAt),
		UpdatedAt: FromMillis(*r.UpdatedAt),
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.IsInProgress != nil {
		t.InProgress = *r.IsInProgress
	}
	if r.DueDate != nil {
		t.DueDate = FromMillis(*r.DueDate)
	}
	if r.IsAllDay != nil {
		t.AllDay = *r.IsAllDay
	}
	if r.CompletedAt != nil {
		t.CompletedAt = FromMillis(*r.CompletedAt)
	}
	for _, st := range r.Checklist {
		t.Checklist = append(t.Checklist, SubTask{ID: *st.ID, Title: *st.Title, Done: *st.Done})
	}
	Normalize(&t, t.UpdatedAt)
	return t, nil
}

// FromTask converts t into its persisted shape.
func FromTask(t Task) Record {
	title := t.Title
	order := t.Order
	created := Millis(t.CreatedAt)
	updated := Millis(t.UpdatedAt)
	r := Record{
		ID:        t.ID,
		Title:     &title,
		Status:    string(t.Status),
		Priority:  string(t.Priority),
		Order:     &order,
		CreatedAt: &created,
		UpdatedAt: &updated,
		Tags:      DedupeTags(t.Tags),
	}
	if t.Description != "" {
		desc := t.Description
		r.Description = &desc
	}
	if t.InProgress {
		v := true
		r.IsInProgress = &v
	}
	if t.HasDueDate() {
		due := Millis(t.DueDate)
		r.DueDate = &due
	}
	if t.AllDay {
		v := true
		r.IsAllDay = &v
	}
	if !t.CompletedAt.IsZero() {
		done := Millis(t.CompletedAt)
		r.CompletedAt = &done
	}
	for _, st := range t.Checklist {
		id, title, done := st.ID, st.Title, st.Done
		r.Checklist = append(r.Checklist, SubTaskRecord{ID: &id, Title: &title, Done: &done})
	}
	return r
}

// DecodeRecords decodes a JSON array of records one element at a time.
// Elements that fail to decode or validate are returned in rejected instead
// of failing the whole batch.
func DecodeRecords(raw []json.RawMessage) (tasks []Task, rejected []error) {
	for i, msg := range raw {
		var r Record
		if err := json.Unmarshal(msg, &r); err != nil {
			rejected = append(rejected, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		t, err := r.ToTask()
		if err != nil {
			rejected = append(rejected, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, rejected
}
