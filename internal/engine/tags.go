package engine

import (
	"slices"
	"strings"

	"dida/internal/task"
)

// AddTag adds tag to the task unless it is blank or already present.
func (e *Engine) AddTag(taskID, tag string) *Commit {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return resolvedCommit(nil)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("add-tag", taskID, func(t *task.Task) bool {
		if slices.Contains(t.Tags, tag) {
			return false
		}
		t.Tags = append(t.Tags, tag)
		return true
	})
}

func (e *Engine) RemoveTag(taskID, tag string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("remove-tag", taskID, func(t *task.Task) bool {
		n := len(t.Tags)
		t.Tags = slices.DeleteFunc(t.Tags, func(s string) bool { return s == tag })
		return len(t.Tags) != n
	})
}

// SetTags replaces the task's tags. Duplicates collapse to the first copy.
func (e *Engine) SetTags(taskID string, tags []string) *Commit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update("set-tags", taskID, func(t *task.Task) bool {
		t.Tags = task.DedupeTags(tags)
		return true
	})
}
