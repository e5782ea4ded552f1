package view

import (
	"sort"
	"strings"

	"dida/internal/task"
)

// Search keeps tasks whose title contains query, ignoring case. A blank
// query keeps everything.
func Search(tasks []task.Task, query string) []task.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tasks
	}
	var out []task.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), q) {
			out = append(out, t)
		}
	}
	return out
}

// AllTags returns every tag used by any task, sorted.
func AllTags(tasks []task.Task) []string {
	set := map[string]struct{}{}
	for _, t := range tasks {
		for _, tag := range t.Tags {
			set[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// AvailableTags suggests known tags that t does not carry yet, narrowed to
// those containing query (case-insensitive).
func AvailableTags(tasks []task.Task, t task.Task, query string) []string {
	have := make(map[string]struct{}, len(t.Tags))
	for _, tag := range t.Tags {
		have[tag] = struct{}{}
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var out []string
	for _, tag := range AllTags(tasks) {
		if _, ok := have[tag]; ok {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(tag), q) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
