package engine

import (
	"dida/internal/task"
	"dida/internal/view"
)

func (e *Engine) SetSearchQuery(q string) {
	e.mu.Lock()
	e.search = q
	e.mu.Unlock()
}

func (e *Engine) SearchQuery() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.search
}

// SetGroupBy ignores modes other than priority and date.
func (e *Engine) SetGroupBy(by view.GroupBy) {
	if _, ok := view.ParseGroupBy(string(by)); !ok {
		return
	}
	e.mu.Lock()
	e.groupBy = by
	e.mu.Unlock()
}

func (e *Engine) GroupBy() view.GroupBy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.groupBy
}

// Select marks id as the selected task. An empty id clears the selection;
// an unknown id is ignored.
func (e *Engine) Select(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id != "" && e.indexOf(id) < 0 {
		return
	}
	e.selected = id
}

func (e *Engine) SelectedID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.selected
}

func (e *Engine) Selected() (task.Task, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.selected == "" {
		return task.Task{}, false
	}
	if i := e.indexOf(e.selected); i >= 0 {
		return e.tasks[i].Clone(), true
	}
	return task.Task{}, false
}

// Visible returns the collection filtered by the current search query.
func (e *Engine) Visible() []task.Task {
	e.mu.RLock()
	q := e.search
	e.mu.RUnlock()
	return view.Search(e.Tasks(), q)
}

// List projects the visible tasks with the current group-by mode.
func (e *Engine) List() view.List {
	return view.GroupList(e.Visible(), e.GroupBy(), e.now())
}

func (e *Engine) Matrix() view.Matrix {
	return view.MatrixOf(e.Visible(), e.now())
}

func (e *Engine) Calendar() view.Calendar {
	return view.CalendarOf(e.Visible(), e.now().Location())
}
