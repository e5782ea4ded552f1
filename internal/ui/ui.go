package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"dida/internal/calendar"
	"dida/internal/config"
	"dida/internal/engine"
	"dida/internal/logging"
	"dida/internal/parse"
	"dida/internal/task"
	"dida/internal/view"
)

type screen int

const (
	screenList screen = iota
	screenCalendar
	screenMatrix
)

type mode int

const (
	modeBrowse mode = iota
	modeAdd
	modeSearch
	modeRename
	modeSubTask
	modeTag
)

// settleDelay is how long calendar scrolling must pause before the visible
// range is recomputed.
const settleDelay = 120 * time.Millisecond

const inputPlaceholder = "Task title, e.g. 买牛奶 !p1 明天"

type settleMsg struct{}

type failureMsg engine.Failure

type Model struct {
	eng      *engine.Engine
	cfg      config.Config
	feed     *calendar.Feed
	failures <-chan engine.Failure

	screen     screen
	mode       mode
	input      textinput.Model
	status     string
	width      int
	confirmDel bool
	pendingDel *task.Task

	detail    bool
	subCursor int
}

// New builds the front end model. failures may be nil; when set, each
// persistence failure is shown on the status line.
func New(eng *engine.Engine, cfg config.Config, failures <-chan engine.Failure) Model {
	ti := textinput.New()
	ti.Placeholder = inputPlaceholder
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		eng:      eng,
		cfg:      cfg,
		feed:     calendar.New(cfg.Feed(), eng.Now),
		failures: failures,
		input:    ti,
		status:   fmt.Sprintf("Press '%s' to add, '%s' to toggle, '%s' to delete.", cfg.Keys.Add, keyName(cfg.Keys.Toggle), cfg.Keys.Delete),
	}
	m.syncSelection()
	return m
}

// Run drives the terminal front end until the user quits.
func Run(eng *engine.Engine, cfg config.Config, failures <-chan engine.Failure) error {
	program := tea.NewProgram(New(eng, cfg, failures), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.waitFailure()
}

func (m Model) waitFailure() tea.Cmd {
	if m.failures == nil {
		return nil
	}
	ch := m.failures
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return failureMsg(f)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		if m.mode != modeBrowse {
			return m.updateInputMode(msg.String(), msg)
		}
		if m.detail {
			return m.updateDetailMode(msg.String())
		}
		return m.updateBrowseMode(msg.String())
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(10, msg.Width-10)
		m.feed.Resize(msg.Width)
	case settleMsg:
		m.feed.Settle()
	case failureMsg:
		m.status = fmt.Sprintf("not saved (%s): %v", msg.Op, msg.Err)
		return m, m.waitFailure()
	}
	return m, nil
}

func (m Model) updateBrowseMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case "ctrl+c", k.Quit:
		return m, tea.Quit
	case k.ListView:
		m.screen = screenList
	case k.CalendarView:
		m.screen = screenCalendar
	case k.MatrixView:
		m.screen = screenMatrix
	case k.Add:
		return m.startInput(modeAdd, "", "Add: title with optional !p0-!p2 and 今天/明天/后天/周X")
	case k.Search:
		m.input.Placeholder = "Search titles"
		return m.startInput(modeSearch, m.eng.SearchQuery(), "Search: type to filter, Enter to keep, Esc to clear")
	}

	if m.screen == screenCalendar {
		return m.updateCalendarKeys(key)
	}
	return m.updateListKeys(key)
}

func (m Model) updateListKeys(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	switch key {
	case k.Down, "down":
		m.moveCursor(1)
	case k.Up, "up":
		m.moveCursor(-1)
	case k.GroupBy:
		by := m.eng.GroupBy().Toggle()
		m.eng.SetGroupBy(by)
		m.status = "Grouped by " + string(by)
	case k.MoveUp:
		m.drag(-1)
	case k.MoveDown:
		m.drag(1)
	}

	t, ok := m.eng.Selected()
	if !ok {
		return m, nil
	}
	switch key {
	case k.Toggle:
		m.eng.ToggleTaskStatus(t.ID)
		m.status = "Toggled task"
	case k.InProgress:
		if t.IsInProgress() {
			m.eng.SetTaskStatus(t.ID, task.StatusTodo)
			m.status = "Paused task"
		} else {
			m.eng.SetTaskStatus(t.ID, task.StatusInProgress)
			m.status = "Task in progress"
		}
	case k.Priority:
		next := nextPriority(t.Priority)
		m.eng.UpdateTask(t.ID, task.Patch{Priority: &next})
		m.status = "Priority: " + view.PriorityTitle(next)
	case k.Delete:
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Title)
	case k.Rename:
		return m.startInput(modeRename, t.Title, "Rename task")
	case k.Detail:
		m.detail = true
		m.subCursor = 0
		m.status = "Detail: space toggles an item, s adds, # edits tags, esc closes"
	}
	return m, nil
}

func (m Model) updateCalendarKeys(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	col := m.cfg.Feed().ColumnWidth
	switch key {
	case k.ScrollLeft, "left":
		return m, m.scroll(-col)
	case k.ScrollRight, "right":
		return m, m.scroll(col)
	case k.Today:
		if _, ok := m.feed.ScrollToToday(); !ok {
			m.status = "Today is outside the loaded range"
		}
	}
	return m, nil
}

func (m Model) scroll(delta int) tea.Cmd {
	if !m.feed.ScrollBy(delta) {
		return nil
	}
	return tea.Tick(settleDelay, func(time.Time) tea.Msg { return settleMsg{} })
}

func (m Model) updateDetailMode(key string) (tea.Model, tea.Cmd) {
	k := m.cfg.Keys
	t, ok := m.eng.Selected()
	if !ok {
		m.detail = false
		return m, nil
	}
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case k.Cancel, k.Detail, k.Quit:
		m.detail = false
		m.status = ""
	case k.Down, "down":
		m.subCursor = clampCursor(m.subCursor+1, len(t.Checklist))
	case k.Up, "up":
		m.subCursor = clampCursor(m.subCursor-1, len(t.Checklist))
	case k.Toggle:
		if len(t.Checklist) > 0 {
			st := t.Checklist[clampCursor(m.subCursor, len(t.Checklist))]
			m.eng.ToggleSubTask(t.ID, st.ID)
		}
	case k.Delete:
		if len(t.Checklist) > 0 {
			st := t.Checklist[clampCursor(m.subCursor, len(t.Checklist))]
			m.eng.DeleteSubTask(t.ID, st.ID)
			m.subCursor = clampCursor(m.subCursor, len(t.Checklist)-1)
		}
	case k.Rename:
		if len(t.Checklist) > 0 {
			st := t.Checklist[clampCursor(m.subCursor, len(t.Checklist))]
			return m.startInput(modeRename, st.Title, "Rename item")
		}
		return m.startInput(modeRename, t.Title, "Rename task")
	case k.AddSubTask:
		return m.startInput(modeSubTask, "", "New checklist item")
	case k.AddTag:
		return m.startInput(modeTag, "", "Tags: name adds, -name removes, =a,b replaces, Tab completes")
	}
	return m, nil
}

func (m Model) startInput(md mode, value, status string) (tea.Model, tea.Cmd) {
	m.mode = md
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.status = status
	return m, m.input.Focus()
}

func (m Model) endInput(status string) Model {
	m.mode = modeBrowse
	m.input.SetValue("")
	m.input.Blur()
	m.input.Placeholder = inputPlaceholder
	m.status = status
	return m
}

func (m Model) updateInputMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	case m.cfg.Keys.Cancel:
		if m.mode == modeSearch {
			m.eng.SetSearchQuery("")
			m.syncSelection()
		}
		return m.endInput("Cancelled"), nil
	case "tab":
		if m.mode == modeTag {
			m.completeTag()
			return m, nil
		}
	case m.cfg.Keys.Confirm:
		return m.submitInput(), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.eng.SetSearchQuery(m.input.Value())
		m.syncSelection()
	}
	return m, cmd
}

func (m Model) submitInput() Model {
	value := strings.TrimSpace(m.input.Value())
	switch m.mode {
	case modeSearch:
		return m.endInput(fmt.Sprintf("%d tasks match", len(m.eng.Visible())))
	case modeAdd:
		res := parse.Parse(value, m.eng.Now())
		if res.Title == "" {
			m.status = "Title cannot be empty"
			return m
		}
		p := res.Patch()
		if m.screen == screenCalendar && res.DueDate.IsZero() {
			if day, ok := m.focusedDay(); ok {
				p.DueDate = &day
				p.AllDay = task.Ptr(true)
			}
		}
		t, _ := m.eng.AddTask(p)
		m.eng.Select(t.ID)
		logging.Debug("ui", "added %s %q", t.ID, logging.Truncate(t.Title, 40))
		return m.endInput("Added task")
	}

	t, ok := m.eng.Selected()
	if !ok {
		return m.endInput("No task selected")
	}
	switch m.mode {
	case modeRename:
		if value == "" {
			m.status = "Title cannot be empty"
			return m
		}
		if m.detail && len(t.Checklist) > 0 {
			st := t.Checklist[clampCursor(m.subCursor, len(t.Checklist))]
			m.eng.RenameSubTask(t.ID, st.ID, value)
			return m.endInput("Renamed item")
		}
		m.eng.UpdateTask(t.ID, task.Patch{Title: &value})
		return m.endInput("Renamed task")
	case modeSubTask:
		if value == "" {
			return m.endInput("Cancelled")
		}
		m.eng.AddSubTask(t.ID, value)
		return m.endInput("Added item")
	case modeTag:
		applyTags(m.eng, t, value)
		return m.endInput("Tags updated")
	}
	return m.endInput("")
}

// applyTags interprets tag input: "-a" removes a, "=a,b" replaces all tags,
// anything else is a comma separated list of tags to add.
func applyTags(eng *engine.Engine, t task.Task, value string) {
	switch {
	case value == "":
	case strings.HasPrefix(value, "="):
		eng.SetTags(t.ID, splitTags(value[1:]))
	case strings.HasPrefix(value, "-"):
		for _, tag := range splitTags(value[1:]) {
			eng.RemoveTag(t.ID, tag)
		}
	default:
		for _, tag := range splitTags(value) {
			eng.AddTag(t.ID, tag)
		}
	}
}

func splitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (m *Model) completeTag() {
	t, ok := m.eng.Selected()
	if !ok {
		return
	}
	value := m.input.Value()
	prefix := ""
	query := value
	if i := strings.LastIndex(value, ","); i >= 0 {
		prefix, query = value[:i+1], value[i+1:]
	}
	suggestions := view.AvailableTags(m.eng.Tasks(), t, query)
	if len(suggestions) == 0 {
		return
	}
	m.input.SetValue(prefix + suggestions[0])
	m.input.CursorEnd()
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", m.cfg.Keys.Cancel:
		m.status = "Delete cancelled"
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			break
		}
		ids := m.selectable()
		i := slices.Index(ids, m.pendingDel.ID)
		m.eng.DeleteTask(m.pendingDel.ID)
		m.status = "Deleted task"
		if ids = m.selectable(); len(ids) > 0 {
			m.eng.Select(ids[clampCursor(i, len(ids))])
		}
	default:
		return m, nil
	}
	m.confirmDel = false
	m.pendingDel = nil
	return m, nil
}

// selectable lists task ids in display order: open tasks by group, then
// the completed group.
func (m Model) selectable() []string {
	l := m.eng.List()
	ids := l.IDs()
	for _, t := range l.Completed.Tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// syncSelection keeps the selection on a visible task.
func (m Model) syncSelection() {
	ids := m.selectable()
	if len(ids) == 0 {
		m.eng.Select("")
		return
	}
	if !slices.Contains(ids, m.eng.SelectedID()) {
		m.eng.Select(ids[0])
	}
}

func (m Model) moveCursor(delta int) {
	ids := m.selectable()
	if len(ids) == 0 {
		return
	}
	i := slices.Index(ids, m.eng.SelectedID())
	if i < 0 {
		m.eng.Select(ids[0])
		return
	}
	m.eng.Select(ids[clampCursor(i+delta, len(ids))])
}

// drag moves the selected open task one slot up or down, taking on the
// grouping key of the task it lands on.
func (m *Model) drag(delta int) {
	l := m.eng.List()
	ids := l.IDs()
	active := m.eng.SelectedID()
	i := slices.Index(ids, active)
	if i < 0 {
		return
	}
	j := i + delta
	if j < 0 || j >= len(ids) {
		return
	}
	by := m.eng.GroupBy()
	drop, ok := view.DragTarget(l, by, active, ids[j])
	if !ok {
		return
	}
	m.eng.MoveTask(active, drop.Order, drop.Patch)
	m.status = "Moved task"
}

func (m Model) focusedDay() (time.Time, bool) {
	return m.feed.DayAt(m.feed.Offset() + m.feed.Viewport()/2)
}

func nextPriority(p task.Priority) task.Priority {
	i := slices.Index(task.Priorities, p)
	return task.Priorities[(i+1)%len(task.Priorities)]
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func keyName(k string) string {
	if k == " " {
		return "space"
	}
	return k
}
