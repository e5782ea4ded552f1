package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"dida/internal/calendar"
	"dida/internal/config"
	"dida/internal/task"
	"dida/internal/view"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	todayStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	panelStyle    = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).Padding(0, 1)
	tabStyle      = lipgloss.NewStyle().Padding(0, 1)
	activeTab     = tabStyle.Reverse(true)
)

var priorityColors = map[task.Priority]lipgloss.Color{
	task.PriorityP0: lipgloss.Color("9"),
	task.PriorityP1: lipgloss.Color("214"),
	task.PriorityP2: lipgloss.Color("12"),
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.screen {
	case screenCalendar:
		b.WriteString(m.renderCalendar())
	case screenMatrix:
		b.WriteString(m.renderMatrix())
	default:
		b.WriteString(m.renderList())
	}

	b.WriteString("\n")
	if m.detail {
		b.WriteString(m.renderDetail())
		b.WriteString("\n")
	}
	if m.mode != modeBrowse {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(renderHelp(m.cfg.Keys, m.screen)))
	return b.String()
}

func (m Model) renderTabs() string {
	names := []string{"List", "Calendar", "Matrix"}
	var tabs []string
	for i, name := range names {
		style := tabStyle
		if screen(i) == m.screen {
			style = activeTab
		}
		tabs = append(tabs, style.Render(fmt.Sprintf("%d %s", i+1, name)))
	}
	line := titleStyle.Render("dida") + "  " + lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
	if q := m.eng.SearchQuery(); strings.TrimSpace(q) != "" {
		line += mutedStyle.Render("  search: " + q)
	}
	return line
}

func (m Model) renderList() string {
	l := m.eng.List()
	if len(l.Groups) == 0 && len(l.Completed.Tasks) == 0 {
		return fmt.Sprintf("No tasks yet. Press '%s' to add one.", m.cfg.Keys.Add)
	}
	now := m.eng.Now()
	selected := m.eng.SelectedID()

	var b strings.Builder
	groups := l.Groups
	if len(l.Completed.Tasks) > 0 {
		groups = append(groups, l.Completed)
	}
	for _, g := range groups {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", g.Title, len(g.Tasks))))
		b.WriteString("\n")
		for _, t := range g.Tasks {
			b.WriteString(renderRow(t, t.ID == selected, now))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderRow(t task.Task, selected bool, now time.Time) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}
	box := "[ ]"
	switch {
	case t.IsCompleted():
		box = "[x]"
	case t.IsInProgress():
		box = "[~]"
	}

	title := t.Title
	switch {
	case t.IsCompleted():
		title = doneStyle.Render(title)
	case selected:
		title = selectedStyle.Render(title)
	}

	var meta []string
	if c, ok := priorityColors[t.Priority]; ok {
		meta = append(meta, lipgloss.NewStyle().Foreground(c).Render(string(t.Priority)))
	}
	if t.HasDueDate() {
		meta = append(meta, formatDue(t.DueDate, now))
	}
	if n := len(t.Checklist); n > 0 {
		meta = append(meta, fmt.Sprintf("%d/%d", t.DoneCount(), n))
	}
	for _, tag := range t.Tags {
		meta = append(meta, "#"+tag)
	}
	line := cursor + box + " " + title
	if len(meta) > 0 {
		line += "  " + mutedStyle.Render(strings.Join(meta, " "))
	}
	return line
}

func formatDue(due, now time.Time) string {
	today := task.StartOfDay(now)
	switch task.DaysBetween(today, due) {
	case 0:
		return view.TitleToday
	case 1:
		return view.TitleTomorrow
	}
	if due.Year() != now.Year() {
		return due.Format("2006-01-02")
	}
	return due.Format("Jan 2")
}

func (m Model) renderDetail() string {
	t, ok := m.eng.Selected()
	if !ok {
		return "No task selected"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Status    : %s\n", humanStatus(t)))
	b.WriteString(fmt.Sprintf("Priority  : %s\n", view.PriorityTitle(t.Priority)))
	due := "(empty)"
	if t.HasDueDate() {
		due = t.DueDate.Format("2006-01-02")
	}
	b.WriteString(fmt.Sprintf("Due       : %s\n", due))
	b.WriteString(fmt.Sprintf("Tags      : %s\n", emptyPlaceholder(strings.Join(t.Tags, ", "))))
	if t.Description != "" {
		b.WriteString(fmt.Sprintf("Notes     : %s\n", t.Description))
	}
	b.WriteString(fmt.Sprintf("Checklist : %d/%d\n", t.DoneCount(), len(t.Checklist)))
	for i, st := range t.Checklist {
		prefix := "  "
		if i == clampCursor(m.subCursor, len(t.Checklist)) {
			prefix = "> "
		}
		box := "[ ]"
		if st.Done {
			box = "[x]"
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", prefix, box, st.Title))
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderCalendar() string {
	cal := m.eng.Calendar()
	l := m.feed.Layout(cal.On)
	col := m.cfg.Feed().ColumnWidth
	offset := m.feed.Offset()
	viewport := m.feed.Viewport()
	if viewport == 0 {
		viewport = 80
	}

	var cols []string
	for i, d := range l.Days {
		x := l.Leading + i*col
		if x+col <= offset || x >= offset+viewport {
			continue
		}
		cols = append(cols, renderDay(d, col))
	}
	start, end := m.feed.Window()
	header := mutedStyle.Render(fmt.Sprintf("%s to %s", task.DayKey(start), task.DayKey(end)))
	body := lipgloss.NewStyle().MaxWidth(viewport).Render(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	return header + "\n" + body
}

func renderDay(d calendar.Day, width int) string {
	style := lipgloss.NewStyle().Width(width - 1).PaddingRight(1)
	head := d.Date.Format("Mon 01/02")
	if d.Today {
		head = todayStyle.Render(head + " 今天")
	} else {
		head = headerStyle.Render(head)
	}
	lines := []string{head}
	for _, t := range d.Tasks {
		lines = append(lines, truncate("• "+t.Title, width-2))
	}
	if len(d.Tasks) == 0 {
		lines = append(lines, mutedStyle.Render("-"))
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m Model) renderMatrix() string {
	mx := m.eng.Matrix()
	width := 38
	if m.width > 0 {
		width = max(20, m.width/2-2)
	}
	var cells []string
	for _, q := range view.Quadrants {
		var b strings.Builder
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%s)", q.Title(), q)))
		for _, t := range mx.In(q) {
			b.WriteString("\n")
			line := "• " + t.Title
			if t.HasDueDate() {
				line += " " + formatDue(t.DueDate, m.eng.Now())
			}
			b.WriteString(truncate(line, width-4))
		}
		if len(mx.In(q)) == 0 {
			b.WriteString("\n" + mutedStyle.Render("(empty)"))
		}
		cells = append(cells, panelStyle.Width(width).Render(b.String()))
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top, cells[0], cells[1])
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, cells[2], cells[3])
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func renderHelp(k config.Keymap, s screen) string {
	common := fmt.Sprintf("%s/%s/%s views • %s add • %s search • %s quit",
		k.ListView, k.CalendarView, k.MatrixView, k.Add, k.Search, k.Quit)
	if s == screenCalendar {
		return fmt.Sprintf("%s/%s scroll • %s today • %s", k.ScrollLeft, k.ScrollRight, k.Today, common)
	}
	return fmt.Sprintf("%s/%s move • %s/%s drag • %s toggle • %s in progress • %s priority • %s group • %s detail • %s delete • %s",
		k.Up, k.Down, k.MoveUp, k.MoveDown, keyName(k.Toggle), k.InProgress, k.Priority, k.GroupBy, k.Detail, k.Delete, common)
}

func humanStatus(t task.Task) string {
	switch {
	case t.IsCompleted():
		return "completed " + t.CompletedAt.Format("2006-01-02 15:04")
	case t.IsInProgress():
		return view.TitleInProgress
	}
	return "todo"
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
