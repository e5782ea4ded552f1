package ui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"dida/internal/config"
	"dida/internal/engine"
	"dida/internal/storage"
	"dida/internal/task"
	"dida/internal/view"
)

var now = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) (Model, *engine.Engine, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "dida.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store, engine.Options{
		Now:   func() time.Time { return now },
		Retry: engine.RetryPolicy{MaxAttempts: 1},
	})
	require.NoError(t, eng.Load(context.Background()))
	t.Cleanup(func() { eng.Close(context.Background()) })
	return New(eng, config.Default(), nil), eng, store
}

func keys(m Model, in ...string) Model {
	for _, k := range in {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case " ":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestAddParsesQuickInput(t *testing.T) {
	m, eng, _ := newTestModel(t)

	m = keys(m, "a", "写周报 !p1 明天", "enter")
	require.Equal(t, modeBrowse, m.mode)
	require.Equal(t, 1, eng.Len())

	got, ok := eng.Selected()
	require.True(t, ok)
	require.Equal(t, "写周报", got.Title)
	require.Equal(t, task.PriorityP1, got.Priority)
	require.True(t, got.AllDay)
	require.True(t, task.SameDay(got.DueDate, task.AddDays(now, 1)))
	require.Contains(t, m.View(), "写周报")

	m = keys(m, "a", "   ", "enter")
	require.Equal(t, modeAdd, m.mode, "blank title keeps the prompt open")
	require.Equal(t, "Title cannot be empty", m.status)
	m = keys(m, "esc")
	require.Equal(t, modeBrowse, m.mode)
	require.Equal(t, 1, eng.Len())
}

func TestDragToggleAndDelete(t *testing.T) {
	m, eng, store := newTestModel(t)
	m = keys(m, "a", "first !p1", "enter", "a", "second !p2", "enter")

	second, _ := eng.Selected()
	require.Equal(t, "second", second.Title)

	m = keys(m, "K")
	ids := eng.List().IDs()
	require.Equal(t, second.ID, ids[0])
	moved, _ := eng.Get(second.ID)
	require.Equal(t, task.PriorityP1, moved.Priority, "dropping on a p1 task takes its priority")

	m = keys(m, " ")
	done, _ := eng.Get(second.ID)
	require.True(t, done.IsCompleted())

	m = keys(m, "d")
	require.True(t, m.confirmDel)
	m = keys(m, "n")
	require.False(t, m.confirmDel)
	require.Equal(t, 2, eng.Len())

	m = keys(m, "d", "y")
	require.Equal(t, 1, eng.Len())
	_, ok := eng.Get(second.ID)
	require.False(t, ok)
	require.NotEmpty(t, eng.SelectedID(), "selection moves to a remaining task")

	require.NoError(t, eng.Flush(context.Background()))
	stored, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "first", stored[0].Title)
}

func TestSearchFiltersLive(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m = keys(m, "a", "buy milk", "enter", "a", "call mom", "enter")

	m = keys(m, "/", "milk")
	require.Equal(t, "milk", eng.SearchQuery())
	require.Len(t, eng.Visible(), 1)

	m = keys(m, "esc")
	require.Empty(t, eng.SearchQuery())
	require.Len(t, eng.Visible(), 2)
}

func TestDetailChecklist(t *testing.T) {
	m, eng, _ := newTestModel(t)
	m = keys(m, "a", "pack", "enter", "enter")
	require.True(t, m.detail)

	m = keys(m, "s", "socks", "enter", "s", "charger", "enter")
	got, _ := eng.Selected()
	require.Len(t, got.Checklist, 2)

	m = keys(m, " ")
	got, _ = eng.Selected()
	require.True(t, got.Checklist[0].Done)
	require.True(t, got.IsInProgress())

	m = keys(m, "j", " ")
	got, _ = eng.Selected()
	require.True(t, got.IsCompleted())

	m = keys(m, "#", "trip, home", "enter")
	got, _ = eng.Selected()
	require.Equal(t, []string{"trip", "home"}, got.Tags)

	m = keys(m, "esc")
	require.False(t, m.detail)
}

func TestViewsRender(t *testing.T) {
	m, _, _ := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(Model)
	m = keys(m, "a", "demo !p0 今天", "enter")

	m = keys(m, "2")
	require.Equal(t, screenCalendar, m.screen)
	require.Contains(t, m.View(), "今天")

	m = keys(m, "3")
	out := m.View()
	require.Equal(t, screenMatrix, m.screen)
	require.Contains(t, out, "demo")
}

func TestFailureShownOnStatusLine(t *testing.T) {
	m, _, _ := newTestModel(t)
	ch := make(chan engine.Failure, 1)
	m.failures = ch
	ch <- engine.Failure{Op: "add", TaskID: "x", Err: context.DeadlineExceeded}

	msg := m.waitFailure()()
	next, cmd := m.Update(msg)
	require.True(t, strings.HasPrefix(next.(Model).status, "not saved (add)"))
	require.NotNil(t, cmd, "keeps listening for failures")
}

func TestHelpers(t *testing.T) {
	require.Equal(t, task.PriorityP1, nextPriority(task.PriorityP0))
	require.Equal(t, task.PriorityP0, nextPriority(task.PriorityNone))
	require.Equal(t, []string{"a", "b"}, splitTags(" a, ,b,"))
	require.Equal(t, 0, clampCursor(-1, 3))
	require.Equal(t, 2, clampCursor(5, 3))
	require.Equal(t, 0, clampCursor(1, 0))
	require.Equal(t, "space", keyName(" "))
	require.Equal(t, view.TitleToday, formatDue(task.StartOfDay(now), now))
	require.Equal(t, "2027-01-05", formatDue(time.Date(2027, 1, 5, 0, 0, 0, 0, time.UTC), now))
	require.Equal(t, "ab…", truncate("abcdef", 3))
}
