package ui

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"taskmaster/internal/app"
	"taskmaster/internal/config"
	"taskmaster/internal/notify"
	"taskmaster/internal/task"
)

type memBackend struct{}

func (memBackend) Load() ([]task.Task, error) { return nil, nil }
func (memBackend) Save([]task.Task) error { return nil }

type nopNotifier struct{}

func (nopNotifier) RequestPermission(context.Context) error { return nil }
func (nopNotifier) Emit(string, string) error { return nil }

func newTestModel(t *testing.T) (Model, *app.App) {
	t.Helper()
	cfg, err := config.LoadOrCreate(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.UndoWindow = "1h"
	a := app.Build(memBackend{}, cfg, zerolog.Nop(), nopNotifier{})
	t.Cleanup(func() { _ = a.Close() })
	return New(a.Core, cfg, nil), a
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

func TestAddTaskThroughForm(t *testing.T) {
	m, a := newTestModel(t)

	m = press(t, m, "a", "Pay rent", "tab", "tab", "tab", "2030-01-02 14:00", "tab")
	m = press(t, m, "10", "enter")

	if m.form != nil {
		t.Fatalf("Expected form to close, status %q", m.status)
	}
	visible := a.Core.Visible()
	if len(visible) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(visible))
	}
	got := visible[0]
	if got.Title != "Pay rent" || got.Priority != task.PriorityMedium || got.ReminderMinutes != 10 {
		t.Errorf("Unexpected task %+v", got)
	}
	want := time.Date(2030, 1, 2, 14, 0, 0, 0, time.Local)
	if !got.Due.Valid || !got.Due.Time.Equal(want) {
		t.Errorf("Expected due %v, got %+v", want, got.Due)
	}
	if !strings.Contains(m.View(), "Task created") {
		t.Error("Expected creation banner in the view")
	}
}

func TestEmptyTitleKeepsFormOpen(t *testing.T) {
	m, a := newTestModel(t)
	m = press(t, m, "a", "enter", "enter", "enter", "enter", "enter")

	if m.form == nil {
		t.Fatal("Expected form to stay open")
	}
	if !strings.Contains(m.status, "title cannot be empty") {
		t.Errorf("Unexpected status %q", m.status)
	}
	if len(a.Core.Visible()) != 0 {
		t.Error("Expected no task created")
	}

	m = press(t, m, "esc")
	if m.form != nil || m.mode != modeList {
		t.Error("Expected esc to close the form")
	}
}

func TestDeleteAndUndoKeys(t *testing.T) {
	m, a := newTestModel(t)
	tk, _ := a.Core.Create(task.Input{Title: "Groceries"})
	m.reload()

	m = press(t, m, "d")
	if len(m.tasks) != 0 {
		t.Fatalf("Expected list empty after delete, got %d", len(m.tasks))
	}
	view := m.View()
	if !strings.Contains(view, `Deleted "Groceries"`) || !strings.Contains(view, "[u] undo") {
		t.Errorf("Expected undo banner, got:\n%s", view)
	}

	m = press(t, m, "u")
	if len(m.tasks) != 1 || m.tasks[0].ID != tk.ID {
		t.Fatalf("Expected task restored, got %+v", m.tasks)
	}
	m = press(t, m, "u")
	if m.status != "Nothing to undo" {
		t.Errorf("Unexpected status %q", m.status)
	}
}

func TestToggleAndFilterKeys(t *testing.T) {
	m, a := newTestModel(t)
	_, _ = a.Core.Create(task.Input{Title: "one", Priority: task.PriorityLow})
	_, _ = a.Core.Create(task.Input{Title: "two", Priority: task.PriorityHigh})
	m.reload()

	// High priority sorts first, so the cursor starts on "two".
	m = press(t, m, " ")
	if !m.tasks[0].Completed || m.tasks[0].Title != "two" {
		t.Fatalf("Expected 'two' completed, got %+v", m.tasks)
	}

	m = press(t, m, "f")
	if status, _ := a.Core.Filters(); status != task.StatusPending {
		t.Errorf("Expected pending filter, got %s", status)
	}
	if len(m.tasks) != 1 || m.tasks[0].Title != "one" {
		t.Errorf("Expected only 'one' pending, got %+v", m.tasks)
	}

	m = press(t, m, "p", "p", "p")
	if _, priority := a.Core.Filters(); priority != task.FilterFor(task.PriorityHigh) {
		t.Errorf("Expected High filter, got %s", priority)
	}
	if len(m.tasks) != 0 {
		t.Errorf("Expected no pending high tasks, got %+v", m.tasks)
	}
	if !strings.Contains(m.View(), "Nothing to show") {
		t.Error("Expected empty state message")
	}
}

func TestEditPrefillsForm(t *testing.T) {
	m, a := newTestModel(t)
	tk, _ := a.Core.Create(task.Input{Title: "draft", Priority: task.PriorityHigh, ReminderMinutes: 5})
	m.reload()

	m = press(t, m, "e")
	if m.form == nil || m.form.taskID != tk.ID || m.input.Value() != "draft" {
		t.Fatalf("Expected edit form for %s, got %+v", tk.ID, m.form)
	}
	if m.form.priority != "High" || m.form.reminder != "5" {
		t.Errorf("Expected prefilled fields, got %+v", m.form)
	}
	m = press(t, m, " v2", "enter", "enter", "enter", "enter", "enter")
	got, _ := a.Core.Get(tk.ID)
	if got.Title != "draft v2" || !got.CreatedAt.Equal(tk.CreatedAt) {
		t.Errorf("Unexpected edit result %+v", got)
	}
}

func TestChangeAndAlertMessages(t *testing.T) {
	m, a := newTestModel(t)
	_, _ = a.Core.Create(task.Input{Title: "async"})

	next, cmd := m.Update(changedMsg{})
	m = next.(Model)
	if len(m.tasks) != 1 || cmd == nil {
		t.Errorf("Expected reload and a new wait command, got %d tasks", len(m.tasks))
	}

	next, _ = m.Update(alertMsg(notify.Alert{Title: "Pay rent", Body: "Due Mon 1 Jul 14:00 · High priority"}))
	m = next.(Model)
	if !strings.Contains(m.View(), "Pay rent: Due Mon 1 Jul 14:00") {
		t.Error("Expected alert line in the view")
	}
	m = press(t, m, "x")
	if m.alert != nil {
		t.Error("Expected dismiss to clear the alert")
	}
}

func TestParseDue(t *testing.T) {
	loc := time.UTC
	if d, err := parseDue("", loc); err != nil || d.Valid {
		t.Errorf("Expected empty due, got %+v %v", d, err)
	}
	if d, err := parseDue("2024-07-01", loc); err != nil || !d.Time.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, loc)) {
		t.Errorf("Expected date-only parse, got %+v %v", d, err)
	}
	if _, err := parseDue("tomorrow", loc); err == nil {
		t.Error("Expected error for free text")
	}
	if _, err := parseReminder("-5"); err == nil {
		t.Error("Expected negative reminder to be rejected")
	}
	if _, err := parseReminder("200000000"); err == nil {
		t.Error("Expected oversized reminder to be rejected")
	}
	if n, err := parseReminder(strconv.Itoa(task.MaxReminderMinutes)); err != nil || n != task.MaxReminderMinutes {
		t.Errorf("Expected the limit to be accepted, got %d %v", n, err)
	}
}
