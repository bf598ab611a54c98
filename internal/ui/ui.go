package ui

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskmaster/internal/app"
	"taskmaster/internal/config"
	"taskmaster/internal/notify"
	"taskmaster/internal/task"
)

const (
	dueInputLayout = "2006-01-02 15:04"
	dateOnlyLayout = "2006-01-02"
	dueShowLayout  = "Mon 2 Jan 15:04"
)

type mode int

const (
	modeList mode = iota
	modeForm
)

type changedMsg struct{}

type alertMsg notify.Alert

// formState backs both the create and the edit form. taskID is empty when
// creating.
type formState struct {
	taskID      string
	title       string
	description string
	priority    string
	due         string
	reminder    string
	index       int
}

type Model struct {
	core   *app.Core
	cfg    config.Config
	alerts <-chan notify.Alert
	now    func() time.Time

	tasks  []task.Task
	cursor int
	mode   mode
	input  textinput.Model
	form   *formState
	status string
	alert  *notify.Alert
}

func New(core *app.Core, cfg config.Config, alerts <-chan notify.Alert) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		core:   core,
		cfg:    cfg,
		alerts: alerts,
		now:    time.Now,
		input:  ti,
		mode:   modeList,
		status: fmt.Sprintf("Press '%s' to add, space to toggle, '%s' to delete, '%s' to undo.", cfg.Keys.Add, cfg.Keys.Delete, cfg.Keys.Undo),
	}
	m.reload()
	return m
}

func Run(core *app.Core, cfg config.Config, alerts <-chan notify.Alert) error {
	program := tea.NewProgram(New(core, cfg, alerts), tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.core.Changes()), waitForAlert(m.alerts))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func waitForAlert(ch <-chan notify.Alert) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return alertMsg(<-ch)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.mode == modeForm && m.form != nil {
			return m.updateFormMode(msg.String(), msg)
		}
		return m.updateListMode(msg.String())
	case changedMsg:
		m.reload()
		return m, waitForChange(m.core.Changes())
	case alertMsg:
		a := notify.Alert(msg)
		m.alert = &a
		return m, waitForAlert(m.alerts)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	}
	return m, nil
}

// reload re-reads the view and keeps the cursor on the same task when it
// is still visible.
func (m *Model) reload() {
	var selected string
	if m.cursor < len(m.tasks) {
		selected = m.tasks[m.cursor].ID
	}
	m.tasks = m.core.Visible()
	m.cursor = clampCursor(m.cursor, len(m.tasks))
	for i, t := range m.tasks {
		if t.ID == selected {
			m.cursor = i
			break
		}
	}
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, len(m.tasks))
	case m.cfg.Keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, len(m.tasks))
	case m.cfg.Keys.Add:
		return m.startForm(nil)
	case m.cfg.Keys.Edit:
		if len(m.tasks) == 0 {
			m.status = "No tasks to edit"
			return m, nil
		}
		t := m.tasks[m.cursor]
		return m.startForm(&t)
	case m.cfg.Keys.Toggle:
		if len(m.tasks) == 0 {
			return m, nil
		}
		if _, err := m.core.Toggle(m.tasks[m.cursor].ID); err != nil {
			m.status = fmt.Sprintf("toggle failed: %v", err)
		}
		m.reload()
	case m.cfg.Keys.Delete:
		if len(m.tasks) == 0 {
			return m, nil
		}
		if _, err := m.core.Delete(m.tasks[m.cursor].ID); err != nil {
			m.status = fmt.Sprintf("delete failed: %v", err)
		}
		m.reload()
	case m.cfg.Keys.Undo:
		t, ok, err := m.core.Undo()
		switch {
		case err != nil:
			m.status = fmt.Sprintf("undo failed: %v", err)
		case !ok:
			m.status = "Nothing to undo"
		default:
			m.status = fmt.Sprintf("Restored %q", t.Title)
		}
		m.reload()
	case m.cfg.Keys.Dismiss:
		m.core.Dismiss()
		m.alert = nil
	case m.cfg.Keys.StatusFilter:
		status, _ := m.core.Filters()
		m.core.SetStatusFilter(status.Next())
		m.reload()
	case m.cfg.Keys.PriorityFilter:
		_, priority := m.core.Filters()
		m.core.SetPriorityFilter(priority.Next())
		m.reload()
	case m.cfg.Keys.Detail:
		if len(m.tasks) == 0 {
			m.status = "No tasks"
			return m, nil
		}
		m.status = m.detail(m.tasks[m.cursor])
	}
	return m, nil
}

func (m Model) detail(t task.Task) string {
	info := fmt.Sprintf("%s • %s • %s priority • created %s",
		t.Title, humanDone(t.Completed), t.Priority, t.CreatedAt.Local().Format(dueShowLayout))
	if t.Due.Valid {
		info += " • due " + t.Due.Time.Local().Format(dueShowLayout)
	}
	if t.ReminderMinutes > 0 {
		info += fmt.Sprintf(" • remind %dm before", t.ReminderMinutes)
	}
	if t.Description != "" {
		info += "\n" + t.Description
	}
	return info
}

func (m Model) startForm(t *task.Task) (tea.Model, tea.Cmd) {
	m.form = &formState{priority: task.PriorityMedium.String()}
	m.status = "New task: tab/shift+tab to move, enter to save/next, esc to cancel"
	if t != nil {
		m.form = &formState{
			taskID:      t.ID,
			title:       t.Title,
			description: t.Description,
			priority:    t.Priority.String(),
			due:         formatDue(t.Due),
			reminder:    formatReminder(t.ReminderMinutes),
		}
		m.status = "Edit task: tab/shift+tab to move, enter to save/next, esc to cancel"
	}
	m.input.SetValue(m.form.currentValue())
	m.input.Placeholder = m.form.currentLabel()
	m.input.Focus()
	m.mode = modeForm
	return m, textinput.Blink
}

func (m Model) updateFormMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.form = nil
		m.mode = modeList
		m.input.Blur()
		m.input.SetValue("")
		m.status = "Cancelled"
		return m, nil
	case "tab", "down":
		m.moveForm(1)
		return m, nil
	case "shift+tab", "up":
		m.moveForm(-1)
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.form.setCurrentValue(m.input.Value())
		if m.form.index >= len(formFields())-1 {
			return m.saveForm()
		}
		m.moveForm(1)
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m *Model) moveForm(delta int) {
	m.form.setCurrentValue(m.input.Value())
	m.form.index = wrapIndex(m.form.index+delta, len(formFields()))
	m.input.SetValue(m.form.currentValue())
	m.input.Placeholder = m.form.currentLabel()
	m.status = m.formPrompt()
}

// saveForm validates the form and submits it. On any error the form stays
// open so nothing typed is lost.
func (m Model) saveForm() (tea.Model, tea.Cmd) {
	f := m.form
	priority, err := task.ParsePriority(f.priority)
	if err != nil {
		m.status = fmt.Sprintf("priority invalid: %v", err)
		return m, nil
	}
	due, err := parseDue(f.due, m.now().Location())
	if err != nil {
		m.status = fmt.Sprintf("due date invalid: %v", err)
		return m, nil
	}
	reminder, err := parseReminder(f.reminder)
	if err != nil {
		m.status = fmt.Sprintf("reminder invalid: %v", err)
		return m, nil
	}

	var saved task.Task
	if f.taskID == "" {
		saved, err = m.core.Create(task.Input{
			Title:           f.title,
			Description:     f.description,
			Priority:        priority,
			Due:             due,
			ReminderMinutes: reminder,
		})
	} else {
		saved, err = m.core.Update(f.taskID, task.Patch{
			Title:           &f.title,
			Description:     &f.description,
			Priority:        &priority,
			Due:             &due,
			ReminderMinutes: &reminder,
		})
	}
	switch {
	case errors.Is(err, task.ErrInvalidInput):
		m.status = err.Error()
		return m, nil
	case errors.Is(err, task.ErrNotFound):
		m.status = "That task no longer exists"
	case err != nil:
		m.status = fmt.Sprintf("save failed: %v", err)
		return m, nil
	default:
		m.status = fmt.Sprintf("Saved %q", saved.Title)
	}

	m.form = nil
	m.mode = modeList
	m.input.Blur()
	m.input.SetValue("")
	m.reload()
	for i, t := range m.tasks {
		if t.ID == saved.ID {
			m.cursor = i
			break
		}
	}
	return m, nil
}

func formFields() []string {
	return []string{"title", "description", "priority (low/medium/high)", "due (YYYY-MM-DD HH:MM)", "remind minutes before"}
}

func (f formState) currentLabel() string {
	return formFields()[f.index]
}

func (f formState) currentValue() string {
	switch f.index {
	case 0:
		return f.title
	case 1:
		return f.description
	case 2:
		return f.priority
	case 3:
		return f.due
	case 4:
		return f.reminder
	default:
		return ""
	}
}

func (f *formState) setCurrentValue(v string) {
	switch f.index {
	case 0:
		f.title = v
	case 1:
		f.description = v
	case 2:
		f.priority = v
	case 3:
		f.due = v
	case 4:
		f.reminder = v
	}
}

func (f formState) values() []string {
	return []string{f.title, f.description, f.priority, f.due, f.reminder}
}

func (m Model) formPrompt() string {
	if m.form == nil {
		return ""
	}
	return fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, Esc to cancel, tab to move.",
		m.form.currentLabel(), m.form.index+1, len(formFields()))
}

func parseDue(v string, loc *time.Location) (sql.NullTime, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullTime{}, nil
	}
	for _, layout := range []string{dueInputLayout, dateOnlyLayout} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return sql.NullTime{Time: t, Valid: true}, nil
		}
	}
	return sql.NullTime{}, fmt.Errorf("want YYYY-MM-DD HH:MM, got %q", v)
}

func formatDue(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Local().Format(dueInputLayout)
}

func parseReminder(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("must not be negative")
	}
	if n > task.MaxReminderMinutes {
		return 0, fmt.Errorf("at most %d minutes", task.MaxReminderMinutes)
	}
	return n, nil
}

func formatReminder(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
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

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "pending"
}
