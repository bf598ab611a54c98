package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskmaster/internal/config"
	"taskmaster/internal/task"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	chipStyle    = lipgloss.NewStyle().Padding(0, 1)
	activeChip   = chipStyle.Reverse(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	bannerStyle  = lipgloss.NewStyle().Background(lipgloss.Color("236")).Padding(0, 1)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	alertStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("220")).Padding(0, 1)

	priorityStyles = map[task.Priority]lipgloss.Style{
		task.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		task.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		task.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("TaskMaster"))
	b.WriteString("\n")
	b.WriteString(m.renderFilters())
	b.WriteString("\n\n")

	if len(m.tasks) == 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("Nothing to show. Press '%s' to add a task.", m.cfg.Keys.Add)))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderTaskList())
	}

	if m.form != nil {
		b.WriteString("\n---\n")
		b.WriteString(m.renderForm())
		b.WriteString("\n")
		b.WriteString("Field: " + m.form.currentLabel())
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if m.alert != nil {
		b.WriteString("\n")
		b.WriteString(alertStyle.Render(fmt.Sprintf("⏰ %s: %s", m.alert.Title, firstLine(m.alert.Body))))
		b.WriteString("\n")
	}
	if banner, ok := m.core.Banner(); ok {
		text := banner.Message
		if banner.Undoable {
			text += fmt.Sprintf("  [%s] undo", m.cfg.Keys.Undo)
		}
		b.WriteString("\n")
		b.WriteString(bannerStyle.Render(text))
		b.WriteString("\n")
	}
	if w := m.core.Warning(); w != "" {
		b.WriteString(warningStyle.Render("! " + w))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(renderHelp(m.cfg.Keys)))
	return b.String()
}

func (m Model) renderFilters() string {
	status, priority := m.core.Filters()
	counts := m.core.Counts()

	var chips []string
	for _, s := range []task.StatusFilter{task.StatusAll, task.StatusPending, task.StatusCompleted} {
		chips = append(chips, chip(s.String(), s == status))
	}
	chips = append(chips, " ")
	f := task.PriorityAll
	for {
		chips = append(chips, chip(fmt.Sprintf("%s %d", f, counts[f]), f == priority))
		if f = f.Next(); f == task.PriorityAll {
			break
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

func chip(label string, active bool) string {
	if active {
		return activeChip.Render(label)
	}
	return chipStyle.Render(label)
}

func (m Model) renderTaskList() string {
	var b strings.Builder
	for i, t := range m.tasks {
		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = ">"
		}

		checkbox := "[ ]"
		if t.Completed {
			checkbox = "[x]"
		}

		title := t.Title
		if t.Completed {
			title = doneStyle.Render(title)
		}
		tag := priorityStyles[t.Priority].Render(fmt.Sprintf("%-6s", t.Priority))

		line := fmt.Sprintf("%s %s %s %s", cursor, checkbox, tag, title)
		if t.Due.Valid {
			meta := " · " + t.Due.Time.Local().Format(dueShowLayout)
			if t.ReminderMinutes > 0 {
				meta += fmt.Sprintf(" (-%dm)", t.ReminderMinutes)
			}
			line += faintStyle.Render(meta)
		}
		b.WriteString(line)
		b.WriteString("\n")
		if t.Description != "" && m.cursor == i {
			b.WriteString(faintStyle.Render("      " + firstLine(t.Description)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderForm() string {
	if m.form == nil {
		return ""
	}
	heading := "New task"
	if m.form.taskID != "" {
		heading = "Edit task"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(heading))
	b.WriteString("\n")
	values := m.form.values()
	for i, name := range formFields() {
		prefix := " "
		if i == m.form.index {
			prefix = ">"
		}
		val := values[i]
		if strings.TrimSpace(val) == "" {
			val = "(empty)"
		}
		b.WriteString(fmt.Sprintf("%s %-26s : %s\n", prefix, name, val))
	}
	return b.String()
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s edit • space toggle • %s delete • %s undo • %s status • %s priority • %s detail • %s dismiss • %s quit",
		k.Up, k.Down, k.Add, k.Edit, k.Delete, k.Undo, k.StatusFilter, k.PriorityFilter, k.Detail, k.Dismiss, k.Quit)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
