package task

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("task not found")
	ErrConflict     = errors.New("task already exists")
)

type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityHigh
}

func ParsePriority(v string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "l", "low":
		return PriorityLow, nil
	case "", "m", "medium":
		return PriorityMedium, nil
	case "h", "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, v)
	}
}

// MaxReminderMinutes caps the reminder lead time at one leap year.
const MaxReminderMinutes = 366 * 24 * 60

type Task struct {
	ID              string
	Title           string
	Description     string
	Due             sql.NullTime
	Priority        Priority
	ReminderMinutes int
	Completed       bool
	CreatedAt       time.Time
}

// NotifyAt reports when the reminder for t becomes eligible. ok is false
// when the task has no due date or no reminder lead time.
func (t Task) NotifyAt() (at time.Time, ok bool) {
	if !t.Due.Valid || t.ReminderMinutes <= 0 {
		return time.Time{}, false
	}
	return t.Due.Time.Add(-time.Duration(t.ReminderMinutes) * time.Minute), true
}

// Input carries the user supplied fields of a new task.
type Input struct {
	Title           string
	Description     string
	Due             sql.NullTime
	Priority        Priority
	ReminderMinutes int
}

// Patch lists the fields to change on an existing task. Nil fields are
// left untouched; a non-nil Due with Valid=false clears the due date.
type Patch struct {
	Title           *string
	Description     *string
	Priority        *Priority
	Due             *sql.NullTime
	ReminderMinutes *int
}

func (p Patch) apply(t *Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Due != nil {
		t.Due = *p.Due
	}
	if p.ReminderMinutes != nil {
		t.ReminderMinutes = *p.ReminderMinutes
	}
}

func validate(t Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: priority %d out of range", ErrInvalidInput, int(t.Priority))
	}
	if t.ReminderMinutes < 0 {
		return fmt.Errorf("%w: reminder minutes cannot be negative", ErrInvalidInput)
	}
	if t.ReminderMinutes > MaxReminderMinutes {
		return fmt.Errorf("%w: reminder minutes cannot exceed %d", ErrInvalidInput, MaxReminderMinutes)
	}
	return nil
}

func sameSchedule(a, b Task) bool {
	if a.ReminderMinutes != b.ReminderMinutes || a.Due.Valid != b.Due.Valid {
		return false
	}
	return !a.Due.Valid || a.Due.Time.Equal(b.Due.Time)
}
