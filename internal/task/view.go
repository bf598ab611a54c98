package task

import (
	"fmt"
	"sort"
	"strings"
)

type StatusFilter int

const (
	StatusAll StatusFilter = iota
	StatusPending
	StatusCompleted
)

func (f StatusFilter) String() string {
	switch f {
	case StatusPending:
		return "Pending"
	case StatusCompleted:
		return "Completed"
	default:
		return "All"
	}
}

func (f StatusFilter) Next() StatusFilter {
	return (f + 1) % 3
}

func (f StatusFilter) match(t Task) bool {
	switch f {
	case StatusPending:
		return !t.Completed
	case StatusCompleted:
		return t.Completed
	default:
		return true
	}
}

func ParseStatusFilter(v string) (StatusFilter, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "all":
		return StatusAll, nil
	case "pending", "open", "todo":
		return StatusPending, nil
	case "completed", "done":
		return StatusCompleted, nil
	default:
		return StatusAll, fmt.Errorf("%w: unknown status filter %q", ErrInvalidInput, v)
	}
}

// PriorityFilter is either PriorityAll or one of the concrete priorities.
type PriorityFilter int

const PriorityAll PriorityFilter = 0

func FilterFor(p Priority) PriorityFilter {
	return PriorityFilter(p)
}

func (f PriorityFilter) String() string {
	if f == PriorityAll {
		return "All"
	}
	return Priority(f).String()
}

// Next cycles All → Low → Medium → High → All.
func (f PriorityFilter) Next() PriorityFilter {
	if f >= PriorityFilter(PriorityHigh) {
		return PriorityAll
	}
	return f + 1
}

func (f PriorityFilter) match(t Task) bool {
	return f == PriorityAll || Priority(f) == t.Priority
}

func ParsePriorityFilter(v string) (PriorityFilter, error) {
	if strings.EqualFold(strings.TrimSpace(v), "all") || strings.TrimSpace(v) == "" {
		return PriorityAll, nil
	}
	p, err := ParsePriority(v)
	if err != nil {
		return PriorityAll, err
	}
	return FilterFor(p), nil
}

// View returns the tasks matching both filters, highest priority first and
// newest first within a priority. The input slice is not modified.
func View(tasks []Task, status StatusFilter, priority PriorityFilter) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if status.match(t) && priority.match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// CountsByPriority counts the unfiltered set so badges stay stable while
// filters change. Every key is present.
func CountsByPriority(tasks []Task) map[PriorityFilter]int {
	counts := map[PriorityFilter]int{
		PriorityAll:               len(tasks),
		FilterFor(PriorityLow):    0,
		FilterFor(PriorityMedium): 0,
		FilterFor(PriorityHigh):   0,
	}
	for _, t := range tasks {
		counts[FilterFor(t.Priority)]++
	}
	return counts
}
