package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"taskmaster/internal/metrics"
	"taskmaster/internal/task"
	"taskmaster/internal/undo"
)

// Core is the intent surface the UI talks to. Filters live here; the task
// set lives in the store and the banner in the broker.
type Core struct {
	store  *task.Store
	broker *undo.Broker
	logger zerolog.Logger

	mu       sync.Mutex
	status   task.StatusFilter
	priority task.PriorityFilter
	warning  string

	changes chan struct{}
}

func NewCore(store *task.Store, broker *undo.Broker, logger zerolog.Logger) *Core {
	c := &Core{
		store:   store,
		broker:  broker,
		logger:  logger.With().Str("component", "core").Logger(),
		changes: make(chan struct{}, 1),
	}
	store.Subscribe(c.observe)
	broker.OnChange(c.signal)
	metrics.Tasks.Set(float64(store.Len()))
	return c
}

func (c *Core) Create(in task.Input) (task.Task, error) {
	t, err := c.store.Create(in)
	if err != nil {
		c.record("create", err)
		return task.Task{}, err
	}
	c.record("create", nil)
	c.broker.Notify("Task created")
	return t, nil
}

func (c *Core) Update(id string, p task.Patch) (task.Task, error) {
	t, err := c.store.Update(id, p)
	if err != nil {
		c.record("update", err)
		return task.Task{}, err
	}
	c.record("update", nil)
	c.broker.Notify("Task updated")
	return t, nil
}

func (c *Core) Toggle(id string) (task.Task, error) {
	t, err := c.store.ToggleCompleted(id)
	if err != nil {
		c.record("toggle", err)
		return task.Task{}, err
	}
	c.record("toggle", nil)
	if t.Completed {
		c.broker.Notify(fmt.Sprintf("Completed %q", t.Title))
	} else {
		c.broker.Notify(fmt.Sprintf("Reopened %q", t.Title))
	}
	return t, nil
}

func (c *Core) Delete(id string) (task.Task, error) {
	t, err := c.broker.Delete(id)
	c.record("delete", err)
	return t, err
}

// Undo reverts the pending deletion, if any. ok is false when there was
// nothing to undo.
func (c *Core) Undo() (t task.Task, ok bool, err error) {
	t, ok, err = c.broker.Undo()
	if err != nil {
		c.record("restore", err)
		c.broker.Notify(fmt.Sprintf("Could not restore %q", t.Title))
		return t, false, err
	}
	if ok {
		c.record("restore", nil)
	}
	return t, ok, nil
}

func (c *Core) Dismiss() {
	c.broker.Dismiss()
}

func (c *Core) SetStatusFilter(f task.StatusFilter) {
	c.mu.Lock()
	c.status = f
	c.mu.Unlock()
	c.signal()
}

func (c *Core) SetPriorityFilter(f task.PriorityFilter) {
	c.mu.Lock()
	c.priority = f
	c.mu.Unlock()
	c.signal()
}

func (c *Core) Filters() (task.StatusFilter, task.PriorityFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.priority
}

// Visible is the ordered list for the current filters.
func (c *Core) Visible() []task.Task {
	status, priority := c.Filters()
	return task.View(c.store.List(), status, priority)
}

func (c *Core) Counts() map[task.PriorityFilter]int {
	return task.CountsByPriority(c.store.List())
}

func (c *Core) Get(id string) (task.Task, bool) {
	return c.store.Get(id)
}

func (c *Core) Banner() (undo.Banner, bool) {
	return c.broker.Banner()
}

// Warning is a persistent, non-fatal problem such as failing saves.
func (c *Core) Warning() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warning
}

func (c *Core) SetWarning(msg string) {
	c.mu.Lock()
	c.warning = msg
	c.mu.Unlock()
	c.signal()
}

func (c *Core) PersistenceFailed(err error) {
	c.SetWarning(fmt.Sprintf("Changes are not being saved: %v", err))
}

func (c *Core) PersistenceRecovered() {
	c.SetWarning("")
}

// Changes delivers a value whenever something visible may have changed.
// Signals coalesce; receivers should re-read everything they display.
func (c *Core) Changes() <-chan struct{} {
	return c.changes
}

func (c *Core) observe(ev task.Event) {
	metrics.Tasks.Set(float64(c.store.Len()))
	c.logger.Debug().Str("op", ev.Kind.String()).Str("task_id", ev.Task.ID).Bool("schedule_changed", ev.ScheduleChanged).Msg("task mutated")
	c.signal()
}

func (c *Core) signal() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

func (c *Core) record(op string, err error) {
	switch {
	case err == nil:
		metrics.Mutations.WithLabelValues(op, "ok").Inc()
	case errors.Is(err, task.ErrInvalidInput):
		metrics.Mutations.WithLabelValues(op, "invalid").Inc()
	case errors.Is(err, task.ErrNotFound):
		metrics.Mutations.WithLabelValues(op, "not_found").Inc()
		c.logger.Warn().Err(err).Str("op", op).Msg("mutation on missing task")
	case errors.Is(err, task.ErrConflict):
		metrics.Mutations.WithLabelValues(op, "conflict").Inc()
		c.logger.Warn().Err(err).Str("op", op).Msg("mutation conflict")
	default:
		metrics.Mutations.WithLabelValues(op, "error").Inc()
		c.logger.Error().Err(err).Str("op", op).Msg("mutation failed")
	}
}
