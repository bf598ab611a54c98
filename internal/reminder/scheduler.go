// Package reminder polls the task set and fires at most one notification per
// task for each due date and lead time it has been scheduled with.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskmaster/internal/metrics"
	"taskmaster/internal/notify"
	"taskmaster/internal/task"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultGrace    = 60 * time.Second

	dueLayout = "Mon 2 Jan 15:04"
)

type Source interface {
	List() []task.Task
}

// cycle identifies one due window of a task. An edit that changes either
// part starts a new cycle.
type cycle struct {
	due  int64
	lead int
}

func cycleOf(t task.Task) cycle {
	return cycle{due: t.Due.Time.UnixNano(), lead: t.ReminderMinutes}
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithGrace(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.grace = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.logger = l.With().Str("component", "reminder").Logger() }
}

type Scheduler struct {
	source   Source
	notifier notify.Notifier
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	location *time.Location
	logger   zerolog.Logger

	mu       sync.Mutex
	notified map[string]cycle
}

func New(source Source, notifier notify.Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		notifier: notifier,
		interval: DefaultInterval,
		grace:    DefaultGrace,
		now:      time.Now,
		location: time.Local,
		logger:   zerolog.Nop(),
		notified: make(map[string]cycle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks once immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Dur("grace", s.grace).Msg("reminder scheduler started")
	s.Tick(s.now())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Tick scans the tasks once and returns how many reminders it fired.
// A reminder fires when now is in [due-lead, due+grace). Windows that were
// missed entirely are never fired late.
func (s *Scheduler) Tick(now time.Time) int {
	var fire []task.Task

	s.mu.Lock()
	for _, t := range s.source.List() {
		if t.Completed {
			continue
		}
		notifyAt, ok := t.NotifyAt()
		if !ok {
			continue
		}
		c := cycleOf(t)
		if prev, done := s.notified[t.ID]; done && prev == c {
			continue
		}
		if now.Before(notifyAt) || !now.Before(t.Due.Time.Add(s.grace)) {
			continue
		}
		s.notified[t.ID] = c
		fire = append(fire, t)
	}
	s.mu.Unlock()

	for _, t := range fire {
		s.emit(t)
	}
	return len(fire)
}

// Forget drops id from the notified set so its next window can fire.
func (s *Scheduler) Forget(id string) {
	s.mu.Lock()
	delete(s.notified, id)
	s.mu.Unlock()
}

// HandleEvent keeps the notified set in step with edits to the store.
func (s *Scheduler) HandleEvent(ev task.Event) {
	if ev.Kind != task.EventUpdated || !ev.ScheduleChanged {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.notified[ev.Task.ID]; ok && prev != cycleOf(ev.Task) {
		delete(s.notified, ev.Task.ID)
	}
}

func (s *Scheduler) Notified(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notified[id]
	return ok
}

func (s *Scheduler) emit(t task.Task) {
	err := s.notifier.Emit(t.Title, s.body(t))
	switch {
	case err == nil:
		metrics.RemindersSent.Inc()
		s.logger.Info().Str("task_id", t.ID).Time("due", t.Due.Time).Msg("reminder sent")
	case errors.Is(err, notify.ErrUnavailable):
		s.logger.Debug().Str("task_id", t.ID).Msg("reminder suppressed, notifications unavailable")
	default:
		s.logger.Warn().Err(err).Str("task_id", t.ID).Msg("reminder delivery failed")
	}
}

func (s *Scheduler) body(t task.Task) string {
	body := fmt.Sprintf("Due %s · %s priority", t.Due.Time.In(s.location).Format(dueLayout), t.Priority)
	if line, _, _ := strings.Cut(t.Description, "\n"); line != "" {
		body += "\n" + line
	}
	return body
}
