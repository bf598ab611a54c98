// Package undo holds the single banner slot shown after a mutation and the
// single pending deletion that banner can revert.
package undo

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskmaster/internal/metrics"
	"taskmaster/internal/task"
)

const DefaultWindow = 5 * time.Second

// Store is the part of task.Store the broker needs.
type Store interface {
	Delete(id string) (task.Task, error)
	Restore(t task.Task) error
}

type Banner struct {
	Message  string
	Undoable bool
	Deadline time.Time
}

type timer interface {
	Stop() bool
}

type Option func(*Broker)

func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Broker) { b.logger = l.With().Str("component", "undo").Logger() }
}

// Broker is either idle or holds exactly one deleted task that can still be
// restored. Every banner, undoable or not, shares one slot and one timer.
type Broker struct {
	store     Store
	window    time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) timer
	logger    zerolog.Logger

	mu      sync.Mutex
	banner  *Banner
	pending *task.Task
	timer   timer
	gen     uint64

	onChange  []func()
	onDiscard []func(task.Task)
}

func New(store Store, window time.Duration, opts ...Option) *Broker {
	if window <= 0 {
		window = DefaultWindow
	}
	b := &Broker{
		store:  store,
		window: window,
		now:    time.Now,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnChange registers fn to run whenever the visible banner changes. Hooks
// must be registered before the broker is used.
func (b *Broker) OnChange(fn func()) {
	b.onChange = append(b.onChange, fn)
}

// OnDiscard registers fn to run when a pending deletion becomes permanent.
func (b *Broker) OnDiscard(fn func(task.Task)) {
	b.onDiscard = append(b.onDiscard, fn)
}

// Delete removes the task through the store and makes it the only
// candidate for undo. A previously pending task stays deleted.
func (b *Broker) Delete(id string) (task.Task, error) {
	t, err := b.store.Delete(id)
	if err != nil {
		return task.Task{}, err
	}

	b.mu.Lock()
	prev := b.takePendingLocked()
	b.pending = &t
	b.showLocked(fmt.Sprintf("Deleted %q", t.Title), true)
	b.mu.Unlock()

	b.discard(prev, "superseded")
	b.changed()
	return t, nil
}

// Undo restores the pending task. ok is false when nothing was pending or
// the restore was rejected, in which case the deletion stands.
func (b *Broker) Undo() (t task.Task, ok bool, err error) {
	b.mu.Lock()
	if b.pending == nil {
		b.mu.Unlock()
		return task.Task{}, false, nil
	}
	t = *b.pending
	b.pending = nil
	b.stopLocked()
	b.banner = nil
	b.gen++
	b.mu.Unlock()

	err = b.store.Restore(t)

	b.changed()
	if err != nil {
		b.logger.Warn().Err(err).Str("task_id", t.ID).Msg("undo rejected")
		b.discard(&t, "conflict")
		return t, false, err
	}
	metrics.Undo.WithLabelValues("undone").Inc()
	b.logger.Debug().Str("task_id", t.ID).Msg("delete undone")
	return t, true, nil
}

// Notify shows a plain confirmation. It replaces whatever banner is on
// screen, including an undoable one, whose deletion becomes permanent.
func (b *Broker) Notify(msg string) {
	b.mu.Lock()
	prev := b.takePendingLocked()
	b.showLocked(msg, false)
	b.mu.Unlock()

	b.discard(prev, "superseded")
	b.changed()
}

func (b *Broker) Dismiss() {
	b.mu.Lock()
	b.clear(b.gen, "dismissed")
}

// Banner returns the banner on screen, if any.
func (b *Broker) Banner() (Banner, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.banner == nil {
		return Banner{}, false
	}
	return *b.banner, true
}

func (b *Broker) Pending() (task.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return task.Task{}, false
	}
	return *b.pending, true
}

// Close stops the timer. A deletion still pending becomes permanent.
func (b *Broker) Close() {
	b.mu.Lock()
	b.clear(b.gen, "expired")
}

func (b *Broker) expire(gen uint64) {
	b.mu.Lock()
	b.clear(gen, "expired")
}

// clear must be called with b.mu held and releases it.
func (b *Broker) clear(gen uint64, outcome string) {
	if gen != b.gen || b.banner == nil {
		b.mu.Unlock()
		return
	}
	prev := b.takePendingLocked()
	b.banner = nil
	b.gen++
	b.mu.Unlock()

	b.discard(prev, outcome)
	b.changed()
}

func (b *Broker) showLocked(msg string, undoable bool) {
	b.stopLocked()
	b.gen++
	gen := b.gen
	b.banner = &Banner{
		Message:  msg,
		Undoable: undoable,
		Deadline: b.now().Add(b.window),
	}
	b.timer = b.afterFunc(b.window, func() { b.expire(gen) })
}

func (b *Broker) takePendingLocked() *task.Task {
	b.stopLocked()
	prev := b.pending
	b.pending = nil
	return prev
}

func (b *Broker) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Broker) discard(t *task.Task, outcome string) {
	if t == nil {
		return
	}
	metrics.Undo.WithLabelValues(outcome).Inc()
	b.logger.Debug().Str("task_id", t.ID).Str("outcome", outcome).Msg("deletion is permanent")
	for _, fn := range b.onDiscard {
		fn(*t)
	}
}

func (b *Broker) changed() {
	for _, fn := range b.onChange {
		fn()
	}
}
