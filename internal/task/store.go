package task

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventUpdated
	EventToggled
	EventDeleted
	EventRestored
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "create"
	case EventUpdated:
		return "update"
	case EventToggled:
		return "toggle"
	case EventDeleted:
		return "delete"
	case EventRestored:
		return "restore"
	default:
		return "unknown"
	}
}

// Event describes a committed mutation. ScheduleChanged is set on updates
// that touched the due date or the reminder lead time.
type Event struct {
	Kind            EventKind
	Task            Task
	ScheduleChanged bool
}

// Persister receives the full snapshot after every mutation. Persist must
// return without waiting for the write.
type Persister interface {
	Persist(tasks []Task)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(next func() string) Option {
	return func(s *Store) { s.newID = next }
}

func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// Store owns the live task set. Tasks are kept newest first, which is also
// the order of the persisted snapshot.
type Store struct {
	mu        sync.Mutex
	tasks     []Task
	now       func() time.Time
	newID     func() string
	persister Persister
	observers []func(Event)
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load seeds an empty store from a persisted snapshot. It does not trigger
// a save.
func (s *Store) Load(tasks []Task) error {
	seen := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("%w: snapshot task without id", ErrInvalidInput)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s in snapshot", ErrConflict, t.ID)
		}
		seen[t.ID] = struct{}{}
		if err := validate(t); err != nil {
			return fmt.Errorf("snapshot task %s: %w", t.ID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(make([]Task, 0, len(tasks)), tasks...)
	return nil
}

// Subscribe registers fn to be called after every committed mutation.
// Observers run on the caller's goroutine once the store lock is released.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) Create(in Input) (Task, error) {
	t := Task{
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		Due:             in.Due,
		Priority:        in.Priority,
		ReminderMinutes: in.ReminderMinutes,
	}
	if t.Priority == 0 {
		t.Priority = PriorityMedium
	}
	if err := validate(t); err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	t.ID = s.uniqueID()
	t.CreatedAt = s.now()
	s.tasks = append([]Task{t}, s.tasks...)
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventCreated, Task: t})
	return t, nil
}

func (s *Store) Update(id string, p Patch) (Task, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Task{}, fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	before := s.tasks[i]
	after := before
	p.apply(&after)
	if err := validate(after); err != nil {
		s.mu.Unlock()
		return Task{}, err
	}
	s.tasks[i] = after
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUpdated, Task: after, ScheduleChanged: !sameSchedule(before, after)})
	return after, nil
}

func (s *Store) ToggleCompleted(id string) (Task, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Task{}, fmt.Errorf("toggle %s: %w", id, ErrNotFound)
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	t := s.tasks[i]
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventToggled, Task: t})
	return t, nil
}

func (s *Store) Delete(id string) (Task, error) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Task{}, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	t := s.tasks[i]
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventDeleted, Task: t})
	return t, nil
}

// Restore puts back a previously deleted task with its original id and
// creation time. It never overwrites a live task.
func (s *Store) Restore(t Task) error {
	if err := validate(t); err != nil {
		return err
	}

	s.mu.Lock()
	if s.indexLocked(t.ID) >= 0 {
		s.mu.Unlock()
		return fmt.Errorf("restore %s: %w", t.ID, ErrConflict)
	}
	pos := len(s.tasks)
	for i, cur := range s.tasks {
		if cur.CreatedAt.Before(t.CreatedAt) {
			pos = i
			break
		}
	}
	s.tasks = append(s.tasks[:pos:pos], append([]Task{t}, s.tasks[pos:]...)...)
	s.persistLocked()
	s.mu.Unlock()

	s.emit(Event{Kind: EventRestored, Task: t})
	return nil
}

func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Task{}, false
	}
	return s.tasks[i], true
}

// List returns a copy of the live set in snapshot order.
func (s *Store) List() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Store) indexLocked(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) uniqueID() string {
	for {
		id := s.newID()
		if id != "" && s.indexLocked(id) < 0 {
			return id
		}
	}
}

func (s *Store) persistLocked() {
	if s.persister == nil {
		return
	}
	s.persister.Persist(append([]Task(nil), s.tasks...))
}

func (s *Store) emit(ev Event) {
	s.mu.Lock()
	observers := slices.Clone(s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(ev)
	}
}
