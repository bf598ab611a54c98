package storage

import (
	"sync"

	"github.com/rs/zerolog"

	"taskmaster/internal/metrics"
	"taskmaster/internal/task"
)

type SaverOption func(*Saver)

// OnFailure is called from the writer goroutine after a failed save.
func OnFailure(fn func(error)) SaverOption {
	return func(s *Saver) { s.onFailure = fn }
}

// OnRecovered is called after the first successful save that follows a
// failure.
func OnRecovered(fn func()) SaverOption {
	return func(s *Saver) { s.onRecovered = fn }
}

// Saver writes snapshots on its own goroutine. It keeps only the newest
// unsaved snapshot, so a burst of mutations costs one write.
type Saver struct {
	backend     Backend
	logger      zerolog.Logger
	onFailure   func(error)
	onRecovered func()

	mu      sync.Mutex
	pending []task.Task
	dirty   bool
	closed  bool
	failing bool

	wake chan struct{}
	done chan struct{}
}

func NewSaver(backend Backend, logger zerolog.Logger, opts ...SaverOption) *Saver {
	s := &Saver{
		backend: backend,
		logger:  logger.With().Str("component", "saver").Logger(),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.run()
	return s
}

// Persist queues tasks for writing and returns immediately.
func (s *Saver) Persist(tasks []task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Warn().Int("tasks", len(tasks)).Msg("snapshot dropped after close")
		return
	}
	s.pending = tasks
	s.dirty = true
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close writes the last queued snapshot and stops the writer.
func (s *Saver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	close(s.wake)
	s.mu.Unlock()
	<-s.done
}

func (s *Saver) run() {
	defer close(s.done)
	for range s.wake {
		for {
			s.mu.Lock()
			if !s.dirty {
				s.mu.Unlock()
				break
			}
			tasks := s.pending
			s.pending = nil
			s.dirty = false
			s.mu.Unlock()

			s.write(tasks)
		}
	}
}

func (s *Saver) write(tasks []task.Task) {
	err := s.backend.Save(tasks)

	s.mu.Lock()
	wasFailing := s.failing
	s.failing = err != nil
	s.mu.Unlock()

	if err != nil {
		metrics.PersistenceFailures.Inc()
		s.logger.Error().Err(err).Int("tasks", len(tasks)).Msg("save snapshot failed")
		if s.onFailure != nil {
			s.onFailure(err)
		}
		return
	}
	s.logger.Debug().Int("tasks", len(tasks)).Msg("snapshot saved")
	if wasFailing {
		s.logger.Info().Msg("persistence recovered")
		if s.onRecovered != nil {
			s.onRecovered()
		}
	}
}
