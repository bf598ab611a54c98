package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"taskmaster/internal/task"
)

type fakeBackend struct {
	mu    sync.Mutex
	saves [][]task.Task
	err   error
	gate  chan struct{}
}

func (f *fakeBackend) Load() ([]task.Task, error) { return nil, nil }

func (f *fakeBackend) Save(tasks []task.Task) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, tasks)
	return f.err
}

func (f *fakeBackend) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func snapshot(n int) []task.Task {
	return make([]task.Task, n)
}

func TestSaverWritesLastSnapshotOnClose(t *testing.T) {
	b := &fakeBackend{}
	s := NewSaver(b, zerolog.Nop())
	s.Persist(snapshot(1))
	s.Persist(snapshot(2))
	s.Persist(snapshot(3))
	s.Close()

	if len(b.saves) == 0 {
		t.Fatal("Expected at least one save")
	}
	if last := b.saves[len(b.saves)-1]; len(last) != 3 {
		t.Errorf("Expected last save to hold 3 tasks, got %d", len(last))
	}

	s.Persist(snapshot(4))
	s.Close()
	if last := b.saves[len(b.saves)-1]; len(last) != 3 {
		t.Error("Expected snapshots after Close to be dropped")
	}
}

func TestSaverCoalescesWhileBusy(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{})}
	s := NewSaver(b, zerolog.Nop())

	s.Persist(snapshot(1))
	// The writer is now blocked in Save; the next three collapse into one.
	s.Persist(snapshot(2))
	s.Persist(snapshot(3))
	s.Persist(snapshot(4))
	close(b.gate)
	s.Close()

	if len(b.saves) > 2 {
		t.Errorf("Expected at most 2 writes, got %d", len(b.saves))
	}
	if last := b.saves[len(b.saves)-1]; len(last) != 4 {
		t.Errorf("Expected newest snapshot to win, got %d tasks", len(last))
	}
}

func TestSaverReportsFailureAndRecovery(t *testing.T) {
	b := &fakeBackend{err: errors.New("disk full")}
	var mu sync.Mutex
	var failures, recoveries int
	s := NewSaver(b, zerolog.Nop(),
		OnFailure(func(error) { mu.Lock(); failures++; mu.Unlock() }),
		OnRecovered(func() { mu.Lock(); recoveries++; mu.Unlock() }),
	)

	s.Persist(snapshot(1))
	s.Close()
	if failures != 1 || recoveries != 0 {
		t.Fatalf("Expected 1 failure 0 recoveries, got %d/%d", failures, recoveries)
	}

	b.setErr(nil)
	s2 := NewSaver(b, zerolog.Nop(),
		OnRecovered(func() { mu.Lock(); recoveries++; mu.Unlock() }),
	)
	s2.failing = true
	s2.Persist(snapshot(1))
	s2.Close()
	if recoveries != 1 {
		t.Errorf("Expected recovery callback, got %d", recoveries)
	}
}
