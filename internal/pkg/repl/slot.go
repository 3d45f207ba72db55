package repl

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when an operation is already running
var ErrBusy = errors.New("busy")

// Slot holds at most one running operation
type Slot struct {
	lock    sync.Mutex
	current *Task
}

// Task is the handle of the running operation
type Task struct {
	Query  string
	cancel context.CancelFunc
	done   chan struct{}
	slot   *Slot
}

// Start occupies the slot, the returned context is canceled on Cancel
func (s *Slot) Start(ctx context.Context, query string) (context.Context, *Task, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.current != nil {
		return nil, nil, ErrBusy
	}
	tCtx, cf := context.WithCancel(ctx)
	s.current = &Task{Query: query, cancel: cf, done: make(chan struct{}), slot: s}
	return tCtx, s.current, nil
}

// Current returns the running task or nil
func (s *Slot) Current() *Task {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current
}

// Cancel cancels the running task, returns false if the slot is free
func (s *Slot) Cancel() bool {
	t := s.Current()
	if t == nil {
		return false
	}
	t.cancel()
	return true
}

// Wait blocks until the slot is free or ctx is done
func (s *Slot) Wait(ctx context.Context) error {
	t := s.Current()
	if t == nil {
		return nil
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish frees the slot, it is safe to call several times
func (t *Task) Finish() {
	t.slot.lock.Lock()
	defer t.slot.lock.Unlock()
	if t.slot.current != t {
		return
	}
	t.slot.current = nil
	t.cancel()
	close(t.done)
}
