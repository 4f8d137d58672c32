package resurrect

import (
	"sync"
	"time"
)

// Scheduler runs deferred tasks keyed by id. Tasks do not inherit the
// lifetime of whoever scheduled them; Stop cancels everything still pending.
type Scheduler struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// After runs fn once delay has passed. Scheduling an id that is already
// pending replaces the earlier task. It reports false after Stop.
func (s *Scheduler) After(id string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if prev, ok := s.timers[id]; ok && prev.Stop() {
		s.wg.Done()
	}

	s.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		if s.timers[id] == t {
			delete(s.timers, id)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[id] = t
	return true
}

// Cancel stops a pending task. It reports whether a task was stopped before
// it started running.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	if t.Stop() {
		s.wg.Done()
		return true
	}
	return false
}

// Pending returns the number of tasks that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending tasks and waits for running ones to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
