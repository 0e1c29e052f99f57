// ABOUTME: ManualScheduler is a Scheduler driven by an explicit clock, for deterministic boards and tests.
package capture

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler fires callbacks only when Advance moves its clock past their deadline.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	pending []*manualTimer
}

type manualTimer struct {
	s        *ManualScheduler
	id       int
	deadline time.Duration
	fn       func()
	stopped  bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManualScheduler returns a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &manualTimer{s: s, id: s.nextID, deadline: s.now + d, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// Advance moves the clock forward by d and runs every due callback in deadline order.
// Callbacks run on the caller's goroutine.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due, rest []*manualTimer
	for _, t := range s.pending {
		switch {
		case t.stopped:
		case t.deadline <= s.now:
			t.stopped = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	s.pending = rest
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].deadline != due[j].deadline {
			return due[i].deadline < due[j].deadline
		}
		return due[i].id < due[j].id
	})
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of callbacks that have not fired or been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.pending {
		if !t.stopped {
			n++
		}
	}
	return n
}
