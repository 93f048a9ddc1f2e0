// Package vtime provides a deterministic virtual-time scheduler.
//
// A Scheduler drives delayed actions off a logical clock that only
// moves when the caller advances it, never with wall-clock time.
// Actions due at the same instant run in the order they were
// scheduled, so timing-dependent behavior (such as racing push
// sources) is exactly reproducible across runs.
package vtime

import (
	"container/heap"
	"sync"
	"time"

	"github.com/baxromumarov/pushx"
)

// Scheduler is a logical clock with a pending-action queue. The zero
// value is ready to use, with the clock at zero.
//
// Scheduler is safe for concurrent use, but determinism is only
// meaningful when a single goroutine drives AdvanceBy/AdvanceTo.
type Scheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	queue actionQueue
}

// NewScheduler returns a Scheduler with its clock at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the current logical time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule queues fn to run when the logical clock reaches the
// current time plus delay. A non-positive delay makes fn due
// immediately, but it still runs only inside a subsequent advance
// call (or the current one, if Schedule is called from a running
// action whose advance target covers it).
//
// The returned handle removes the action from the queue; an action
// canceled before it runs never runs, even if already due.
//
// Schedule panics if fn is nil.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) pushx.Canceler {
	if fn == nil {
		panic("vtime: Schedule fn must not be nil")
	}
	s.mu.Lock()
	a := &action{
		due: s.now + delay,
		seq: s.seq,
		fn:  fn,
	}
	s.seq++
	heap.Push(&s.queue, a)
	s.mu.Unlock()

	return pushx.CancelFunc(func() {
		s.mu.Lock()
		a.canceled = true
		s.mu.Unlock()
	})
}

// AdvanceBy moves the logical clock forward by d, running every
// pending action whose due time falls within the window, in (due
// time, scheduling order) order. Actions scheduled by a running
// action also run in the same call when their due time is within the
// window; the drain runs to a fixed point, not a single pass. The
// clock ends exactly at the target time.
//
// AdvanceBy panics if d is negative.
func (s *Scheduler) AdvanceBy(d time.Duration) {
	if d < 0 {
		panic("vtime: AdvanceBy duration must not be negative")
	}
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	s.AdvanceTo(target)
}

// AdvanceTo moves the logical clock forward to t, with the same
// draining behavior as AdvanceBy. Targets at or before the current
// time run any actions already due and leave the clock unchanged
// otherwise; the clock never moves backwards.
func (s *Scheduler) AdvanceTo(t time.Duration) {
	for {
		s.mu.Lock()
		a := s.popDue(t)
		if a == nil {
			if t > s.now {
				s.now = t
			}
			s.mu.Unlock()
			return
		}
		// The clock reads as the action's due time while it runs, so
		// relative delays scheduled from inside an action compound
		// from its own instant.
		if a.due > s.now {
			s.now = a.due
		}
		s.mu.Unlock()

		a.fn()
	}
}

// RunAll drains the queue completely, advancing the clock to each
// action's due time, until no pending actions remain.
func (s *Scheduler) RunAll() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		target := s.queue[0].due
		s.mu.Unlock()
		s.AdvanceTo(target)
	}
}

// popDue removes and returns the earliest runnable action due at or
// before t, discarding canceled ones. Callers must hold s.mu.
func (s *Scheduler) popDue(t time.Duration) *action {
	for len(s.queue) > 0 {
		top := s.queue[0]
		if top.due > t {
			return nil
		}
		heap.Pop(&s.queue)
		if top.canceled {
			continue
		}
		return top
	}
	return nil
}

// action is one queued task. canceled is guarded by the scheduler's
// mutex; canceled actions are dropped lazily when popped.
type action struct {
	due      time.Duration
	seq      uint64
	fn       func()
	canceled bool
}

// actionQueue orders actions by (due time, scheduling sequence), so
// equal due times break ties in scheduling order.
type actionQueue []*action

func (q actionQueue) Len() int { return len(q) }
func (q actionQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}
func (q actionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *actionQueue) Push(x any)   { *q = append(*q, x.(*action)) }
func (q *actionQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}
