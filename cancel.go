package pushx

import (
	"sync"
	"sync/atomic"
)

// Canceler is an idempotent handle to a cancellable resource: an
// active subscription, a scheduled action, or a group of either.
//
// Cancel may be called from any goroutine, any number of times; only
// the first call has an effect. Cancel must not block.
type Canceler interface {
	Cancel()
	IsCanceled() bool
}

// Noop is a Canceler that does nothing and never reports canceled.
// It is handed out where there is nothing to tear down.
var Noop Canceler = noopCanceler{}

type noopCanceler struct{}

func (noopCanceler) Cancel()          {}
func (noopCanceler) IsCanceled() bool { return false }

// CancelFunc wraps fn in a one-shot Canceler. fn runs at most once,
// on the first Cancel call; fn may be nil for a pure flag handle.
func CancelFunc(fn func()) Canceler {
	return &cancelOnce{fn: fn}
}

// cancelOnce converts repeated or concurrent Cancel calls into a
// single execution of fn, the same discipline as an idempotent
// channel close.
type cancelOnce struct {
	once     sync.Once
	fn       func()
	canceled atomic.Bool
}

func (c *cancelOnce) Cancel() {
	c.once.Do(func() {
		c.canceled.Store(true)
		if c.fn != nil {
			c.fn()
		}
	})
}

func (c *cancelOnce) IsCanceled() bool {
	return c.canceled.Load()
}

// safeCancel invokes c.Cancel, converting a panic raised by the
// teardown into an undeliverable *PanicError. Disposal chains keep
// going past a failing member, and a teardown failure never unwinds
// through the signal path that triggered it.
func safeCancel(c Canceler) {
	defer func() {
		if v := recover(); v != nil {
			deliverUndeliverable(newPanicError(v))
		}
	}()
	c.Cancel()
}

// CancelGroup is an ordered set of Cancelers canceled together.
// Membership may grow and shrink while the group is live; canceling
// the group cancels every current member, and any member added
// afterwards is canceled immediately instead of joining. No handle
// can slip past a group cancellation that races with its Add.
//
// The zero value is not usable; construct groups with NewCancelGroup.
type CancelGroup struct {
	mu       sync.Mutex
	members  []Canceler
	canceled bool
}

// NewCancelGroup returns an empty, live group.
func NewCancelGroup() *CancelGroup {
	return &CancelGroup{}
}

// Add registers c with the group and reports whether it was retained.
// If the group is already canceled, c is canceled immediately and Add
// returns false.
//
// Add panics if c is nil.
func (g *CancelGroup) Add(c Canceler) bool {
	if c == nil {
		panic("pushx: CancelGroup.Add canceler must not be nil")
	}
	g.mu.Lock()
	if g.canceled {
		g.mu.Unlock()
		safeCancel(c)
		return false
	}
	g.members = append(g.members, c)
	g.mu.Unlock()
	return true
}

// Remove drops c from the group without canceling it. Sources that
// terminate naturally use this to shrink the group. Removing an
// absent handle is a no-op.
func (g *CancelGroup) Remove(c Canceler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m == c {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

// Cancel cancels every current member and marks the group canceled.
// It is idempotent, and safe to call re-entrantly: a member whose
// Cancel synchronously cancels the group again (same-thread disposal
// chains) neither deadlocks nor re-runs member teardown, because
// members are detached under the lock and invoked outside it.
//
// A member whose teardown panics does not stop the remaining members
// from being canceled; the recovered value is routed to the
// undeliverable-error handler as a [*PanicError].
func (g *CancelGroup) Cancel() {
	g.mu.Lock()
	if g.canceled {
		g.mu.Unlock()
		return
	}
	g.canceled = true
	members := g.members
	g.members = nil
	g.mu.Unlock()

	for _, m := range members {
		safeCancel(m)
	}
}

// cancelExcept cancels every member other than keep. The group stays
// live and retains keep, so a later Cancel still tears keep down.
// Used by the race winner to drop all losers while keeping its own
// subscription.
func (g *CancelGroup) cancelExcept(keep Canceler) {
	g.mu.Lock()
	if g.canceled {
		g.mu.Unlock()
		return
	}
	members := g.members
	g.members = nil
	for _, m := range members {
		if m == keep {
			g.members = append(g.members, m)
		}
	}
	g.mu.Unlock()

	for _, m := range members {
		if m != keep {
			safeCancel(m)
		}
	}
}

// IsCanceled reports whether Cancel has been called.
func (g *CancelGroup) IsCanceled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canceled
}

// Len returns the current number of members.
func (g *CancelGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}
