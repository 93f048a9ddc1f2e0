package pushx

import (
	"fmt"
	"sync/atomic"
)

// Race returns a source that races the given sources against each
// other: all of them are subscribed, the first to produce any signal
// (data, error, or completion) becomes the sole winner, its
// subsequent signals are forwarded downstream, and every other
// source's subscription is canceled. Exactly one source ever delivers
// downstream.
//
// Sources are subscribed synchronously in argument order; a source
// that signals before its subscription call returns wins outright,
// because later sources have not been subscribed yet. Once a winner
// is decided, remaining sources are not subscribed at all. Under true
// concurrency the winner is whichever source's first signal lands its
// compare-and-swap first; drive sources from a vtime Scheduler when a
// reproducible outcome is needed.
//
// Racing zero sources yields [Empty]. Racing one source yields that
// source unchanged.
//
// Race panics if any source is nil.
func Race[T any](sources ...Source[T]) Source[T] {
	for i, s := range sources {
		if s == nil {
			panic(fmt.Sprintf("pushx: Race source[%d] must not be nil", i))
		}
	}
	switch len(sources) {
	case 0:
		return Empty[T]()
	case 1:
		return sources[0]
	}

	srcs := make([]Source[T], len(sources))
	copy(srcs, sources)

	return func(down Sink[T]) {
		st := &raceState[T]{
			group: NewCancelGroup(),
			down:  down,
		}
		st.winner.Store(noWinner)

		// The downstream handle cancels every subscription, current
		// and future, and raises stopped so that signals already in
		// flight on other goroutines are suppressed before delivery.
		down.OnSubscribe(CancelFunc(func() {
			st.stopped.Store(true)
			st.group.Cancel()
		}))

		for i, src := range srcs {
			if st.stopped.Load() || st.winner.Load() != noWinner {
				// Decided or canceled while subscribing: the rest of
				// the field never enters the race.
				return
			}
			src(&relaySink[T]{idx: int32(i), state: st})
		}
	}
}

// RaceWith is the binary form of [Race].
func RaceWith[T any](a, b Source[T]) Source[T] {
	return Race(a, b)
}

const noWinner int32 = -1

// raceState is the shared election state of one race invocation.
type raceState[T any] struct {
	winner     atomic.Int32 // index of the winner, noWinner until elected
	stopped    atomic.Bool  // external cancel or race over: suppress delivery
	terminated atomic.Bool  // a terminal signal has been forwarded downstream
	group      *CancelGroup
	down       Sink[T]
}

// finish ends the race after the winner's terminal signal by tearing
// down whatever subscriptions remain.
func (st *raceState[T]) finish() {
	st.stopped.Store(true)
	st.group.Cancel()
}

// relaySink wraps one raced source, intercepting its signals for
// winner election.
type relaySink[T any] struct {
	idx   int32
	state *raceState[T]
	sub   Canceler
}

func (r *relaySink[T]) OnSubscribe(c Canceler) {
	r.sub = c
	if !r.state.group.Add(c) {
		// Group already canceled; Add canceled c for us.
		return
	}
	// A winner may have been elected on another goroutine between the
	// group snapshot in cancelExcept and our Add. Re-check so the
	// handle cannot outlive the election.
	if w := r.state.winner.Load(); (w != noWinner && w != r.idx) || r.state.stopped.Load() {
		r.state.group.Remove(c)
		safeCancel(c)
	}
}

// won reports whether this relay's source is the race winner,
// electing it now if the race is still open. The first call that
// lands the compare-and-swap cancels every other subscription.
func (r *relaySink[T]) won() bool {
	w := r.state.winner.Load()
	if w == r.idx {
		return true
	}
	if w != noWinner {
		return false
	}
	if r.state.winner.CompareAndSwap(noWinner, r.idx) {
		// Losers are torn down fire-and-forget; their cancellation
		// must not delay the winning signal's forward path.
		r.state.group.cancelExcept(r.sub)
		return true
	}
	return false
}

func (r *relaySink[T]) OnNext(v T) {
	if r.state.stopped.Load() {
		return
	}
	if !r.won() {
		r.selfCancel()
		return
	}
	if r.state.stopped.Load() || r.state.terminated.Load() {
		// Canceled between election and delivery, or the winning
		// source kept signalling after its terminal.
		return
	}
	r.state.down.OnNext(v)
}

func (r *relaySink[T]) OnError(err error) {
	if r.state.stopped.Load() || !r.won() {
		// A loser's failure, or a failure after the race was torn
		// down, must neither reach downstream nor disappear.
		deliverUndeliverable(err)
		r.selfCancel()
		return
	}
	if r.state.terminated.Swap(true) {
		deliverUndeliverable(err)
		return
	}
	r.state.down.OnError(err)
	r.state.finish()
}

func (r *relaySink[T]) OnComplete() {
	if r.state.stopped.Load() || !r.won() {
		r.selfCancel()
		return
	}
	if r.state.terminated.Swap(true) {
		deliverUndeliverable(ErrDoubleTerminal)
		return
	}
	r.state.down.OnComplete()
	r.state.finish()
}

func (r *relaySink[T]) selfCancel() {
	if r.sub != nil {
		safeCancel(r.sub)
	}
}
