package pushx

import "sync/atomic"

// Sink receives a source's signals. Implementations must be prepared
// for calls from whatever execution context drives the source: the
// subscribing goroutine, a scheduler goroutine, or several producer
// goroutines over the subscription's lifetime (never concurrently for
// a well-behaved source).
type Sink[T any] interface {
	// OnSubscribe delivers the subscription's cancellation handle.
	// It is called exactly once, synchronously within the source's
	// subscription call, before any other signal.
	OnSubscribe(Canceler)

	// OnNext delivers one data item. Called zero or more times,
	// only between OnSubscribe and a terminal signal.
	OnNext(T)

	// OnError delivers the failure terminal signal. No signal may
	// follow it.
	OnError(error)

	// OnComplete delivers the success terminal signal. No signal may
	// follow it.
	OnComplete()
}

// Source is a push producer. Calling it subscribes the given sink:
// the source must synchronously invoke sink.OnSubscribe exactly once
// before returning any other signal, then push zero or more OnNext
// calls followed by exactly one OnError or OnComplete.
//
// A Source is stateless with respect to subscriptions: each call is
// an independent subscription with its own cancellation handle.
type Source[T any] func(Sink[T])

// SinkFuncs assembles a Sink from individual callbacks. Nil fields
// are ignored, so callers can observe only the signals they care
// about.
type SinkFuncs[T any] struct {
	OnSubscribe func(Canceler)
	OnNext      func(T)
	OnError     func(error)
	OnComplete  func()
}

// Subscribe subscribes fns to the source and returns the
// subscription's cancellation handle.
//
// The sink seen by the source is wrapped in a protocol guard: signals
// arriving after a terminal signal, or after the handle has been
// canceled, are suppressed instead of reaching fns. A duplicate
// terminal signal is a contract violation on the source's part and is
// routed to the undeliverable-error handler (see [OnUndeliverable]),
// since the call stack at that point belongs to the source.
func (s Source[T]) Subscribe(fns SinkFuncs[T]) Canceler {
	guard := &guardedSink[T]{fns: fns}
	s(guard)
	if c := guard.sub.Load(); c != nil {
		return *c
	}
	// The source broke the contract and never delivered a handle.
	deliverUndeliverable(ErrNoSubscribe)
	return Noop
}

// guardedSink enforces the sink half of the source contract on behalf
// of callback-based consumers.
type guardedSink[T any] struct {
	fns  SinkFuncs[T]
	sub  atomic.Pointer[Canceler]
	done atomic.Bool
}

func (g *guardedSink[T]) OnSubscribe(c Canceler) {
	if !g.sub.CompareAndSwap(nil, &c) {
		deliverUndeliverable(ErrDoubleSubscribe)
		c.Cancel()
		return
	}
	if g.fns.OnSubscribe != nil {
		g.fns.OnSubscribe(c)
	}
}

func (g *guardedSink[T]) OnNext(v T) {
	if g.done.Load() || g.canceled() {
		return
	}
	if g.fns.OnNext != nil {
		g.fns.OnNext(v)
	}
}

func (g *guardedSink[T]) OnError(err error) {
	if g.done.Swap(true) {
		// Second terminal signal: the error must not vanish, but it
		// cannot be delivered downstream either.
		deliverUndeliverable(err)
		return
	}
	if g.canceled() {
		deliverUndeliverable(err)
		return
	}
	if g.fns.OnError != nil {
		g.fns.OnError(err)
	}
}

func (g *guardedSink[T]) OnComplete() {
	if g.done.Swap(true) {
		deliverUndeliverable(ErrDoubleTerminal)
		return
	}
	if g.canceled() {
		return
	}
	if g.fns.OnComplete != nil {
		g.fns.OnComplete()
	}
}

func (g *guardedSink[T]) canceled() bool {
	c := g.sub.Load()
	return c != nil && (*c).IsCanceled()
}
