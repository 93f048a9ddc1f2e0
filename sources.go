package pushx

import "context"

// emptySource completes immediately. Race relies on Empty returning
// this same function for every call, so the degenerate zero-source
// race has a stable identity.
func emptySource[T any](sink Sink[T]) {
	sink.OnSubscribe(Noop)
	sink.OnComplete()
}

// Empty returns the canonical source that emits nothing and completes
// immediately. Every call returns the same function value.
//
// The noinline directive is load-bearing: if calls to Empty are
// inlined, the compiler stamps a distinct emptySource wrapper per
// call site and the function value loses its canonical identity.
//
//go:noinline
func Empty[T any]() Source[T] {
	return emptySource[T]
}

// neverSource acknowledges the subscription and then stays silent.
func neverSource[T any](sink Sink[T]) {
	sink.OnSubscribe(CancelFunc(nil))
}

// Never returns a source that never emits and never terminates. Its
// subscription can still be canceled.
func Never[T any]() Source[T] {
	return neverSource[T]
}

// Throw returns a source that fails with err immediately.
func Throw[T any](err error) Source[T] {
	return func(sink Sink[T]) {
		sink.OnSubscribe(Noop)
		sink.OnError(err)
	}
}

// FromSlice returns a source that synchronously emits every element
// of items in order, then completes, all within the subscription
// call. Canceling the handle from inside OnNext stops the remaining
// emissions and suppresses the completion signal.
func FromSlice[T any](items []T) Source[T] {
	return func(sink Sink[T]) {
		c := CancelFunc(nil)
		sink.OnSubscribe(c)
		for _, v := range items {
			if c.IsCanceled() {
				return
			}
			sink.OnNext(v)
		}
		if !c.IsCanceled() {
			sink.OnComplete()
		}
	}
}

// Just returns a source that synchronously emits the given values and
// completes. It is FromSlice in variadic form.
func Just[T any](values ...T) Source[T] {
	return FromSlice(values)
}

// Defer returns a source that calls factory once per subscription and
// subscribes the sink to the produced source. Defer panics at
// subscription time if factory returns nil.
func Defer[T any](factory func() Source[T]) Source[T] {
	if factory == nil {
		panic("pushx: Defer factory must not be nil")
	}
	return func(sink Sink[T]) {
		src := factory()
		if src == nil {
			panic("pushx: Defer factory returned a nil source")
		}
		src(sink)
	}
}

// FromChan bridges a receive channel to a push source. Each
// subscription starts a goroutine that forwards received values as
// data signals; closing ch completes the subscription, and ctx
// cancellation fails it with ctx.Err(). Canceling the subscription
// handle stops the pump without signalling further.
func FromChan[T any](ctx context.Context, ch <-chan T) Source[T] {
	return func(sink Sink[T]) {
		stop := make(chan struct{})
		sink.OnSubscribe(CancelFunc(func() { close(stop) }))
		go func() {
			for {
				select {
				case <-stop:
					return
				case <-ctx.Done():
					sink.OnError(ctx.Err())
					return
				case v, ok := <-ch:
					if !ok {
						sink.OnComplete()
						return
					}
					sink.OnNext(v)
				}
			}
		}()
	}
}
