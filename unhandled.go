package pushx

import (
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Sentinel errors reported to the undeliverable-error handler when a
// source violates the signal contract.
var (
	// ErrDoubleTerminal marks a second terminal signal on one
	// subscription.
	ErrDoubleTerminal = errors.New("pushx: terminal signal delivered twice")

	// ErrDoubleSubscribe marks a second subscription acknowledgment
	// on one subscription.
	ErrDoubleSubscribe = errors.New("pushx: subscription acknowledged twice")

	// ErrNoSubscribe marks a source that returned without delivering
	// a cancellation handle.
	ErrNoSubscribe = errors.New("pushx: source returned without acknowledging subscription")
)

// undeliverableHandler holds a func(error). A dedicated holder type
// keeps atomic.Value happy when handlers of different concrete
// closures are swapped in.
type undeliverableHolder struct{ fn func(error) }

var undeliverableHandler atomic.Value // of undeliverableHolder

// OnUndeliverable installs a process-wide handler for errors that
// have no downstream to go to: failures of race losers, failures
// raised during cancellation, and source contract violations. Passing
// nil restores the default handler, which logs at warning level.
//
// The handler may be called from any goroutine and must not panic.
func OnUndeliverable(fn func(error)) {
	undeliverableHandler.Store(undeliverableHolder{fn: fn})
}

func deliverUndeliverable(err error) {
	if err == nil {
		return
	}
	if h, ok := undeliverableHandler.Load().(undeliverableHolder); ok && h.fn != nil {
		h.fn(err)
		return
	}
	logrus.WithError(err).Warn("pushx: undeliverable error")
}
