// Package pushx provides push-based stream primitives for Go.
//
// A [Source] pushes signals at a [Sink]: a subscription
// acknowledgment carrying a [Canceler], zero or more data signals,
// and exactly one terminal signal (completion or failure). Sources
// are plain functions, so a subscription is just a call, and
// cancellation is compositional and idempotent throughout.
//
// # Racing Sources
//
// The core combinator is [Race]: subscribe several sources, let the
// first one to produce any signal become the sole winner, forward
// only the winner's signals downstream, and cancel every other
// subscription immediately:
//
//	winner := pushx.Race(primary, replicaA, replicaB)
//	winner.Subscribe(pushx.SinkFuncs[string]{
//	    OnNext:     func(v string) { fmt.Println(v) },
//	    OnError:    func(err error) { fmt.Println("failed:", err) },
//	    OnComplete: func() { fmt.Println("done") },
//	})
//
// Winner election is a single atomic compare-and-set shared by all
// raced sources, so exactly one wins even when signals arrive from
// concurrent goroutines. A failure competes like any other signal:
// if it arrives first, it wins and the race fails.
//
// [RaceWith] is the two-source convenience form.
//
// # Cancellation
//
// [Canceler] is the idempotent handle to anything cancellable.
// [CancelFunc] builds one from a teardown function. [CancelGroup]
// composes many handles into one, cancels current and future members
// together, and tolerates re-entrant same-thread cancellation chains.
//
// # Sources
//
// Constructors for common shapes: [Empty], [Never], [Just],
// [FromSlice], [Throw], [Defer], and [FromChan] to bridge a Go
// channel into the push world.
//
// # Undeliverable Errors
//
// Errors with no downstream to go to (a losing source's failure, a
// failure raised during teardown, a contract violation such as a
// second terminal signal) are routed to a process-wide handler
// installed with [OnUndeliverable]. The default handler logs them at
// warning level.
//
// # Virtual Time
//
// The [github.com/baxromumarov/pushx/vtime] subpackage provides a
// deterministic logical-clock scheduler. Driving raced sources from a
// vtime.Scheduler makes timing-dependent outcomes exactly
// reproducible, which real-clock concurrency cannot.
package pushx
