package pushx_test

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/pushx"
	"github.com/baxromumarov/pushx/vtime"
)

// recordSink captures every signal in arrival order.
type recordSink[T any] struct {
	mu  sync.Mutex
	sub pushx.Canceler
	log []string
}

func (r *recordSink[T]) OnSubscribe(c pushx.Canceler) {
	r.mu.Lock()
	r.sub = c
	r.mu.Unlock()
}

func (r *recordSink[T]) OnNext(v T) { r.append(fmt.Sprintf("next:%v", v)) }

func (r *recordSink[T]) OnError(err error) { r.append("error:" + err.Error()) }

func (r *recordSink[T]) OnComplete() { r.append("complete") }

func (r *recordSink[T]) append(ev string) {
	r.mu.Lock()
	r.log = append(r.log, ev)
	r.mu.Unlock()
}

func (r *recordSink[T]) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func (r *recordSink[T]) handle() pushx.Canceler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sub
}

// scheduledSource emits values at multiples of interval on the given
// scheduler, then completes, or fails with failWith when non-nil.
func scheduledSource(sch *vtime.Scheduler, values []string, interval time.Duration, failWith error) pushx.Source[string] {
	return func(sink pushx.Sink[string]) {
		parent := pushx.NewCancelGroup()
		sink.OnSubscribe(parent)

		delay := interval
		for _, v := range values {
			v := v
			parent.Add(sch.Schedule(delay, func() { sink.OnNext(v) }))
			delay += interval
		}
		parent.Add(sch.Schedule(delay, func() {
			if failWith != nil {
				sink.OnError(failWith)
			} else {
				sink.OnComplete()
			}
		}))
	}
}

// counting wraps src so each subscription attempt is counted.
func counting[T any](src pushx.Source[T], n *atomic.Int32) pushx.Source[T] {
	return func(sink pushx.Sink[T]) {
		n.Add(1)
		src(sink)
	}
}

// probeSource is a manually driven source that exposes its sink and
// subscription handle, so tests can push signals and inspect
// cancellation after the fact.
type probeSource struct {
	mu     sync.Mutex
	sink   pushx.Sink[int]
	handle pushx.Canceler
}

func (p *probeSource) source() pushx.Source[int] {
	return func(sink pushx.Sink[int]) {
		c := pushx.CancelFunc(nil)
		p.mu.Lock()
		p.sink = sink
		p.handle = c
		p.mu.Unlock()
		sink.OnSubscribe(c)
	}
}

func (p *probeSource) emit(v int) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	sink.OnNext(v)
}

func (p *probeSource) fail(err error) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	sink.OnError(err)
}

func (p *probeSource) canceled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle.IsCanceled()
}

// captureUndeliverable installs a collecting undeliverable handler
// for the duration of the test.
func captureUndeliverable(t *testing.T) func() []error {
	t.Helper()
	var mu sync.Mutex
	var errs []error
	pushx.OnUndeliverable(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})
	t.Cleanup(func() { pushx.OnUndeliverable(nil) })
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), errs...)
	}
}

func TestRaceFastestSourceWins(t *testing.T) {
	sch := vtime.NewScheduler()
	a := scheduledSource(sch, []string{"1", "11", "111", "1111"}, 2000*time.Millisecond, nil)
	b := scheduledSource(sch, []string{"2", "22", "222", "2222"}, 1000*time.Millisecond, nil)
	c := scheduledSource(sch, []string{"3", "33", "333", "3333"}, 3000*time.Millisecond, nil)

	sink := &recordSink[string]{}
	pushx.Race(a, b, c)(sink)

	sch.AdvanceBy(100000 * time.Millisecond)

	assert.Equal(t, []string{
		"next:2", "next:22", "next:222", "next:2222", "complete",
	}, sink.events())
}

func TestRaceWinnerErrorForwarded(t *testing.T) {
	errs := captureUndeliverable(t)

	sch := vtime.NewScheduler()
	a := scheduledSource(sch, nil, 2000*time.Millisecond, errors.New("fake a"))
	b := scheduledSource(sch, []string{"2", "22", "222", "2222"}, 1000*time.Millisecond, errors.New("boom"))
	c := scheduledSource(sch, nil, 3000*time.Millisecond, errors.New("fake c"))

	sink := &recordSink[string]{}
	pushx.Race(a, b, c)(sink)

	sch.AdvanceBy(100000 * time.Millisecond)

	assert.Equal(t, []string{
		"next:2", "next:22", "next:222", "next:2222", "error:boom",
	}, sink.events())
	// Loser terminals were canceled before ever firing, so nothing
	// should have reached the undeliverable handler either.
	assert.Empty(t, errs())
}

func TestRaceEmptyWinnerCompletes(t *testing.T) {
	sch := vtime.NewScheduler()
	a := scheduledSource(sch, []string{"1"}, 2000*time.Millisecond, nil)
	b := scheduledSource(sch, nil, 1000*time.Millisecond, nil)
	c := scheduledSource(sch, []string{"3"}, 3000*time.Millisecond, nil)

	sink := &recordSink[string]{}
	pushx.Race(a, b, c)(sink)

	sch.AdvanceBy(100000 * time.Millisecond)

	assert.Equal(t, []string{"complete"}, sink.events())
}

func TestRaceSubscribesEachSourceOnce(t *testing.T) {
	sch := vtime.NewScheduler()
	var na, nb atomic.Int32
	a := counting(scheduledSource(sch, []string{"a"}, 2000*time.Millisecond, nil), &na)
	b := counting(scheduledSource(sch, []string{"b"}, 1000*time.Millisecond, nil), &nb)

	sink := &recordSink[string]{}
	pushx.Race(a, b)(sink)

	sch.AdvanceBy(10000 * time.Millisecond)

	assert.Equal(t, int32(1), na.Load())
	assert.Equal(t, int32(1), nb.Load())
	assert.Equal(t, []string{"next:b", "complete"}, sink.events())
}

func TestRaceSynchronousSubscriptionOrder(t *testing.T) {
	// The first source resolves entirely within its own subscription
	// call, so the second is never in the running even though it
	// would emit immediately.
	var nb atomic.Int32
	first := pushx.Just("first")
	second := counting(pushx.Just("second"), &nb)

	sink := &recordSink[string]{}
	pushx.Race(first, second)(sink)

	assert.Equal(t, []string{"next:first", "complete"}, sink.events())
	assert.Equal(t, int32(0), nb.Load())
}

func TestRaceCancelsLosersOnFirstSignal(t *testing.T) {
	p0, p1, p2 := &probeSource{}, &probeSource{}, &probeSource{}

	sink := &recordSink[int]{}
	pushx.Race(p0.source(), p1.source(), p2.source())(sink)

	require.False(t, p0.canceled())
	require.False(t, p1.canceled())
	require.False(t, p2.canceled())

	p0.emit(42)

	assert.False(t, p0.canceled(), "winner subscription must stay live")
	assert.True(t, p1.canceled())
	assert.True(t, p2.canceled())
	assert.Equal(t, []string{"next:42"}, sink.events())
}

func TestRaceLoserErrorGoesToUndeliverable(t *testing.T) {
	errs := captureUndeliverable(t)

	p0, p1 := &probeSource{}, &probeSource{}
	sink := &recordSink[int]{}
	pushx.Race(p0.source(), p1.source())(sink)

	p0.emit(1)
	boom := errors.New("loser boom")
	p1.fail(boom)

	assert.Equal(t, []string{"next:1"}, sink.events())
	require.Len(t, errs(), 1)
	assert.ErrorIs(t, errs()[0], boom)
}

func TestRaceLoserDisposalPanicContained(t *testing.T) {
	errs := captureUndeliverable(t)

	// The loser's teardown fails. Releasing its resources is the
	// loser's own problem; the winner's forward path must not see it.
	loser := pushx.Source[int](func(sink pushx.Sink[int]) {
		sink.OnSubscribe(pushx.CancelFunc(func() {
			panic("release failed")
		}))
	})
	p := &probeSource{}

	sink := &recordSink[int]{}
	pushx.Race(p.source(), loser)(sink)

	require.NotPanics(t, func() { p.emit(1) })

	assert.Equal(t, []string{"next:1"}, sink.events())
	require.Len(t, errs(), 1)
	var pe *pushx.PanicError
	require.ErrorAs(t, errs()[0], &pe)
	assert.Equal(t, "release failed", pe.Value)
}

func TestRaceExternalCancelSuppressesSignals(t *testing.T) {
	errs := captureUndeliverable(t)

	p0, p1, p2 := &probeSource{}, &probeSource{}, &probeSource{}
	sink := &recordSink[int]{}
	pushx.Race(p0.source(), p1.source(), p2.source())(sink)

	handle := sink.handle()
	require.NotNil(t, handle)
	handle.Cancel()
	handle.Cancel() // idempotent

	assert.True(t, p0.canceled())
	assert.True(t, p1.canceled())
	assert.True(t, p2.canceled())

	// A disposed-but-in-flight signal must never reach downstream.
	p0.emit(7)
	p1.fail(errors.New("too late"))

	assert.Empty(t, sink.events())
	require.Len(t, errs(), 1)
}

func TestRaceWinnerTerminalEndsRace(t *testing.T) {
	p0, p1 := &probeSource{}, &probeSource{}
	sink := &recordSink[int]{}
	pushx.Race(p0.source(), p1.source())(sink)

	p0.emit(1)
	p0.sink.OnComplete()

	// Terminal tears down the winner's own subscription too.
	assert.True(t, p0.canceled())
	assert.Equal(t, []string{"next:1", "complete"}, sink.events())

	// Anything after the terminal is dropped.
	p0.emit(2)
	assert.Equal(t, []string{"next:1", "complete"}, sink.events())
}

func TestRaceZeroSourcesIsCanonicalEmpty(t *testing.T) {
	got := pushx.Race[int]()
	want := pushx.Empty[int]()
	assert.Equal(t, reflect.ValueOf(want).Pointer(), reflect.ValueOf(got).Pointer())

	sink := &recordSink[int]{}
	got(sink)
	assert.Equal(t, []string{"complete"}, sink.events())
}

func TestRaceSingleSourcePassThrough(t *testing.T) {
	src := pushx.Just(1, 2, 3)
	got := pushx.Race(src)
	assert.Equal(t, reflect.ValueOf(src).Pointer(), reflect.ValueOf(got).Pointer())

	sink := &recordSink[int]{}
	got(sink)
	assert.Equal(t, []string{"next:1", "next:2", "next:3", "complete"}, sink.events())
}

func TestRaceNilSourcePanics(t *testing.T) {
	mustPanicContains(t, "must not be nil", func() {
		pushx.Race(pushx.Just(1), nil)
	})
}

func TestRaceWithBinaryForm(t *testing.T) {
	sch := vtime.NewScheduler()
	a := scheduledSource(sch, []string{"slow"}, 2000*time.Millisecond, nil)
	b := scheduledSource(sch, []string{"fast"}, 1000*time.Millisecond, nil)

	sink := &recordSink[string]{}
	pushx.RaceWith(a, b)(sink)

	sch.AdvanceBy(5000 * time.Millisecond)

	assert.Equal(t, []string{"next:fast", "complete"}, sink.events())
}

func TestRaceConcurrentSourcesExactlyOneWinner(t *testing.T) {
	const sources = 8

	probes := make([]pushx.Source[int], sources)
	starts := make([]chan struct{}, sources)
	var wg sync.WaitGroup
	for i := 0; i < sources; i++ {
		i := i
		starts[i] = make(chan struct{})
		probes[i] = func(sink pushx.Sink[int]) {
			sink.OnSubscribe(pushx.CancelFunc(nil))
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-starts[i]
				sink.OnNext(i)
				sink.OnComplete()
			}()
		}
	}

	sink := &recordSink[int]{}
	pushx.Race(probes...)(sink)

	for _, ch := range starts {
		close(ch)
	}
	wg.Wait()

	events := sink.events()
	require.GreaterOrEqual(t, len(events), 1)
	assert.Equal(t, "complete", events[len(events)-1])

	// All data signals must come from the single winning source.
	winner := events[0]
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, winner, ev)
	}
}

func BenchmarkRaceSyncWinner(b *testing.B) {
	src := pushx.Race(pushx.Just(1), pushx.Never[int]())
	sink := &recordSink[int]{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		src(sink)
	}
}
