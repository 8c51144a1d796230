// Package office implements the per-office FIFO queue, bounded worker pool,
// and cooperative break state machine that make up the simulation's office
// engine (component C). Each office encapsulates its mutable state behind a
// single mutex with condition signaling, one condition for "queue/state
// changed" per the shared-resource policy, mirroring the guard package's
// lock-check-mutate-unlock discipline.
package office

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/anthropics/bureaucracy-sim/internal/config"
	"github.com/anthropics/bureaucracy-sim/internal/domain"
	"github.com/anthropics/bureaucracy-sim/internal/eventsink"
	"github.com/anthropics/bureaucracy-sim/internal/future"
	"github.com/anthropics/bureaucracy-sim/internal/simerr"
)

// currentOfficeKey is the context key a worker installs around its service
// call, naming the office and counter it is currently serving on. Submit
// consults it to detect reentrant calls from within a task's own work body.
type currentOfficeKey struct{}

// officeMarker is the value stored under currentOfficeKey: the office a
// worker is servicing and the counter index it occupies, so a reentrant
// executeInline can attribute its own CounterStart/CounterFinish events to
// the calling worker's counter.
type officeMarker struct {
	office       string
	counterIndex int
}

// WithinOffice reports the office name the given context is currently being
// serviced under, if any. Exported so tests and the orchestrator can reason
// about reentrancy without depending on office internals.
func WithinOffice(ctx context.Context) (string, bool) {
	marker, ok := ctx.Value(currentOfficeKey{}).(officeMarker)
	if !ok {
		return "", false
	}
	return marker.office, true
}

// entry is an OfficeQueueEntry: a task awaiting service plus the sequence
// number it was admitted under and the future its outcome settles into.
type entry struct {
	task       domain.IssuanceTask
	sequence   int64
	completion *future.Future
}

// state holds an office's mutable fields, guarded by mu.
type state struct {
	mu   sync.Mutex
	cond *sync.Cond

	spec          config.OfficeSpec
	sink          eventsink.EventSink
	queue         *list.List // of *entry
	runtimeState  domain.OfficeRuntimeState
	accepting     bool
	activeServices int
	nextSequence  int64
	rng           *rand.Rand
}

// Office is the per-office FIFO queue, worker pool, and break state machine
// described in spec.md §4.3.
type Office struct {
	st *state
	wg sync.WaitGroup
}

// New constructs an Office from a spec and starts its worker pool.
func New(spec config.OfficeSpec, sink eventsink.EventSink) *Office {
	st := &state{
		spec:         spec,
		sink:         sink,
		queue:        list.New(),
		runtimeState: domain.OfficeOpen,
		accepting:    true,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	st.cond = sync.NewCond(&st.mu)

	o := &Office{st: st}
	for i := 0; i < spec.Counters; i++ {
		o.wg.Add(1)
		go o.runWorker(i)
	}
	return o
}

// Name returns the office's configured name.
func (o *Office) Name() string {
	return o.st.spec.Name
}

// State returns the office's current runtime state.
func (o *Office) State() domain.OfficeRuntimeState {
	o.st.mu.Lock()
	defer o.st.mu.Unlock()
	return o.st.runtimeState
}

// QueueSize returns the number of entries currently waiting (admitted but
// not yet in service).
func (o *Office) QueueSize() int {
	o.st.mu.Lock()
	defer o.st.mu.Unlock()
	return o.st.queue.Len()
}

// Submit enqueues a task and returns a future that settles with its result.
// Fails fast with ShuttingDown if the office has begun teardown. Blocks
// while the office is not accepting (BREAK_PENDING or ON_BREAK) unless ctx
// carries the reentrancy marker for this same office, in which case the
// task executes inline on the calling worker instead of being queued.
func (o *Office) Submit(ctx context.Context, task domain.IssuanceTask) *future.Future {
	if marker, ok := ctx.Value(currentOfficeKey{}).(officeMarker); ok && marker.office == o.st.spec.Name {
		return o.executeInline(ctx, marker.counterIndex, task)
	}

	st := o.st
	st.mu.Lock()

	for st.runtimeState != domain.OfficeShutdown && !st.accepting {
		st.cond.Wait()
	}
	if st.runtimeState == domain.OfficeShutdown {
		st.mu.Unlock()
		f := future.New()
		f.Fail(simerr.ErrShuttingDown)
		return f
	}

	seq := st.nextSequence
	st.nextSequence++
	e := &entry{task: task, sequence: seq, completion: future.New()}
	st.queue.PushBack(e)

	snapshot := make([]string, 0, st.queue.Len())
	for el := st.queue.Front(); el != nil; el = el.Next() {
		queued := el.Value.(*entry)
		snapshot = append(snapshot, queued.task.CustomerID+" REQUESTING "+queued.task.DocumentName)
	}
	st.sink.Queue(st.spec.Name, task.CustomerID, task.DocumentName, snapshot)

	st.cond.Broadcast()
	st.mu.Unlock()

	return e.completion
}

// executeInline runs a task's work body immediately on the calling worker,
// bypassing the queue and the accepting check. It still applies the full
// service delay, matching a queued task's timing, per the spec's decision
// to preserve the compounded-delay contract on the reentrancy path, and it
// still emits CounterStart/CounterFinish under the calling worker's counter
// — only the QUEUE admission is skipped on the reentrancy path.
func (o *Office) executeInline(ctx context.Context, counterIndex int, task domain.IssuanceTask) *future.Future {
	f := future.New()
	st := o.st

	st.mu.Lock()
	delay := serviceDelay(st.rng, st.spec.MinService, st.spec.MaxService)
	st.mu.Unlock()

	o.st.sink.CounterStart(st.spec.Name, counterIndex, task.CustomerID, task.DocumentName)

	start := time.Now()
	time.Sleep(delay)
	result, err := callWork(ctx, task)
	if err != nil {
		f.Fail(err)
		return f
	}
	result.ServiceDuration = time.Since(start)
	f.Settle(result)
	o.st.sink.CounterFinish(st.spec.Name, counterIndex, task.CustomerID, task.DocumentName)
	return f
}

// callWork invokes a task's work body, converting a panic into an Underlying
// error instead of crashing the calling goroutine. Any other unexpected
// failure the work body returns as a plain (non-*SimError) error is wrapped
// the same way, per spec.md's Underlying kind covering "any unexpected
// failure from user-supplied callables."
func callWork(ctx context.Context, task domain.IssuanceTask) (result domain.IssuanceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			var cause error
			if e, ok := r.(error); ok {
				cause = e
			} else {
				cause = fmt.Errorf("%v", r)
			}
			err = simerr.NewUnderlying(cause)
		}
	}()
	result, err = task.Work(ctx)
	var simErr *simerr.SimError
	if err != nil && !errors.As(err, &simErr) {
		err = simerr.NewUnderlying(err)
	}
	return result, err
}

func serviceDelay(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(rng.Int63n(int64(span)))
}

// runWorker is the admission loop for one counter. counterIndex identifies
// the counter for logging.
func (o *Office) runWorker(counterIndex int) {
	defer o.wg.Done()
	st := o.st

	for {
		st.mu.Lock()
		for st.queue.Len() == 0 || !st.accepting {
			if st.runtimeState == domain.OfficeShutdown {
				st.mu.Unlock()
				return
			}
			st.cond.Wait()
		}
		if st.runtimeState == domain.OfficeShutdown {
			st.mu.Unlock()
			return
		}

		front := st.queue.Front()
		st.queue.Remove(front)
		e := front.Value.(*entry)
		st.activeServices++
		delay := serviceDelay(st.rng, st.spec.MinService, st.spec.MaxService)
		st.mu.Unlock()

		o.st.sink.CounterStart(st.spec.Name, counterIndex, e.task.CustomerID, e.task.DocumentName)

		ctx := context.WithValue(context.Background(), currentOfficeKey{}, officeMarker{office: st.spec.Name, counterIndex: counterIndex})
		start := time.Now()
		time.Sleep(delay)
		result, err := callWork(ctx, e.task)
		serviceDuration := time.Since(start)

		if err != nil {
			e.completion.Fail(err)
		} else {
			result.ServiceDuration = serviceDuration
			e.completion.Settle(result)
			o.st.sink.CounterFinish(st.spec.Name, counterIndex, e.task.CustomerID, e.task.DocumentName)
		}

		st.mu.Lock()
		st.activeServices--
		o.maybeEnterBreakLocked()
		st.cond.Broadcast()
		st.mu.Unlock()
	}
}

// maybeEnterBreakLocked transitions BREAK_PENDING -> ON_BREAK once
// activeServices reaches zero. Must be called with st.mu held.
func (o *Office) maybeEnterBreakLocked() {
	st := o.st
	if st.runtimeState == domain.OfficeBreakPending && st.activeServices == 0 {
		st.runtimeState = domain.OfficeOnBreak
		go o.runBreak()
	}
}

// runBreak sleeps for the configured break duration and resumes accepting.
// Invoked exactly once per BREAK_PENDING -> ON_BREAK transition.
func (o *Office) runBreak() {
	st := o.st
	time.Sleep(st.spec.BreakDuration)

	st.mu.Lock()
	if st.runtimeState == domain.OfficeOnBreak {
		st.runtimeState = domain.OfficeOpen
		st.accepting = true
	}
	st.cond.Broadcast()
	st.mu.Unlock()
}

// TakeBreak requests a break: stop accepting new admissions, let in-flight
// services complete, then sleep for BreakDuration before resuming. Blocks
// until the break cycle it joins or starts has returned the office to OPEN
// (or the office has shut down). If a break is already pending or in
// progress, this call coalesces into it rather than starting a second cycle,
// but still waits for that cycle's completion before returning.
func (o *Office) TakeBreak() {
	st := o.st
	st.mu.Lock()

	if st.runtimeState == domain.OfficeShutdown {
		st.mu.Unlock()
		return
	}

	drives := false
	if st.runtimeState == domain.OfficeOpen {
		st.runtimeState = domain.OfficeBreakPending
		st.accepting = false
		if st.activeServices == 0 {
			st.runtimeState = domain.OfficeOnBreak
			drives = true
		}
		st.cond.Broadcast()
	}
	st.mu.Unlock()

	if drives {
		o.runBreak()
		return
	}

	st.mu.Lock()
	for st.runtimeState != domain.OfficeOpen && st.runtimeState != domain.OfficeShutdown {
		st.cond.Wait()
	}
	st.mu.Unlock()
}

// Shutdown initiates teardown: refuses further submissions, cancels queued
// entries that have not started, wakes all workers, and waits for them to
// exit. Idempotent.
func (o *Office) Shutdown() {
	st := o.st
	st.mu.Lock()
	if st.runtimeState == domain.OfficeShutdown {
		st.mu.Unlock()
		return
	}
	st.runtimeState = domain.OfficeShutdown
	st.accepting = false

	for st.queue.Len() > 0 {
		front := st.queue.Front()
		st.queue.Remove(front)
		e := front.Value.(*entry)
		e.completion.Fail(simerr.NewCancelled("office shutting down"))
	}
	st.cond.Broadcast()
	st.mu.Unlock()

	o.wg.Wait()
}
