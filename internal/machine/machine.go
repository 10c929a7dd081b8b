// Package machine provides the event-loop runtime shared by the patient
// state machines. Each machine owns one Runner: a buffered event queue
// drained by a single goroutine, so one event is fully handled (transition
// plus synchronous actions) before the next is accepted. Asynchronous work
// runs as invoked effects: goroutines that post their completion back into
// the same queue as ordinary events, never blocking event intake.
//
// Every effect is tagged with an epoch token. Re-entering a state bumps the
// epoch, so a completion from an abandoned invocation resolves against an
// expired epoch and is discarded instead of overwriting newer state.
package machine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marianoklecha/turnos-core/internal/observability/metrics"
	"github.com/marianoklecha/turnos-core/pkg/logging"
)

// Event is a typed message handled by a machine.
type Event interface {
	EventType() string
}

// Handler processes one event synchronously on the runner's loop goroutine.
type Handler func(Event)

// ErrRunnerClosed indicates the runner is no longer accepting events.
var ErrRunnerClosed = errors.New("machine: runner closed")

const defaultQueueSize = 128

type runnerConfig struct {
	queueSize int
	metrics   *metrics.MachineMetrics
}

// RunnerOption customizes runner behavior.
type RunnerOption func(*runnerConfig)

// WithQueueSize overrides the event queue capacity.
func WithQueueSize(size int) RunnerOption {
	return func(cfg *runnerConfig) {
		if size > 0 {
			cfg.queueSize = size
		}
	}
}

// WithMetrics attaches runtime metrics.
func WithMetrics(m *metrics.MachineMetrics) RunnerOption {
	return func(cfg *runnerConfig) {
		cfg.metrics = m
	}
}

// Runner drives one machine: it serializes event handling, runs invoked
// effects, and synchronizes snapshot reads against in-flight transitions.
type Runner struct {
	id      string
	logger  *logging.Logger
	metrics *metrics.MachineMetrics

	events  chan Event
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// stateMu guards the machine's state and context: held for writing
	// while the handler runs, for reading during snapshot reads.
	stateMu sync.RWMutex

	epochMu sync.Mutex
	epochs  map[string]uint64

	subMu sync.Mutex
	subs  map[int]chan struct{}
	seq   int
}

// NewRunner creates a stopped runner for the named machine. Call Start with
// the machine's handler to begin processing.
func NewRunner(id string, logger *logging.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = logging.Default()
	}

	cfg := runnerConfig{queueSize: defaultQueueSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		id:      id,
		logger:  logger.Named("machine." + id),
		metrics: cfg.metrics,
		events:  make(chan Event, cfg.queueSize),
		ctx:     ctx,
		cancel:  cancel,
		epochs:  make(map[string]uint64),
		subs:    make(map[int]chan struct{}),
	}
}

// ID returns the machine identifier.
func (r *Runner) ID() string {
	return r.id
}

// Start launches the event loop. It must be called exactly once.
func (r *Runner) Start(handler Handler) {
	if handler == nil {
		panic("machine: handler cannot be nil")
	}
	r.handler = handler
	r.wg.Add(1)
	go r.loop()
}

// Dispatch enqueues an event, blocking until there is queue space, the
// supplied context is done, or the runner has been stopped.
func (r *Runner) Dispatch(ctx context.Context, ev Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case r.events <- ev:
		return nil
	case <-r.ctx.Done():
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync blocks until every event queued before the call has been handled.
// Used by tests and graceful shutdown to drain the loop.
func (r *Runner) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := r.Dispatch(ctx, barrier{done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-r.ctx.Done():
		return ErrRunnerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read runs fn while no transition is in flight. Machines use it to take
// consistent snapshots of their state and context.
func (r *Runner) Read(fn func()) {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	fn()
}

// NextEpoch expires any outstanding invocation under key and returns the
// epoch the next invocation should carry.
func (r *Runner) NextEpoch(key string) uint64 {
	r.epochMu.Lock()
	defer r.epochMu.Unlock()
	r.epochs[key]++
	return r.epochs[key]
}

// Epoch returns the current epoch for key. A completion whose captured epoch
// no longer matches is stale and must be discarded.
func (r *Runner) Epoch(key string) uint64 {
	r.epochMu.Lock()
	defer r.epochMu.Unlock()
	return r.epochs[key]
}

// Stale reports whether an effect completion under key carries an expired
// epoch, recording the discard when it does.
func (r *Runner) Stale(key string, epoch uint64) bool {
	if epoch == r.Epoch(key) {
		return false
	}
	r.metrics.ObserveStaleResult(r.id, key)
	r.logger.Debug("discarding stale effect result", "effect", key, "epoch", epoch)
	return true
}

// Invoke runs fn on its own goroutine and posts the returned event back into
// the queue. A nil result posts nothing. The effect always runs to
// completion; staleness is decided by the handler via epoch comparison.
func (r *Runner) Invoke(key string, fn func(ctx context.Context) Event) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()
		ev := fn(r.ctx)
		r.metrics.ObserveEffect(r.id, key, time.Since(start).Seconds())
		if ev == nil {
			return
		}
		if err := r.Dispatch(context.Background(), ev); err != nil {
			r.logger.Debug("dropping effect result after shutdown", "effect", key)
		}
	}()
}

// Subscribe returns a channel signalled after each handled event, plus a
// cancel function. Receivers that lag are coalesced, not blocked on.
func (r *Runner) Subscribe() (<-chan struct{}, func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.seq++
	id := r.seq
	ch := make(chan struct{}, 1)
	r.subs[id] = ch
	return ch, func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subs, id)
	}
}

// Stop shuts the runner down and waits for the loop and outstanding effects,
// bounded by ctx.
func (r *Runner) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()
	r.logger.Debug("machine loop started")

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("machine loop stopping")
			return
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

func (r *Runner) handle(ev Event) {
	if b, ok := ev.(barrier); ok {
		close(b.done)
		return
	}

	r.stateMu.Lock()
	r.handler(ev)
	r.stateMu.Unlock()

	r.metrics.ObserveEvent(r.id, ev.EventType())
	r.notify()
}

func (r *Runner) notify() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type barrier struct {
	done chan struct{}
}

func (barrier) EventType() string { return "machine.barrier" }
