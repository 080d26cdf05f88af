package server

import (
	"context"
	"fmt"

	"github.com/chazu/orc/engine"
	"golang.org/x/time/rate"
)

// engineRequest represents a unit of work to be executed on the engine goroutine.
type engineRequest struct {
	fn   func(*engine.Engine) any
	done chan engineResult
}

// engineResult holds the return value from an engine operation.
type engineResult struct {
	value any
	err   error
}

// EngineWorker owns an engine: it runs control cycles on a single goroutine
// and serializes every other engine access between them.
type EngineWorker struct {
	engine   *engine.Engine
	limiter  *rate.Limiter
	requests chan engineRequest
	start    chan struct{}
	quit     chan struct{}
	stopped  chan struct{}
	onDone   func(engine.Stats, error)

	started bool
	running bool
}

// NewEngineWorker creates an EngineWorker and starts the processing
// goroutine. When paced, cycles run no faster than the control rate;
// otherwise they run back to back. onDone, if set, is called on the worker
// goroutine whenever a performance ends.
func NewEngineWorker(e *engine.Engine, paced bool, onDone func(engine.Stats, error)) *EngineWorker {
	limit := rate.Inf
	if paced {
		limit = rate.Limit(e.Kr())
	}
	w := &EngineWorker{
		engine:   e,
		limiter:  rate.NewLimiter(limit, 1),
		requests: make(chan engineRequest, 64),
		start:    make(chan struct{}, 1),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		onDone:   onDone,
	}
	go w.loop()
	return w
}

// loop alternates between pending requests and control cycles.
func (w *EngineWorker) loop() {
	defer close(w.stopped)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-w.quit
		cancel()
	}()

	for {
		if !w.running {
			select {
			case req := <-w.requests:
				req.done <- w.execute(req.fn)
				w.running = w.started && !w.engine.Done()
			case <-w.start:
				w.started = true
				w.running = !w.engine.Done()
			case <-w.quit:
				return
			}
			continue
		}

		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
			continue
		case <-w.quit:
			return
		default:
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		done, err := w.cycle()
		if done {
			w.running = false
			if w.onDone != nil {
				w.onDone(w.engine.Stats(), err)
			}
		}
	}
}

// cycle runs one control cycle, recovering from panics in opcode code.
func (w *EngineWorker) cycle() (done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done, err = true, fmt.Errorf("control cycle: %v", r)
		}
	}()
	return w.engine.PerformKsmps()
}

// execute runs a function on the engine, recovering from panics.
func (w *EngineWorker) execute(fn func(*engine.Engine) any) engineResult {
	var result engineResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.engine)
	}()
	return result
}

// Do submits a function for execution on the engine goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *EngineWorker) Do(fn func(*engine.Engine) any) (any, error) {
	req := engineRequest{
		fn:   fn,
		done: make(chan engineResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.stopped:
		return nil, fmt.Errorf("engine worker stopped")
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.stopped:
		return nil, fmt.Errorf("engine worker stopped")
	}
}

// Start begins performing. Requests submitted before Start run against the
// idle engine.
func (w *EngineWorker) Start() {
	select {
	case w.start <- struct{}{}:
	default:
	}
}

// Stop shuts down the worker goroutine and waits for it to exit.
func (w *EngineWorker) Stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.stopped
}

// Engine returns the underlying engine, for the methods documented as safe
// for concurrent use.
func (w *EngineWorker) Engine() *engine.Engine {
	return w.engine
}
