package ksexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eapache/queue"
)

// ErrStopped is returned from [*Executor.Do]
// when the executor's main loop has stopped
// before the submitted function could run.
var ErrStopped = errors.New("executor stopped")

// Executor runs submitted functions sequentially on its own goroutine.
type Executor struct {
	log *slog.Logger

	// Guards pending and stopped.
	// The queue type is not safe for concurrent use,
	// and Submit must never block on the main loop.
	mu      sync.Mutex
	pending *queue.Queue
	stopped bool

	// Buffered with capacity 1.
	// A pending signal means the main loop must drain the queue.
	wake chan struct{}

	done chan struct{}
}

// New returns a running Executor.
// The executor stops once ctx is canceled;
// any work still queued at that point is discarded.
func New(ctx context.Context, log *slog.Logger) *Executor {
	e := &Executor{
		log: log,

		pending: queue.New(),

		wake: make(chan struct{}, 1),

		done: make(chan struct{}),
	}

	go e.mainLoop(ctx)

	return e
}

func (e *Executor) mainLoop(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			e.log.Info(
				"Stopping due to context cancellation",
				"cause", context.Cause(ctx),
			)

			e.mu.Lock()
			e.stopped = true
			dropped := e.pending.Length()
			e.pending = queue.New()
			e.mu.Unlock()

			if dropped > 0 {
				e.log.Debug("Discarded pending work", "count", dropped)
			}
			return

		case <-e.wake:
			e.drain(ctx)
		}
	}
}

// drain runs queued functions until the queue is empty
// or until ctx is canceled.
func (e *Executor) drain(ctx context.Context) {
	for ctx.Err() == nil {
		fn := e.pop()
		if fn == nil {
			return
		}
		fn()
	}
}

func (e *Executor) pop() func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending.Length() == 0 {
		return nil
	}
	return e.pending.Remove().(func())
}

// Submit enqueues fn to run on the executor goroutine and returns immediately.
// Functions run in the order they were submitted.
//
// Submit reports false if the executor has already stopped,
// in which case fn will never run.
func (e *Executor) Submit(fn func()) bool {
	if fn == nil {
		panic(errors.New("BUG: Submit called with nil function"))
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false
	}
	e.pending.Add(fn)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
		// Main loop already has a pending wake signal.
	}

	return true
}

// Do submits fn and blocks until it has run.
//
// If ctx is canceled first, Do returns an error wrapping the context cause.
// The function may still run later in that case,
// so callers must only use Do for functions that tolerate
// an abandoned result.
func (e *Executor) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !e.Submit(func() {
		fn()
		close(ran)
	}) {
		return ErrStopped
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf(
			"context canceled while waiting for executor: %w", context.Cause(ctx),
		)
	case <-e.done:
		// The function may have run just before the loop stopped.
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	case <-ran:
		return nil
	}
}

// Done returns a channel that is closed once the main loop has stopped.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the main loop has stopped.
func (e *Executor) Wait() {
	<-e.done
}
