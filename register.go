package keyedstate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gordian-engine/keyedstate/internal/ksexec"
	"github.com/gordian-engine/keyedstate/internal/ksotel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Register maps keys to independent latest-value state streams.
// See the package documentation for the lifecycle of a key.
//
// All methods are safe for concurrent use.
type Register[K comparable, T comparable] struct {
	log *slog.Logger

	exec *ksexec.Executor

	// Only accessed on the executor goroutine.
	holders map[K]*holder[T]

	metrics ksotel.Metrics
	tracer  ksotel.Tracer
}

// Config is the configuration passed to [NewRegister].
type Config struct {
	// Meter provider for register metrics.
	// If nil, the otel global meter provider is used.
	MeterProvider metric.MeterProvider

	// Tracer provider for subscription spans.
	// If nil, spans are not recorded.
	TracerProvider trace.TracerProvider
}

// NewRegister returns a running Register.
// The register stops once ctx is canceled;
// use [*Register.Wait] to block until it has fully stopped.
func NewRegister[K comparable, T comparable](
	ctx context.Context, log *slog.Logger, cfg Config,
) *Register[K, T] {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = ksotel.NopTracerProvider()
	}

	return &Register[K, T]{
		log: log,

		exec: ksexec.New(ctx, log.With("sys", "executor")),

		holders: map[K]*holder[T]{},

		metrics: ksotel.NewMetrics(log, cfg.MeterProvider),
		tracer:  tp.Tracer(ksotel.TracerName),
	}
}

// Wait blocks until the register's executor has stopped.
func (r *Register[K, T]) Wait() {
	r.exec.Wait()
}

// Emit sets value as the latest value for key
// and delivers it to every current subscriber of key.
//
// Emit always clears a pending release of key,
// so the key survives until it is released again.
//
// Emit returns before the value has taken effect.
// If the register has stopped, the value is dropped.
func (r *Register[K, T]) Emit(key K, value T) {
	if !r.exec.Submit(func() {
		r.handleEmit(key, value)
	}) {
		r.log.Debug("Dropping emit on stopped register", "key", key)
	}
}

func (r *Register[K, T]) handleEmit(key K, value T) {
	h := r.getOrCreate(key, false)
	h.releasable = false
	h.publish(value)

	r.metrics.Emitted(context.Background())
}

// Release marks key as eligible for removal.
// The key's holder is removed immediately if it has no subscribers,
// or otherwise when its last subscriber leaves.
// Releasing a key with no holder is a no-op.
//
// Release returns before it has taken effect.
func (r *Register[K, T]) Release(key K) {
	if !r.exec.Submit(func() {
		r.handleRelease(key)
	}) {
		r.log.Debug("Dropping release on stopped register", "key", key)
	}
}

func (r *Register[K, T]) handleRelease(key K) {
	h, ok := r.holders[key]
	if !ok {
		return
	}

	h.releasable = true
	r.maybeRemove(key, h)
}

// Subscribe registers a new subscription to key
// and returns once the registration has taken effect.
//
// The first value from the returned subscription
// is the key's latest value, if it has one.
// The caller must call [*Subscription.Close] when finished.
//
// If ctx is canceled before the registration completes,
// any partial registration is undone and an error is returned.
func (r *Register[K, T]) Subscribe(ctx context.Context, key K) (*Subscription[K, T], error) {
	s := &Subscription[K, T]{
		r:   r,
		key: key,
		id:  uuid.New(),

		closed: make(chan struct{}),
	}

	_, s.span = r.tracer.Start(
		ctx, "keyedstate.Subscription",
		ksotel.WithAttributes(
			ksotel.LazyValueAttr("key", key),
			ksotel.SubscriptionIDAttr(s.id),
		),
	)

	ready := make(chan struct{})
	if !r.exec.Submit(func() {
		r.handleSubscribe(s)
		close(ready)
	}) {
		s.span.End()
		return nil, ErrStopped
	}

	select {
	case <-ctx.Done():
		// The unsubscribe is queued behind the subscribe,
		// so the subscriber count is balanced either way.
		s.Close()
		return nil, fmt.Errorf(
			"context canceled while subscribing: %w", context.Cause(ctx),
		)

	case <-r.exec.Done():
		s.span.End()
		return nil, ErrStopped

	case <-ready:
		return s, nil
	}
}

func (r *Register[K, T]) handleSubscribe(s *Subscription[K, T]) {
	h := r.getOrCreate(s.key, true)
	h.subscribers++

	s.h = h
	s.cursor = h.tail
	s.replay, s.hasReplay = h.latest, h.hasLatest

	r.metrics.SubscribersChanged(context.Background(), 1)
}

func (r *Register[K, T]) handleUnsubscribe(s *Subscription[K, T]) {
	h := s.h
	if h == nil {
		panic(fmt.Errorf(
			"BUG: unsubscribe for key %v ran before its subscribe", s.key,
		))
	}
	if h.subscribers <= 0 {
		panic(fmt.Errorf(
			"BUG: unsubscribe for key %v with subscriber count %d", s.key, h.subscribers,
		))
	}

	h.subscribers--
	r.metrics.SubscribersChanged(context.Background(), -1)

	r.maybeRemove(s.key, h)
}

// Collect delivers values for key to onValue,
// starting with the key's latest value if it has one,
// until ctx is canceled or onValue returns an error.
//
// Consecutive equal values are delivered only once to this call,
// independently of any other subscriber.
//
// onValue runs on the calling goroutine.
// The subscription is always cleaned up before Collect returns,
// including when onValue panics.
//
// Collect returns a [CallbackError] wrapping any error from onValue,
// an error wrapping the context cause on cancellation,
// or [ErrStopped] if the register stopped.
func (r *Register[K, T]) Collect(ctx context.Context, key K, onValue func(T) error) error {
	s, err := r.Subscribe(ctx, key)
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		v, err := s.Next(ctx)
		if err != nil {
			return err
		}

		if err := onValue(v); err != nil {
			cbErr := CallbackError{Err: err}
			s.span.AddEvent(
				"keyedstate.callback_error",
				ksotel.WithAttributes(ksotel.ErrorAttr(err)),
			)
			ksotel.SpanError(s.span, cbErr)
			return cbErr
		}
	}
}

// EmitFrom starts a background goroutine
// that emits every value received from ch to key.
//
// The returned done channel is closed when the goroutine stops,
// which will happen on context cancellation or
// if the given channel is closed.
func (r *Register[K, T]) EmitFrom(ctx context.Context, key K, ch <-chan T) (done <-chan struct{}) {
	doneCh := make(chan struct{})

	go r.emitFrom(ctx, key, ch, doneCh)

	return doneCh
}

func (r *Register[K, T]) emitFrom(
	ctx context.Context,
	key K,
	ch <-chan T,
	done chan<- struct{},
) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case v, ok := <-ch:
			if !ok {
				return
			}
			r.Emit(key, v)
		}
	}
}

// Sync blocks until every Emit, Release, and subscription close
// submitted before the call has taken effect.
func (r *Register[K, T]) Sync(ctx context.Context) error {
	return r.exec.Do(ctx, func() {})
}

// Stat returns a snapshot of key's holder.
// The boolean result is false if key currently has no holder.
func (r *Register[K, T]) Stat(ctx context.Context, key K) (HolderStat, bool, error) {
	var (
		st HolderStat
		ok bool
	)
	if err := r.exec.Do(ctx, func() {
		var h *holder[T]
		h, ok = r.holders[key]
		if ok {
			st = h.stat()
		}
	}); err != nil {
		return HolderStat{}, false, err
	}

	return st, ok, nil
}

// Len returns the number of keys that currently have a holder.
func (r *Register[K, T]) Len(ctx context.Context) (int, error) {
	var n int
	if err := r.exec.Do(ctx, func() {
		n = len(r.holders)
	}); err != nil {
		return 0, err
	}

	return n, nil
}

// getOrCreate returns the holder for key,
// creating it with the given releasable flag if it does not exist.
func (r *Register[K, T]) getOrCreate(key K, releasable bool) *holder[T] {
	if h, ok := r.holders[key]; ok {
		return h
	}

	h := newHolder[T](releasable)
	r.holders[key] = h

	r.log.Debug("Created holder", "key", key, "releasable", releasable)
	r.metrics.HolderCreated(context.Background())

	return h
}

// maybeRemove removes h from the registry
// if it is releasable and has no subscribers.
func (r *Register[K, T]) maybeRemove(key K, h *holder[T]) {
	if !h.removable() {
		return
	}

	if cur := r.holders[key]; cur != h {
		panic(fmt.Errorf(
			"BUG: attempted to remove holder for key %v that was not registered", key,
		))
	}

	delete(r.holders, key)

	r.log.Debug("Removed holder", "key", key)
	r.metrics.HolderRemoved(context.Background())
}
