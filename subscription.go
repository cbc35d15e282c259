package keyedstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gordian-engine/keyedstate/internal/ksotel"
	"github.com/gordian-engine/keyedstate/kspubsub"
)

// Subscription is a single consumer of one key's values,
// returned from [*Register.Subscribe].
//
// Next and TryNext must be called from one goroutine at a time.
// Close may be called from any goroutine, any number of times.
type Subscription[K comparable, T comparable] struct {
	r   *Register[K, T]
	key K
	id  uuid.UUID

	span ksotel.Span

	// Set on the executor goroutine during subscribe.
	// h is only read back on the executor goroutine;
	// the remaining fields are handed to the subscriber
	// once Subscribe observes the subscribe has completed.
	h         *holder[T]
	cursor    *kspubsub.Stream[T]
	replay    T
	hasReplay bool

	// Last value delivered to this subscription,
	// for duplicate suppression.
	last    T
	hasLast bool

	closeOnce sync.Once
	closed    chan struct{}
}

// Key returns the key s is subscribed to.
func (s *Subscription[K, T]) Key() K {
	return s.key
}

// ID returns a unique identifier for s,
// suitable for correlating log lines and trace spans.
func (s *Subscription[K, T]) ID() uuid.UUID {
	return s.id
}

// Next blocks until the next value for s is available.
// A value equal to the previously delivered value is skipped.
//
// Next returns an error if ctx is canceled,
// if s has been closed, or if the register has stopped.
// A canceled ctx or a closed subscription is reported
// even when further values are already available.
func (s *Subscription[K, T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		// Cancellation and close take priority over any values still buffered,
		// so a canceled caller stops receiving immediately.
		select {
		case <-s.closed:
			return zero, ErrSubscriptionClosed
		default:
		}
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf(
				"context canceled while waiting for value: %w", context.Cause(ctx),
			)
		}

		if v, ok := s.TryNext(); ok {
			return v, nil
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf(
				"context canceled while waiting for value: %w", context.Cause(ctx),
			)

		case <-s.closed:
			return zero, ErrSubscriptionClosed

		case <-s.r.exec.Done():
			return zero, ErrStopped

		case <-s.cursor.Ready:
			// Loop back to TryNext.
		}
	}
}

// TryNext returns the next value for s if one is available without blocking.
//
// After [*Register.Sync] returns, TryNext observes every value
// emitted to the key before the Sync call.
func (s *Subscription[K, T]) TryNext() (T, bool) {
	select {
	case <-s.closed:
		var zero T
		return zero, false
	default:
	}

	for {
		v, ok := s.poll()
		if !ok {
			return v, false
		}

		if s.hasLast && s.last == v {
			continue
		}

		s.last, s.hasLast = v, true
		s.r.metrics.Delivered(context.Background())
		return v, true
	}
}

// poll returns the replay value first,
// then published stream values in order.
func (s *Subscription[K, T]) poll() (T, bool) {
	if s.hasReplay {
		v := s.replay

		var zero T
		s.replay, s.hasReplay = zero, false

		return v, true
	}

	v, next, ok := s.cursor.TryAdvance()
	s.cursor = next
	return v, ok
}

// Close ends the subscription.
// The key's subscriber count is decremented asynchronously,
// removing the key's holder if it has been released
// and this was its last subscriber.
func (s *Subscription[K, T]) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)

		if !s.r.exec.Submit(func() {
			s.r.handleUnsubscribe(s)
		}) {
			s.r.log.Debug(
				"Dropping unsubscribe on stopped register",
				"key", s.key, "sub_id", s.id,
			)
		}

		s.span.End()
	})
}
