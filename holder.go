package keyedstate

import "github.com/gordian-engine/keyedstate/kspubsub"

// holder is the state for a single key.
// It is only ever accessed on the register's executor goroutine,
// except for published stream nodes which are immutable.
type holder[T comparable] struct {
	// Replay slot, capacity 1.
	latest    T
	hasLatest bool

	// Unpublished tail of the broadcast list.
	// New subscribers start reading here.
	tail *kspubsub.Stream[T]

	subscribers int

	// Whether the holder may be removed once subscribers reaches zero.
	releasable bool
}

func newHolder[T comparable](releasable bool) *holder[T] {
	return &holder[T]{
		tail:       kspubsub.NewStream[T](),
		releasable: releasable,
	}
}

// publish stores v in the replay slot
// and makes it visible to every current subscriber.
func (h *holder[T]) publish(v T) {
	h.latest = v
	h.hasLatest = true

	h.tail.Publish(v)
	h.tail = h.tail.Next
}

func (h *holder[T]) removable() bool {
	return h.releasable && h.subscribers == 0
}

// HolderStat is a point-in-time copy of a key's holder state,
// returned from [*Register.Stat].
type HolderStat struct {
	Subscribers int
	Releasable  bool
	HasValue    bool
}

func (h *holder[T]) stat() HolderStat {
	return HolderStat{
		Subscribers: h.subscribers,
		Releasable:  h.releasable,
		HasValue:    h.hasLatest,
	}
}
