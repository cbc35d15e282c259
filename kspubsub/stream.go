package kspubsub

// Stream is a linked list of event-driven values.
// The list has a single writer and many readers.
// Readers can each consume the list at their own pace.
//
// If readers do not actively consume the list,
// the node they observe will never be garbage collected,
// which is a memory leak.
// Nodes nobody references are collected as soon as the writer moves past them.
type Stream[T any] struct {
	Ready chan struct{}
	Next  *Stream[T]
	Val   T
}

// NewStream returns an initialized, unpublished stream node.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		Ready: make(chan struct{}),
	}
}

// Publish assigns s's value and initializes s.Next.
// Then s.Ready is closed, notifying any observers that
// s.Val can now be safely read.
//
// If Publish is called twice for the same s, Publish panics.
func (s *Stream[T]) Publish(t T) {
	s.Val = t
	s.Next = NewStream[T]()
	close(s.Ready)
}

// Published reports whether s.Val has been published.
// It does not block.
func (s *Stream[T]) Published() bool {
	select {
	case <-s.Ready:
		return true
	default:
		return false
	}
}

// TryAdvance returns s's value and the following node if s is published.
// Otherwise it returns ok=false and s itself as next,
// so the caller can keep its cursor unchanged.
func (s *Stream[T]) TryAdvance() (val T, next *Stream[T], ok bool) {
	if !s.Published() {
		return val, s, false
	}
	return s.Val, s.Next, true
}
