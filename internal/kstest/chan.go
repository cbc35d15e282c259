package kstest

import (
	"testing"
	"time"
)

// ScheduleTimeout is how long the "Soon" helpers wait
// before failing the test.
// It is generous to tolerate heavily loaded CI machines.
const ScheduleTimeout = 500 * time.Millisecond

// ReceiveSoon fails the test if a value cannot be received from ch
// within ScheduleTimeout. It returns the received value.
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(ScheduleTimeout):
		t.Fatalf("did not receive value within %s", ScheduleTimeout)
	}

	panic("unreachable")
}

// SendSoon fails the test if v cannot be sent to ch
// within ScheduleTimeout.
func SendSoon[T any](t testing.TB, ch chan<- T, v T) {
	t.Helper()

	select {
	case ch <- v:
		// Okay.
	case <-time.After(ScheduleTimeout):
		t.Fatalf("could not send value within %s", ScheduleTimeout)
	}
}

// IsSending fails the test if ch does not have a value ready
// (or is not closed) at the moment of the call.
func IsSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
		// Okay.
	default:
		t.Fatal("channel should have been ready to receive")
	}
}

// NotSending fails the test if ch has a value ready
// at the moment of the call.
func NotSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
		t.Fatal("channel should not have been ready to receive")
	default:
		// Okay.
	}
}
