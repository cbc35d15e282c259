package keyedstate

import (
	"errors"

	"github.com/gordian-engine/keyedstate/internal/ksexec"
)

// ErrStopped is returned from blocking register operations
// once the context passed to [NewRegister] has been canceled.
var ErrStopped = ksexec.ErrStopped

// CallbackError is returned from [*Register.Collect]
// when the callback returns an error.
// The subscription is always closed before Collect returns.
type CallbackError struct {
	Err error
}

func (e CallbackError) Error() string {
	return "collect callback failed: " + e.Err.Error()
}

func (e CallbackError) Unwrap() error {
	return e.Err
}

// ErrSubscriptionClosed is returned from [*Subscription.Next]
// after [*Subscription.Close] has been called.
var ErrSubscriptionClosed = errors.New("subscription closed")
