// Package keyedstate contains a keyed, reference-counted, replaying
// publish-subscribe register.
//
// Producers call [*Register.Emit] to set the latest value for a key.
// Consumers call [*Register.Collect] (or the lower level [*Register.Subscribe])
// to observe values for a key, and always receive the most recent value
// immediately upon subscribing.
//
// Every key is backed by a state holder that is created on demand
// and removed once it has been released with [*Register.Release]
// and no subscribers remain.
// A key that has only ever been collected, never emitted,
// is removed as soon as its last subscriber leaves.
//
// All state mutation runs on a single executor goroutine,
// so operations on the same key observe one total order.
// Emit and Release do not wait for their effect;
// use [*Register.Sync] when a caller must observe that ordering.
package keyedstate
