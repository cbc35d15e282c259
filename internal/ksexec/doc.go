// Package ksexec contains the serialized executor
// that every state mutation of a keyed state register is funneled through.
//
// An [Executor] runs submitted functions one at a time,
// in submission order, on a single goroutine.
// Code running inside a submitted function may therefore
// read and write executor-owned state without any further locking.
package ksexec
