// Package kspubsub contains the broadcast primitive
// behind each key of a keyed state register.
//
// The [Stream] type is a single-writer, many-reader linked list.
// The writer only ever holds the unpublished tail node,
// and publishing to it appends a fresh tail.
// Each reader holds its own cursor:
// it waits on the cursor's Ready channel (or polls with [*Stream.TryAdvance]),
// reads Val, and moves to Next.
// Readers therefore never contend with each other or with the writer,
// and a reader that joins late simply starts from the current tail.
package kspubsub
