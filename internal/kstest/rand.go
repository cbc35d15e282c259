package kstest

import (
	"crypto/sha256"
	"math/rand/v2"
	"testing"
)

// RandForTest returns a pseudorandom source
// derived from a seed based on the test name,
// so that a failing randomized test is reproducible.
func RandForTest(t testing.TB) *rand.Rand {
	// Sha256 happens to be the right size for the chacha8 seed,
	// and this fits well anyway since that means
	// we are not limited by the length of any particular test name.
	seed := sha256.Sum256([]byte(t.Name()))
	return rand.New(rand.NewChaCha8(seed))
}
