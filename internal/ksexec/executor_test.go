package ksexec_test

import (
	"context"
	"sync"
	"testing"

	"github.com/gordian-engine/keyedstate/internal/ksexec"
	"github.com/gordian-engine/keyedstate/internal/kstest"
	"github.com/stretchr/testify/require"
)

func TestExecutor_runsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := ksexec.New(ctx, kstest.NewLogger(t))
	t.Cleanup(e.Wait)

	// Only accessed from the executor goroutine.
	var got []int
	for i := range 100 {
		require.True(t, e.Submit(func() {
			got = append(got, i)
		}))
	}

	var out []int
	require.NoError(t, e.Do(ctx, func() {
		out = append(out, got...)
	}))

	require.Len(t, out, 100)
	for i, v := range out {
		require.Equal(t, i, v)
	}
}

func TestExecutor_noConcurrentExecution(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := ksexec.New(ctx, kstest.NewLogger(t))
	t.Cleanup(e.Wait)

	var (
		wg      sync.WaitGroup
		running int
		maxSeen int
		total   int
	)

	const submitters = 8
	const perSubmitter = 200
	for range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perSubmitter {
				e.Submit(func() {
					// Deliberately unsynchronized;
					// the race detector flags this if two functions overlap.
					running++
					if running > maxSeen {
						maxSeen = running
					}
					total++
					running--
				})
			}
		}()
	}
	wg.Wait()

	var gotTotal, gotMax int
	require.NoError(t, e.Do(ctx, func() {
		gotTotal = total
		gotMax = maxSeen
	}))

	require.Equal(t, submitters*perSubmitter, gotTotal)
	require.Equal(t, 1, gotMax)
}

func TestExecutor_Do_contextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := ksexec.New(ctx, kstest.NewLogger(t))
	t.Cleanup(e.Wait)

	// Block the executor so the Do call cannot complete.
	unblock := make(chan struct{})
	require.True(t, e.Submit(func() { <-unblock }))

	doCtx, doCancel := context.WithCancel(ctx)
	doCancel()

	ran := make(chan struct{})
	err := e.Do(doCtx, func() { close(ran) })
	require.ErrorIs(t, err, context.Canceled)

	// The abandoned function still runs once the executor is free.
	close(unblock)
	kstest.ReceiveSoon(t, ran)
}

func TestExecutor_stopped(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	e := ksexec.New(ctx, kstest.NewLogger(t))
	t.Cleanup(e.Wait)
	kstest.NotSending(t, e.Done())

	cancel()
	e.Wait()
	kstest.IsSending(t, e.Done())

	require.False(t, e.Submit(func() {
		t.Error("function should not run after stop")
	}))

	require.ErrorIs(t, e.Do(context.Background(), func() {}), ksexec.ErrStopped)
}
