package ksotel_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/keyedstate/internal/ksotel"
	"github.com/gordian-engine/keyedstate/internal/kstest"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_recordsToProvider(t *testing.T) {
	t.Parallel()

	mp, reader := kstest.NewMeterProvider(t)

	m := ksotel.NewMetrics(kstest.NewLogger(t), mp)
	_, isNop := m.(ksotel.NopMetrics)
	require.False(t, isNop)

	ctx := context.Background()
	m.HolderCreated(ctx)
	m.HolderCreated(ctx)
	m.HolderRemoved(ctx)
	m.Emitted(ctx)
	m.SubscribersChanged(ctx, 1)
	m.SubscribersChanged(ctx, 1)
	m.SubscribersChanged(ctx, -1)
	m.Delivered(ctx)

	require.Equal(t, int64(2), kstest.MetricSum(t, reader, ksotel.HoldersCreatedMetric))
	require.Equal(t, int64(1), kstest.MetricSum(t, reader, ksotel.HoldersRemovedMetric))
	require.Equal(t, int64(1), kstest.MetricSum(t, reader, ksotel.EmitsMetric))
	require.Equal(t, int64(1), kstest.MetricSum(t, reader, ksotel.SubscribersMetric))
	require.Equal(t, int64(1), kstest.MetricSum(t, reader, ksotel.DeliveriesMetric))
}

func TestNopMetrics(t *testing.T) {
	t.Parallel()

	// Nothing to observe; the methods only need to be callable.
	var m ksotel.Metrics = ksotel.NopMetrics{}
	ctx := context.Background()
	m.HolderCreated(ctx)
	m.HolderRemoved(ctx)
	m.Emitted(ctx)
	m.SubscribersChanged(ctx, 1)
	m.Delivered(ctx)
}

func TestLazyValueAttr(t *testing.T) {
	t.Parallel()

	a := ksotel.LazyValueAttr("key", 42)
	require.Equal(t, "key", string(a.Key))
	require.Equal(t, "42", a.Value.AsString())
}
