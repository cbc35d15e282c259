package ksotel

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type MeterProvider = metric.MeterProvider

// MeterName is the instrumentation scope name for register metrics.
const MeterName = "github.com/gordian-engine/keyedstate"

// Metric names.
const (
	HoldersCreatedMetric = "keyedstate.holders.created"
	HoldersRemovedMetric = "keyedstate.holders.removed"
	EmitsMetric          = "keyedstate.emits"
	SubscribersMetric    = "keyedstate.subscribers"
	DeliveriesMetric     = "keyedstate.deliveries"
)

// Metrics records register activity.
// Use [NewMetrics] for OTel metrics or [NopMetrics] when disabled.
//
// Implementations must be safe for concurrent use:
// deliveries are recorded from subscriber goroutines,
// everything else from the executor goroutine.
type Metrics interface {
	HolderCreated(ctx context.Context)
	HolderRemoved(ctx context.Context)
	Emitted(ctx context.Context)

	// SubscribersChanged adds delta (+1 or -1) to the live subscriber gauge.
	SubscribersChanged(ctx context.Context, delta int64)

	Delivered(ctx context.Context)
}

type otelMetrics struct {
	holdersCreated metric.Int64Counter
	holdersRemoved metric.Int64Counter
	emits          metric.Int64Counter
	subscribers    metric.Int64UpDownCounter
	deliveries     metric.Int64Counter
}

// NewMetrics returns a Metrics backed by the given meter provider.
// If mp is nil, the otel global meter provider is used.
//
// If any instrument fails to initialize,
// a warning is logged and a no-op recorder is returned.
func NewMetrics(log *slog.Logger, mp MeterProvider) Metrics {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	m, err := newOtelMetrics(mp.Meter(MeterName))
	if err != nil {
		log.Warn(
			"Metrics initialization failed, using no-op recorder",
			"err", err,
		)
		return NopMetrics{}
	}
	return m
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	holdersCreated, err := meter.Int64Counter(HoldersCreatedMetric,
		metric.WithDescription("Number of state holders created"),
	)
	if err != nil {
		return nil, err
	}

	holdersRemoved, err := meter.Int64Counter(HoldersRemovedMetric,
		metric.WithDescription("Number of state holders removed"),
	)
	if err != nil {
		return nil, err
	}

	emits, err := meter.Int64Counter(EmitsMetric,
		metric.WithDescription("Number of values published to state holders"),
	)
	if err != nil {
		return nil, err
	}

	subscribers, err := meter.Int64UpDownCounter(SubscribersMetric,
		metric.WithDescription("Number of active subscriptions across all keys"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter(DeliveriesMetric,
		metric.WithDescription("Number of values delivered to subscribers after duplicate suppression"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		holdersCreated: holdersCreated,
		holdersRemoved: holdersRemoved,
		emits:          emits,
		subscribers:    subscribers,
		deliveries:     deliveries,
	}, nil
}

func (m *otelMetrics) HolderCreated(ctx context.Context) {
	m.holdersCreated.Add(ctx, 1)
}

func (m *otelMetrics) HolderRemoved(ctx context.Context) {
	m.holdersRemoved.Add(ctx, 1)
}

func (m *otelMetrics) Emitted(ctx context.Context) {
	m.emits.Add(ctx, 1)
}

func (m *otelMetrics) SubscribersChanged(ctx context.Context, delta int64) {
	m.subscribers.Add(ctx, delta)
}

func (m *otelMetrics) Delivered(ctx context.Context) {
	m.deliveries.Add(ctx, 1)
}

// NopMetrics is a Metrics that does nothing.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) HolderCreated(context.Context)             {}
func (NopMetrics) HolderRemoved(context.Context)             {}
func (NopMetrics) Emitted(context.Context)                   {}
func (NopMetrics) SubscribersChanged(context.Context, int64) {}
func (NopMetrics) Delivered(context.Context)                 {}
