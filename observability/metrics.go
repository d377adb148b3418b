package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "my-chat-backend"

// OnlineSource reports live registry sizes for the gauges.
type OnlineSource interface {
	Stats() (users int, connections int)
}

// Metrics groups the instruments of the real-time path.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	delivered   metric.Int64Counter
	dropped     metric.Int64Counter
	transitions metric.Int64Counter
	fanout      metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	delivered, err := meter.Int64Counter("realtime_events_delivered_total",
		metric.WithDescription("Events written to a connection queue"))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("realtime_events_dropped_total",
		metric.WithDescription("Events a connection refused or failed to take"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter("presence_transitions_total",
		metric.WithDescription("Online and offline transitions"))
	if err != nil {
		return nil, err
	}
	fanout, err := meter.Float64Histogram("realtime_fanout_duration_seconds",
		metric.WithDescription("Time spent fanning one event out"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{delivered: delivered, dropped: dropped, transitions: transitions, fanout: fanout}, nil
}

// RegisterGauges exposes online users and connections as observable gauges.
func RegisterGauges(meter metric.Meter, source OnlineSource) error {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	users, err := meter.Int64ObservableGauge("presence_online_users",
		metric.WithDescription("Users with at least one live connection"))
	if err != nil {
		return err
	}
	conns, err := meter.Int64ObservableGauge("presence_connections",
		metric.WithDescription("Live connections"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		u, c := source.Stats()
		o.ObserveInt64(users, int64(u))
		o.ObserveInt64(conns, int64(c))
		return nil
	}, users, conns)
	return err
}

func (m *Metrics) Delivered(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.delivered.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) Dropped(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) Transition(ctx context.Context, state string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

func (m *Metrics) ObserveFanout(ctx context.Context, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.fanout.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}
