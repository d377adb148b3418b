package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type fixedSource struct{}

func (fixedSource) Stats() (int, int) { return 2, 3 }

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	require.NotPanics(t, func() {
		m.Delivered(ctx, "newMessage", 2)
		m.Dropped(ctx, "newMessage", 1)
		m.Transition(ctx, "online")
		m.ObserveFanout(ctx, "newMessage", time.Millisecond)
	})
}

func TestNewMetrics_WithNoopMeter(t *testing.T) {
	req := require.New(t)
	meter := noop.NewMeterProvider().Meter("test")

	m, err := NewMetrics(meter)
	req.NoError(err)
	req.NotNil(m)
	req.NoError(RegisterGauges(meter, fixedSource{}))

	req.NotPanics(func() { m.Delivered(context.Background(), "userJoined", 1) })
}
