// internal/channel/inapp.go
package channel

import (
	"context"
	"time"

	"notification-service/internal/models"
)

// Sink is the seam for a real in-app delivery mechanism (push, websocket,
// realtime feed). The default sink only simulates delivery latency.
type Sink interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

// InAppAdapter hands IN_APP notifications to a Sink. It has no external
// transport and no unconfigured state.
type InAppAdapter struct {
	sink Sink
}

func NewInAppAdapter(sink Sink) *InAppAdapter {
	if sink == nil {
		sink = &simulatedSink{latency: 100 * time.Millisecond}
	}
	return &InAppAdapter{sink: sink}
}

// NewInAppAdapterWithLatency builds the default simulated sink with an
// explicit latency.
func NewInAppAdapterWithLatency(latency time.Duration) *InAppAdapter {
	return &InAppAdapter{sink: &simulatedSink{latency: latency}}
}

func (a *InAppAdapter) Send(ctx context.Context, n *models.Notification) error {
	return a.sink.Deliver(ctx, n)
}

// simulatedSink acknowledges after a fixed delay, honoring cancellation.
type simulatedSink struct {
	latency time.Duration
}

func (s *simulatedSink) Deliver(ctx context.Context, _ *models.Notification) error {
	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
