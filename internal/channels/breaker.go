package channels

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// WithBreaker wraps a capability in a circuit breaker so a provider that
// keeps failing is skipped quickly instead of burning the send timeout on
// every recipient. The breaker opens after five consecutive failures and
// probes again after thirty seconds.
func WithBreaker(name string, inner Capability) Capability {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &breakerCapability{cb: cb, inner: inner}
}

type breakerCapability struct {
	cb    *gobreaker.CircuitBreaker
	inner Capability
}

func (b *breakerCapability) Send(ctx context.Context, ch *domain.Channel, msg *domain.Message, rcpt domain.Recipient) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.Send(ctx, ch, msg, rcpt)
	})
	return err
}
