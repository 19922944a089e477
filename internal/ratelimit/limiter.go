// Package ratelimit enforces per-channel send quotas over trailing
// one-hour and 24-hour windows. A channel whose RateLimit is zero in
// both fields is unlimited and never consults the backing store.
package ratelimit

import (
	"context"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// Limiter decides whether a channel may accept one more send right now
// and records completed attempts so future decisions see them.
type Limiter interface {
	// Allow reports whether ch is under both of its windows. The error,
	// when non-nil, is the backend failure behind a fail-open or
	// fail-closed decision; the boolean is authoritative either way.
	Allow(ctx context.Context, ch *domain.Channel) (bool, error)

	// Record counts one delivery attempt against ch.
	Record(ctx context.Context, ch *domain.Channel, success bool) error
}
