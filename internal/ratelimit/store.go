package ratelimit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"
)

// StoreLimiter counts sends out of the channel_usage table. It is the
// default backend: no extra infrastructure, and the usage rows double
// as a delivery audit trail.
type StoreLimiter struct {
	DB       *gorm.DB
	FailOpen bool

	// now is swappable for tests.
	now func() time.Time
}

// NewStoreLimiter builds a usage-table backed limiter.
func NewStoreLimiter(db *gorm.DB, failOpen bool) *StoreLimiter {
	return &StoreLimiter{DB: db, FailOpen: failOpen, now: time.Now}
}

// Allow checks the trailing hour and day windows against the channel's
// configured maxima. A store error resolves to the configured
// fail-open/fail-closed policy and is returned alongside the decision.
func (l *StoreLimiter) Allow(ctx context.Context, ch *domain.Channel) (bool, error) {
	if ch.RateLimit.Unlimited() {
		return true, nil
	}
	now := l.now().UTC()

	if ch.RateLimit.MaxPerHour > 0 {
		n, err := repo.CountUsageSince(ctx, l.DB, ch.ID, now.Add(-time.Hour))
		if err != nil {
			return l.FailOpen, err
		}
		if n >= int64(ch.RateLimit.MaxPerHour) {
			return false, nil
		}
	}
	if ch.RateLimit.MaxPerDay > 0 {
		n, err := repo.CountUsageSince(ctx, l.DB, ch.ID, now.Add(-24*time.Hour))
		if err != nil {
			return l.FailOpen, err
		}
		if n >= int64(ch.RateLimit.MaxPerDay) {
			return false, nil
		}
	}
	return true, nil
}

// Record appends one usage row for the channel.
func (l *StoreLimiter) Record(ctx context.Context, ch *domain.Channel, success bool) error {
	return repo.RecordUsage(ctx, l.DB, ch.ID, success, l.now().UTC())
}
