// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// ChannelUsage log that backs the store-based rate limiter.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// RecordUsage appends one usage row for a channel. Each send attempt is
// recorded exactly once, regardless of outcome, so window counts reflect
// attempts rather than successes.
func RecordUsage(ctx context.Context, db *gorm.DB, channelID string, success bool, at time.Time) error {
	rec := &domain.ChannelUsage{
		ChannelID: channelID,
		Success:   success,
		CreatedAt: at.UTC(),
	}
	return db.WithContext(ctx).Create(rec).Error
}

// CountUsageSince returns the number of usage rows for a channel at or after
// the given instant. Uses a raw COUNT so a missing table surfaces as an error.
func CountUsageSince(ctx context.Context, db *gorm.DB, channelID string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM channel_usage WHERE channel_id = ? AND created_at >= ?", channelID, since.UTC()).
		Scan(&total).Error
	return total, err
}

// PurgeUsageBefore deletes usage rows older than the cutoff and reports how
// many were removed. Callers pass a cutoff no newer than the longest
// configured rate-limit window.
func PurgeUsageBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ?", cutoff.UTC()).
		Delete(&domain.ChannelUsage{})
	return res.RowsAffected, res.Error
}
