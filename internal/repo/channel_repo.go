// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Channel
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a channel is not found, functions return ErrNotFound.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// CreateChannel inserts a new Channel row. The channel ID is a randomly
// generated UUID (string), and CreatedAt is set to UTC.
func CreateChannel(ctx context.Context, db *gorm.DB, ch *domain.Channel) error {
	ch.ID = uuid.NewString()
	ch.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(ch).Error
}

// GetChannel fetches a single channel by its ID and tenant. If the record
// does not exist, it returns ErrNotFound.
func GetChannel(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Channel, error) {
	var ch domain.Channel
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&ch).Error
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListActiveChannels returns a tenant's active channels ordered by ascending
// priority with ID as the tie-break, so the ordering is total and stable.
func ListActiveChannels(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Channel, error) {
	var out []domain.Channel
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListChannels returns all of a tenant's channels, active or not, in the same
// stable (priority, id) order.
func ListChannels(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.Channel, error) {
	var out []domain.Channel
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority ASC, id ASC").
		Find(&out).Error
	return out, err
}

// UpdateChannel overwrites the mutable fields of a channel (type, priority,
// active flag, configuration, rate limit), enforcing tenant ownership.
// Select is explicit so a false IsActive or zero Priority still persists.
// Returns ErrNotFound when no row matched.
func UpdateChannel(ctx context.Context, db *gorm.DB, id, tenantID string, ch *domain.Channel) error {
	res := db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Select("type", "priority", "is_active", "configuration", "rate_limit").
		Updates(domain.Channel{
			Type:          ch.Type,
			Priority:      ch.Priority,
			IsActive:      ch.IsActive,
			Configuration: ch.Configuration,
			RateLimit:     ch.RateLimit,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
