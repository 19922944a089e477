// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the RoutingRule
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// CreateRule inserts a new RoutingRule row with a UUID primary key.
func CreateRule(ctx context.Context, db *gorm.DB, r *domain.RoutingRule) error {
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(r).Error
}

// GetRule fetches a rule by ID scoped to its tenant, or ErrNotFound.
func GetRule(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.RoutingRule, error) {
	var r domain.RoutingRule
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListActiveRules returns a tenant's active rules in evaluation order:
// ascending priority, ID as the tie-break for determinism.
func ListActiveRules(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.RoutingRule, error) {
	var out []domain.RoutingRule
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListRules returns all of a tenant's rules, active or not, in the same
// deterministic order.
func ListRules(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.RoutingRule, error) {
	var out []domain.RoutingRule
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("priority ASC, id ASC").
		Find(&out).Error
	return out, err
}
