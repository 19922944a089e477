// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the guarded status transitions that back the orchestrator
// state machine.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// ErrStatusConflict is returned when a guarded status transition matched no
// row because the message was no longer in the expected state.
var ErrStatusConflict = errors.New("message status conflict")

// CreateMessage inserts a new Message row in the given status with
// TotalRecipients fixed at creation.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	m.ID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()
	m.Stats = domain.DeliveryStats{TotalRecipients: len(m.Recipients)}
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID scoped to its tenant, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages returns the total number of messages for a tenant.
func CountMessages(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("tenant_id = ?", tenantID).
		Count(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice of a tenant's messages ordered
// by creation time descending (most recent first).
func ListMessagesPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TransitionMessage moves a message from one status to another with a guarded
// UPDATE, so concurrent writers cannot double-apply a transition. When no row
// matches it distinguishes a missing message (ErrNotFound) from one that has
// already moved on (ErrStatusConflict).
func TransitionMessage(ctx context.Context, db *gorm.DB, id, from, to string) error {
	if !domain.ValidTransition(from, to) {
		return ErrStatusConflict
	}
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&domain.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// FinalizeMessage writes the terminal status, delivery stats, and sent
// timestamp in a single guarded UPDATE from "sending". The stats become
// visible atomically with the terminal state; they are never observable
// mid-dispatch. A nil sentAt stores NULL, which failed messages use.
func FinalizeMessage(ctx context.Context, db *gorm.DB, id, status string, stats domain.DeliveryStats, sentAt *time.Time) error {
	if !domain.ValidTransition(domain.StatusSending, status) {
		return ErrStatusConflict
	}
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]any{
			"status":                status,
			"stats_sent_count":      stats.SentCount,
			"stats_delivered_count": stats.DeliveredCount,
			"stats_opened_count":    stats.OpenedCount,
			"stats_failed_count":    stats.FailedCount,
			"sent_at":               sentAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusConflict
	}
	return nil
}

// MessagesStats returns aggregate metadata for a tenant's messages: the total
// number of rows and the maximum UpdatedAt among them. Used for conditional
// responses (ETag) in the HTTP layer. When the tenant has no messages the
// returned count is 0 and maxUpdatedAt is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, tenantID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("tenant_id = ?", tenantID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
