package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// CreateInAppNotification inserts one inbox row for a recipient.
func CreateInAppNotification(ctx context.Context, db *gorm.DB, n *domain.InAppNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(n).Error
}

// ListInbox returns a user's in-app notifications, newest first.
func ListInbox(ctx context.Context, db *gorm.DB, tenantID, userID string, limit int) ([]domain.InAppNotification, error) {
	var out []domain.InAppNotification
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
