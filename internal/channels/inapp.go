package channels

import (
	"context"

	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"
)

// InAppCapability delivers by writing a row into the recipient's inbox
// table. It never leaves the process, so it is also the cheapest fallback
// channel a tenant can configure.
type InAppCapability struct {
	DB *gorm.DB
}

// NewInAppCapability returns an inbox-backed capability.
func NewInAppCapability(db *gorm.DB) *InAppCapability {
	return &InAppCapability{DB: db}
}

// Send implements Capability.
func (c *InAppCapability) Send(ctx context.Context, ch *domain.Channel, msg *domain.Message, rcpt domain.Recipient) error {
	return repo.CreateInAppNotification(ctx, c.DB, &domain.InAppNotification{
		TenantID:  ch.TenantID,
		UserID:    rcpt.UserID,
		MessageID: msg.ID,
		Subject:   msg.Subject,
		Content:   msg.Content,
	})
}
