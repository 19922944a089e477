// Package services – ChannelService
//
// This file implements ChannelService, which manages a tenant's configured
// delivery channels. A channel type without a registered send capability is
// rejected at creation time, so dispatch never discovers a configuration
// error mid-send. Every write invalidates the tenant's cached active set.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/channels"
	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChannelService provides channel configuration operations.
type ChannelService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Registry resolves channel types to send capabilities.
	Registry *channels.Registry
	// Cache is the active-channel cache invalidated on writes.
	Cache *channels.ActiveCache
}

// NewChannelService constructs a ChannelService.
func NewChannelService(db *gorm.DB, reg *channels.Registry, cache *channels.ActiveCache) *ChannelService {
	return &ChannelService{DB: db, Registry: reg, Cache: cache}
}

// Create validates and persists a new channel for the tenant.
func (s *ChannelService) Create(ctx context.Context, tenantID string, ch *domain.Channel) (*domain.Channel, error) {
	tr := otel.Tracer("services/ChannelService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("channel.type", ch.Type),
		),
	)
	defer span.End()

	if err := s.validate(ch); err != nil {
		return nil, err
	}
	ch.TenantID = tenantID
	if err := repo.CreateChannel(ctx, s.DB, ch); err != nil {
		return nil, err
	}
	s.Cache.Invalidate(tenantID)
	return ch, nil
}

// Get fetches one channel scoped to the tenant.
func (s *ChannelService) Get(ctx context.Context, tenantID, id string) (*domain.Channel, error) {
	ch, err := repo.GetChannel(ctx, s.DB, id, tenantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return ch, nil
}

// List returns all of the tenant's channels, active or not.
func (s *ChannelService) List(ctx context.Context, tenantID string) ([]domain.Channel, error) {
	return repo.ListChannels(ctx, s.DB, tenantID)
}

// Update validates and persists changes to an existing channel.
func (s *ChannelService) Update(ctx context.Context, tenantID, id string, ch *domain.Channel) (*domain.Channel, error) {
	tr := otel.Tracer("services/ChannelService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("channel.id", id),
		),
	)
	defer span.End()

	if err := s.validate(ch); err != nil {
		return nil, err
	}
	if err := repo.UpdateChannel(ctx, s.DB, id, tenantID, ch); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	s.Cache.Invalidate(tenantID)
	return repo.GetChannel(ctx, s.DB, id, tenantID)
}

// Deactivate removes the channel from routing consideration while keeping
// its configuration and usage history.
func (s *ChannelService) Deactivate(ctx context.Context, tenantID, id string) error {
	tr := otel.Tracer("services/ChannelService")
	ctx, span := tr.Start(ctx, "Deactivate",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("channel.id", id),
		),
	)
	defer span.End()

	ch, err := repo.GetChannel(ctx, s.DB, id, tenantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChannelNotFound
		}
		return err
	}
	ch.IsActive = false
	if err := repo.UpdateChannel(ctx, s.DB, id, tenantID, ch); err != nil {
		return err
	}
	s.Cache.Invalidate(tenantID)
	return nil
}

func (s *ChannelService) validate(ch *domain.Channel) error {
	if _, ok := s.Registry.Capability(ch.Type); !ok {
		return ErrUnknownChannelType
	}
	if ch.RateLimit.MaxPerHour < 0 || ch.RateLimit.MaxPerDay < 0 {
		return ErrInvalidRateLimit
	}
	return nil
}
