// Package services – RoutingService
//
// This file implements RoutingService, which manages tenant routing rules
// and evaluates inbound events against them. Rule shape problems (empty
// field paths, unknown operators, unregistered action types) are rejected
// at creation; evaluation itself treats a malformed condition as a
// non-match so one bad rule never blocks the rules behind it.
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"
	"github.com/rzilem/Community-Intelligence-sub005/internal/routing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RoutingService manages routing rules and routes events.
type RoutingService struct {
	DB     *gorm.DB
	Engine *routing.Engine
}

// NewRoutingService constructs a RoutingService over the given engine.
func NewRoutingService(db *gorm.DB, engine *routing.Engine) *RoutingService {
	return &RoutingService{DB: db, Engine: engine}
}

// CreateRule validates and persists a routing rule for the tenant.
func (s *RoutingService) CreateRule(ctx context.Context, tenantID string, r *domain.RoutingRule) (*domain.RoutingRule, error) {
	tr := otel.Tracer("services/RoutingService")
	ctx, span := tr.Start(ctx, "CreateRule",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	if err := routing.ValidateConditions(r.TriggerConditions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	if err := s.Engine.Actions.ValidateActions(r.RoutingActions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	r.TenantID = tenantID
	if err := repo.CreateRule(ctx, s.DB, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRule fetches one rule scoped to the tenant.
func (s *RoutingService) GetRule(ctx context.Context, tenantID, id string) (*domain.RoutingRule, error) {
	r, err := repo.GetRule(ctx, s.DB, id, tenantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return r, nil
}

// ListRules returns all of the tenant's rules in evaluation order.
func (s *RoutingService) ListRules(ctx context.Context, tenantID string) ([]domain.RoutingRule, error) {
	return repo.ListRules(ctx, s.DB, tenantID)
}

// Route evaluates the event against the tenant's active rules and executes
// the first match's actions. An unrouted event is a normal outcome.
func (s *RoutingService) Route(ctx context.Context, tenantID string, event map[string]any) (routing.Result, error) {
	tr := otel.Tracer("services/RoutingService")
	ctx, span := tr.Start(ctx, "Route",
		trace.WithAttributes(attribute.String("tenant.id", tenantID)),
	)
	defer span.End()

	rules, err := repo.ListActiveRules(ctx, s.DB, tenantID)
	if err != nil {
		return routing.Result{}, err
	}
	return s.Engine.Route(ctx, event, rules), nil
}
