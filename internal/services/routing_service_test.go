package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/routing"
)

func newRoutingService(t *testing.T) *RoutingService {
	t.Helper()
	db := newTestDB(t)
	return NewRoutingService(db, routing.NewEngine(routing.NewActionRegistry()))
}

func TestCreateRule_RejectsBadShape(t *testing.T) {
	svc := newRoutingService(t)
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, "t1", &domain.RoutingRule{
		Name:              "bad operator",
		TriggerConditions: domain.ConditionList{{Field: "x", Operator: "between", Value: 1}},
	})
	if !errors.Is(err, ErrInvalidCondition) {
		t.Fatalf("got %v, want ErrInvalidCondition", err)
	}

	_, err = svc.CreateRule(ctx, "t1", &domain.RoutingRule{
		Name:           "bad action",
		RoutingActions: domain.ActionList{{Type: "teleport"}},
	})
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("got %v, want ErrInvalidAction", err)
	}
}

func TestRoute_FirstMatchAcrossStoredRules(t *testing.T) {
	svc := newRoutingService(t)
	ctx := context.Background()

	mustRule := func(name string, priority int, conds domain.ConditionList, actions domain.ActionList) *domain.RoutingRule {
		r := &domain.RoutingRule{
			Name:              name,
			Priority:          priority,
			IsActive:          true,
			TriggerConditions: conds,
			RoutingActions:    actions,
		}
		created, err := svc.CreateRule(ctx, "t1", r)
		if err != nil {
			t.Fatalf("CreateRule %s: %v", name, err)
		}
		return created
	}

	mustRule("expensive", 1,
		domain.ConditionList{{Field: "amount", Operator: domain.OpGreaterThan, Value: float64(1000)}},
		domain.ActionList{{Type: domain.ActionEscalate}})
	want := mustRule("plumbing", 2,
		domain.ConditionList{{Field: "category", Operator: domain.OpContains, Value: "plumb"}},
		domain.ActionList{{Type: domain.ActionAssignToRole, Config: domain.JSONMap{"role": "maintenance"}}})

	// Inactive rules never fire, whatever their priority.
	inactive := &domain.RoutingRule{
		Name:              "disabled catch-all",
		Priority:          0,
		IsActive:          false,
		TriggerConditions: domain.ConditionList{},
		RoutingActions:    domain.ActionList{{Type: domain.ActionEscalate}},
	}
	if _, err := svc.CreateRule(ctx, "t1", inactive); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	res, err := svc.Route(ctx, "t1", map[string]any{
		"category": "Plumbing Emergency",
		"amount":   float64(400),
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if !res.Matched || res.RuleID != want.ID {
		t.Fatalf("result = %+v, want rule %s", res, want.ID)
	}
	if len(res.Actions) != 1 || res.Actions[0].Error != "" {
		t.Fatalf("actions = %+v", res.Actions)
	}
}

func TestRoute_NoMatchIsSuccess(t *testing.T) {
	svc := newRoutingService(t)
	ctx := context.Background()

	res, err := svc.Route(ctx, "t1", map[string]any{"category": "landscaping"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Matched {
		t.Fatalf("no rules configured, nothing may match: %+v", res)
	}
}

func TestRoute_TenantIsolation(t *testing.T) {
	svc := newRoutingService(t)
	ctx := context.Background()

	if _, err := svc.CreateRule(ctx, "t1", &domain.RoutingRule{
		Name:              "t1 catch-all",
		Priority:          1,
		IsActive:          true,
		TriggerConditions: domain.ConditionList{},
		RoutingActions:    domain.ActionList{{Type: domain.ActionEscalate}},
	}); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	res, err := svc.Route(ctx, "t2", map[string]any{"anything": "at all"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Matched {
		t.Fatalf("rule leaked across tenants: %+v", res)
	}
}

func TestGetRule_NotFound(t *testing.T) {
	svc := newRoutingService(t)

	if _, err := svc.GetRule(context.Background(), "t1", "missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("got %v, want ErrRuleNotFound", err)
	}
}
