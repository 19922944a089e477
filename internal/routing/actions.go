package routing

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// ActionResult is the per-action outcome included in a routing response.
type ActionResult struct {
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ActionFunc applies one routing action to an event. The returned detail
// is surfaced to the caller; an error marks the action failed without
// affecting the actions after it.
type ActionFunc func(ctx context.Context, event map[string]any, cfg domain.JSONMap) (string, error)

// ActionRegistry maps action types to executors. New action types are
// added by registration, never by touching the engine.
type ActionRegistry struct {
	mu    sync.RWMutex
	execs map[string]ActionFunc
}

// NewActionRegistry returns a registry preloaded with the built-in
// executors for the standard action types.
func NewActionRegistry() *ActionRegistry {
	r := &ActionRegistry{execs: make(map[string]ActionFunc)}
	r.Register(domain.ActionAssignToUser, assignToUser)
	r.Register(domain.ActionAssignToRole, assignToRole)
	r.Register(domain.ActionEscalate, escalate)
	r.Register(domain.ActionAutoRespond, autoRespond)
	r.Register(domain.ActionCreateTask, createTask)
	return r
}

// Register binds an executor to an action type, replacing any previous one.
func (r *ActionRegistry) Register(actionType string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs[actionType] = fn
}

// Supported reports whether an executor exists for the action type.
func (r *ActionRegistry) Supported(actionType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.execs[actionType]
	return ok
}

// Execute runs one action, converting a missing executor or an executor
// panic into a failed ActionResult.
func (r *ActionRegistry) Execute(ctx context.Context, event map[string]any, action domain.RoutingAction) (res ActionResult) {
	res.Type = action.Type

	r.mu.RLock()
	fn, ok := r.execs[action.Type]
	r.mu.RUnlock()
	if !ok {
		res.Error = fmt.Sprintf("no executor for action type %q", action.Type)
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Error = fmt.Sprintf("action panic: %v", p)
		}
	}()
	detail, err := fn(ctx, event, action.Config)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Detail = detail
	return res
}

// ValidateActions rejects action lists referencing unregistered types.
// Surfacing this at rule creation keeps routing free of config errors.
func (r *ActionRegistry) ValidateActions(actions domain.ActionList) error {
	for i, a := range actions {
		if !r.Supported(a.Type) {
			return fmt.Errorf("action %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}

func requireString(cfg domain.JSONMap, key string) (string, error) {
	v, _ := cfg[key].(string)
	if v == "" {
		return "", fmt.Errorf("config missing %q", key)
	}
	return v, nil
}

func assignToUser(_ context.Context, _ map[string]any, cfg domain.JSONMap) (string, error) {
	userID, err := requireString(cfg, "user_id")
	if err != nil {
		return "", err
	}
	return "assigned to user " + userID, nil
}

func assignToRole(_ context.Context, _ map[string]any, cfg domain.JSONMap) (string, error) {
	role, err := requireString(cfg, "role")
	if err != nil {
		return "", err
	}
	return "assigned to role " + role, nil
}

func escalate(_ context.Context, event map[string]any, cfg domain.JSONMap) (string, error) {
	level, _ := cfg["level"].(string)
	if level == "" {
		level = "default"
	}
	log.Warn().Interface("event", event).Str("level", level).Msg("event escalated")
	return "escalated at level " + level, nil
}

func autoRespond(_ context.Context, _ map[string]any, cfg domain.JSONMap) (string, error) {
	tmpl, err := requireString(cfg, "template")
	if err != nil {
		return "", err
	}
	return "auto-response queued with template " + tmpl, nil
}

func createTask(_ context.Context, _ map[string]any, cfg domain.JSONMap) (string, error) {
	title, err := requireString(cfg, "title")
	if err != nil {
		return "", err
	}
	return "task created: " + title, nil
}
