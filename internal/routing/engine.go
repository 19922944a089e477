// Package routing evaluates inbound event payloads against a tenant's
// ordered rule set and executes the first matching rule's actions. Rules
// are a flat conjunction of field conditions; fields address the payload
// by dotted path. A malformed condition evaluates to non-match so one bad
// rule can never block the rules behind it.
package routing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

var foldCaser = cases.Fold()

// Engine matches events to rules and runs the winning rule's actions.
type Engine struct {
	Actions *ActionRegistry
}

// NewEngine builds an engine over the given action registry.
func NewEngine(actions *ActionRegistry) *Engine {
	return &Engine{Actions: actions}
}

// Result describes the outcome of routing one event. Matched is false when
// no rule fired, which is a normal outcome, not an error.
type Result struct {
	Matched  bool           `json:"matched"`
	RuleID   string         `json:"rule_id,omitempty"`
	RuleName string         `json:"rule_name,omitempty"`
	Actions  []ActionResult `json:"actions,omitempty"`
}

// Route evaluates rules in the order given (callers pass them sorted by
// ascending priority) and executes the first match's actions in listed
// order. Action failures are recorded per action and never stop the
// remaining actions.
func (e *Engine) Route(ctx context.Context, event map[string]any, rules []domain.RoutingRule) Result {
	for i := range rules {
		rule := &rules[i]
		if !matchesAll(event, rule.TriggerConditions) {
			continue
		}
		res := Result{Matched: true, RuleID: rule.ID, RuleName: rule.Name}
		for _, action := range rule.RoutingActions {
			ar := e.Actions.Execute(ctx, event, action)
			if ar.Error != "" {
				log.Warn().Str("rule_id", rule.ID).Str("action", action.Type).
					Str("error", ar.Error).Msg("routing action failed")
			}
			res.Actions = append(res.Actions, ar)
		}
		return res
	}
	return Result{}
}

// matchesAll is the flat AND over a rule's conditions. A rule with no
// conditions matches every event.
func matchesAll(event map[string]any, conds domain.ConditionList) bool {
	for _, c := range conds {
		if !matches(event, c) {
			return false
		}
	}
	return true
}

func matches(event map[string]any, c domain.TriggerCondition) bool {
	got, ok := fieldValue(event, c.Field)
	if !ok {
		return false
	}
	switch c.Operator {
	case domain.OpEquals:
		return stringify(got) == stringify(c.Value)
	case domain.OpContains:
		return strings.Contains(foldCaser.String(stringify(got)), foldCaser.String(stringify(c.Value)))
	case domain.OpGreaterThan:
		a, aok := toFloat(got)
		b, bok := toFloat(c.Value)
		return aok && bok && a > b
	case domain.OpLessThan:
		a, aok := toFloat(got)
		b, bok := toFloat(c.Value)
		return aok && bok && a < b
	default:
		return false
	}
}

// fieldValue walks a dotted path through nested JSON objects. A missing
// segment, or a non-object where the path expects one, reports not-found.
func fieldValue(event map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var cur any = event
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ValidateConditions rejects rules whose conditions could never evaluate:
// an empty field path or an unknown operator.
func ValidateConditions(conds domain.ConditionList) error {
	for i, c := range conds {
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("condition %d: empty field path", i)
		}
		switch c.Operator {
		case domain.OpEquals, domain.OpContains, domain.OpGreaterThan, domain.OpLessThan:
		default:
			return fmt.Errorf("condition %d: unknown operator %q", i, c.Operator)
		}
	}
	return nil
}
