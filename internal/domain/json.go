// Package domain defines the persistence models for channels, messages,
// routing rules, and the channel usage log. This file provides the JSON-backed
// column types those models use: SQLite stores them as TEXT, and GORM
// round-trips them through the driver.Valuer / sql.Scanner pair below.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

var errScanSource = errors.New("unsupported scan source for JSON column")

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("%w: %T", errScanSource, src)
	}
}

// JSONMap is an opaque key-value map stored as a JSON TEXT column. Channel
// configuration uses it: the orchestrator never interprets the contents, only
// the channel's send capability does.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error { return scanJSON(src, m) }

// StringSlice is an ordered list of identifiers stored as a JSON TEXT column.
type StringSlice []string

// Value implements driver.Valuer.
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// Scan implements sql.Scanner.
func (s *StringSlice) Scan(src any) error { return scanJSON(src, s) }

// Recipient identifies one target of a message, optionally pinned to a
// preferred channel.
type Recipient struct {
	UserID             string `json:"user_id"`
	PreferredChannelID string `json:"preferred_channel_id,omitempty"`
}

// RecipientList is the JSON TEXT column holding a message's recipients.
type RecipientList []Recipient

// Value implements driver.Valuer.
func (r RecipientList) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal(r)
	return string(b), err
}

// Scan implements sql.Scanner.
func (r *RecipientList) Scan(src any) error { return scanJSON(src, r) }

// TriggerCondition is a single predicate inside a routing rule. Field is a
// dotted path into the event payload; Value keeps the JSON-decoded type
// (string, float64, bool, …).
type TriggerCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// ConditionList is the JSON TEXT column holding a rule's conditions.
type ConditionList []TriggerCondition

// Value implements driver.Valuer.
func (c ConditionList) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	return string(b), err
}

// Scan implements sql.Scanner.
func (c *ConditionList) Scan(src any) error { return scanJSON(src, c) }

// RoutingAction is one side effect a matched rule triggers. Config is passed
// opaquely to the registered action executor.
type RoutingAction struct {
	Type   string  `json:"type"`
	Config JSONMap `json:"config,omitempty"`
}

// ActionList is the JSON TEXT column holding a rule's ordered actions.
type ActionList []RoutingAction

// Value implements driver.Valuer.
func (a ActionList) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	return string(b), err
}

// Scan implements sql.Scanner.
func (a *ActionList) Scan(src any) error { return scanJSON(src, a) }

// RateLimit caps sends through a channel over trailing wall-clock windows.
// A zero value in either field means that window is uncapped; the zero struct
// disables limiting entirely.
type RateLimit struct {
	MaxPerHour int `json:"max_per_hour,omitempty"`
	MaxPerDay  int `json:"max_per_day,omitempty"`
}

// Unlimited reports whether no window is configured.
func (l RateLimit) Unlimited() bool { return l.MaxPerHour <= 0 && l.MaxPerDay <= 0 }

// Value implements driver.Valuer.
func (l RateLimit) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	return string(b), err
}

// Scan implements sql.Scanner.
func (l *RateLimit) Scan(src any) error { return scanJSON(src, l) }
