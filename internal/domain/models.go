// Package domain defines the persistence models for delivery channels,
// messages, routing rules, and the channel usage log. These types are mapped
// with GORM and form the core data layer of the communication subsystem.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Channel type identifiers. The set is open: new types are added by
// registering a send capability, not by editing this list.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
	ChannelSlack = "slack"
	ChannelTeams = "teams"
)

// Message lifecycle states. Transitions are one-directional; see
// ValidTransition.
const (
	StatusDraft     = "draft"
	StatusQueued    = "queued"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// transitions encodes the message state machine:
// draft → queued → sending → {sent, failed}, queued → cancelled.
var transitions = map[string][]string{
	StatusDraft:   {StatusQueued},
	StatusQueued:  {StatusSending, StatusCancelled},
	StatusSending: {StatusSent, StatusFailed},
}

// ValidTransition reports whether a message may move from one status to
// another. Terminal states have no successors.
func ValidTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether a status admits no further transitions.
func TerminalStatus(s string) bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Routing condition operators.
const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// Routing action types.
const (
	ActionAssignToUser = "assign_to_user"
	ActionAssignToRole = "assign_to_role"
	ActionEscalate     = "escalate"
	ActionAutoRespond  = "auto_respond"
	ActionCreateTask   = "create_task"
)

// Channel represents a configured delivery mechanism for a tenant. Lower
// Priority is tried first; ties break by ID so ordering stays total and
// stable. Deactivation removes the channel from routing consideration while
// keeping its history.
type Channel struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	TenantID      string         `json:"tenant_id"      gorm:"type:varchar(64);not null;index:idx_tenant_channels"`
	Type          string         `json:"type"           gorm:"type:varchar(32);not null"`
	Priority      int            `json:"priority"       gorm:"not null;default:100"`
	IsActive      bool           `json:"is_active"      gorm:"not null;default:true"`
	Configuration JSONMap        `json:"configuration"  gorm:"type:text"`
	RateLimit     RateLimit      `json:"rate_limit"     gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for Channel.
func (Channel) TableName() string { return "channels" }

// DeliveryStats aggregates per-message recipient outcomes. TotalRecipients is
// fixed at creation; the counters are written exactly once, together with the
// terminal status, so readers never observe a torn update.
type DeliveryStats struct {
	TotalRecipients int `json:"total_recipients" gorm:"not null;default:0"`
	SentCount       int `json:"sent_count"       gorm:"not null;default:0"`
	DeliveredCount  int `json:"delivered_count"  gorm:"not null;default:0"`
	OpenedCount     int `json:"opened_count"     gorm:"not null;default:0"`
	FailedCount     int `json:"failed_count"     gorm:"not null;default:0"`
}

// Message represents one logical communication fanned out across channels.
// It is owned by the orchestrator for its lifetime; callers only read it
// after creation, except for cancellation while still queued.
type Message struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	TenantID   string         `json:"tenant_id"   gorm:"type:varchar(64);not null;index:idx_tenant_messages,priority:1"`
	Subject    string         `json:"subject"     gorm:"type:varchar(255);not null"`
	Content    string         `json:"content"     gorm:"type:text;not null"`
	Channels   StringSlice    `json:"channels"    gorm:"type:text"`
	Recipients RecipientList  `json:"recipients"  gorm:"type:text"`
	Status     string         `json:"status"      gorm:"type:varchar(16);not null;default:'queued';check:status IN ('draft','queued','sending','sent','failed','cancelled')"`
	Stats      DeliveryStats  `json:"delivery_stats" gorm:"embedded;embeddedPrefix:stats_"`
	CreatedAt  time.Time      `json:"created_at"  gorm:"index:idx_tenant_messages,priority:2"`
	UpdatedAt  time.Time      `json:"updated_at"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// RoutingRule is a tenant-scoped classification rule. Rules evaluate in
// ascending Priority order and at most one fires per event.
type RoutingRule struct {
	ID                string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	TenantID          string         `json:"tenant_id"          gorm:"type:varchar(64);not null;index:idx_tenant_rules"`
	Name              string         `json:"name"               gorm:"type:varchar(255);not null"`
	Priority          int            `json:"priority"           gorm:"not null;default:100"`
	IsActive          bool           `json:"is_active"          gorm:"not null;default:true"`
	TriggerConditions ConditionList  `json:"trigger_conditions" gorm:"type:text"`
	RoutingActions    ActionList     `json:"routing_actions"    gorm:"type:text"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-"                  gorm:"index"`
}

// TableName returns the database table name for RoutingRule.
func (RoutingRule) TableName() string { return "routing_rules" }

// ChannelUsage is one append-only rate-limiter log entry. Rows are only read
// in aggregate (counts over a trailing window) and are purged once older than
// the longest configured window, so the primary key is a plain rowid.
type ChannelUsage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	ChannelID string    `gorm:"type:char(36);not null;index:idx_channel_usage,priority:1"`
	Success   bool      `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_channel_usage,priority:2"`
}

// TableName returns the database table name for ChannelUsage.
func (ChannelUsage) TableName() string { return "channel_usage" }

// InAppNotification is one delivered in-app message for a user's inbox.
// Rows are written by the in_app delivery capability; external channels
// leave no per-recipient rows.
type InAppNotification struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string     `json:"tenant_id"  gorm:"type:varchar(64);not null;index:idx_inbox,priority:1"`
	UserID    string     `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_inbox,priority:2"`
	MessageID string     `json:"message_id" gorm:"type:char(36);not null"`
	Subject   string     `json:"subject"    gorm:"type:varchar(255);not null"`
	Content   string     `json:"content"    gorm:"type:text;not null"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for InAppNotification.
func (InAppNotification) TableName() string { return "in_app_notifications" }

// Idempotency records a previously accepted submission keyed by
// (tenant_id, key). It lets POST /messages retries return the original
// message id without enqueuing a duplicate.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	TenantID  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_tenant_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_tenant_key,priority:2"`
	MessageID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
