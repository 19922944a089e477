// Package services defines the business logic for messages, channels, and
// routing rules. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Message-related errors.
var (
	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current tenant.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyContent is returned when a submission has no content.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrContentTooLong is returned when the content exceeds the
	// configured rune limit.
	ErrContentTooLong = errors.New("message content is too long")

	// ErrSubjectTooLong is returned when the subject exceeds the
	// configured rune limit.
	ErrSubjectTooLong = errors.New("message subject is too long")

	// ErrNoRecipients is returned when a submission lists no recipients.
	ErrNoRecipients = errors.New("message has no recipients")

	// ErrNoChannels is returned when a submission lists no channels.
	ErrNoChannels = errors.New("message lists no channels")

	// ErrNoActiveChannels is returned when none of the message's allowed
	// channels is active for the tenant.
	ErrNoActiveChannels = errors.New("no active channels available")

	// ErrNotCancellable is returned when cancellation arrives after the
	// message already left the queued state.
	ErrNotCancellable = errors.New("message is no longer cancellable")

	// ErrShuttingDown is returned for submissions after Close has begun.
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)

// Channel-related errors.
var (
	// ErrChannelNotFound indicates that the requested channel does not exist
	// or is not accessible to the current tenant.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrUnknownChannelType is returned when a channel references a type
	// with no registered send capability.
	ErrUnknownChannelType = errors.New("unknown channel type")

	// ErrInvalidRateLimit is returned when a channel's rate limit caps are
	// negative.
	ErrInvalidRateLimit = errors.New("rate limit caps must not be negative")
)

// Routing-related errors.
var (
	// ErrRuleNotFound indicates that the requested routing rule does not
	// exist or is not accessible to the current tenant.
	ErrRuleNotFound = errors.New("routing rule not found")

	// ErrInvalidCondition is returned when a rule's trigger conditions
	// reference an empty field or an unknown operator.
	ErrInvalidCondition = errors.New("invalid trigger condition")

	// ErrInvalidAction is returned when a rule lists an action type with no
	// registered executor.
	ErrInvalidAction = errors.New("invalid routing action")
)
