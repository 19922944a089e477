// Package channels maps channel types to delivery capabilities and keeps a
// short-lived cache of each tenant's active channel set. A capability knows
// how to push one message to one recipient over one transport; everything
// above it (ordering, rate limits, fan-out) lives in the dispatcher.
package channels

import (
	"context"
	"sort"
	"sync"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

// Capability delivers a message to a single recipient through one
// configured channel. Implementations must be safe for concurrent use.
type Capability interface {
	Send(ctx context.Context, ch *domain.Channel, msg *domain.Message, rcpt domain.Recipient) error
}

// CapabilityFunc adapts a function to the Capability interface.
type CapabilityFunc func(ctx context.Context, ch *domain.Channel, msg *domain.Message, rcpt domain.Recipient) error

// Send implements Capability.
func (f CapabilityFunc) Send(ctx context.Context, ch *domain.Channel, msg *domain.Message, rcpt domain.Recipient) error {
	return f(ctx, ch, msg, rcpt)
}

// Registry holds the capability for each supported channel type. A channel
// whose type has no registered capability cannot be created or dispatched.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{caps: make(map[string]Capability)}
}

// Register binds a capability to a channel type, replacing any previous one.
func (r *Registry) Register(chType string, c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[chType] = c
}

// Capability returns the capability for chType, if one is registered.
func (r *Registry) Capability(chType string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[chType]
	return c, ok
}

// Supported returns the registered channel types in sorted order.
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.caps))
	for t := range r.caps {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
