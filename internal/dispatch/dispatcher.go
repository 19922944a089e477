// Package dispatch fans a message out to its recipients over the tenant's
// active channels. Each recipient resolves to one target channel (preferred
// first, then priority order), and a denied or failed send fails the
// recipient; falling through to the next candidate happens only behind the
// explicit fallback flags. Recipient outcomes are aggregated into delivery
// stats; the orchestrator turns those into the terminal status.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rzilem/Community-Intelligence-sub005/internal/channels"
	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/ratelimit"
)

const (
	outcomeSent        = "sent"
	outcomeFailed      = "failed"
	outcomeRateLimited = "rate_limited"
)

// ErrNoEligibleChannels is returned by Deliver when the intersection of the
// tenant's active channels and the message's channel set is empty.
var ErrNoEligibleChannels = errors.New("no eligible channels for message")

// Dispatcher delivers messages over registered channel capabilities.
type Dispatcher struct {
	Registry *channels.Registry
	Limiter  ratelimit.Limiter

	// MaxConcurrent bounds parallel recipient deliveries per message.
	MaxConcurrent int
	// SendTimeout is the deadline for a single capability send.
	SendTimeout time.Duration
	// FallbackOnLimit lets a rate-limited candidate fall through to the
	// next channel instead of failing the recipient.
	FallbackOnLimit bool
	// FallbackOnError retries a failed send on the next candidate channel.
	// Off by default: a send failure fails the recipient.
	FallbackOnError bool
}

// Deliver sends msg to every recipient over the candidate channels and
// returns the aggregated stats. Candidates must already be the tenant's
// active channels in priority order; Deliver additionally filters them to
// the channel ids the message allows. An empty intersection is a
// configuration error reported as ErrNoEligibleChannels with every
// recipient counted failed. Otherwise Deliver never returns early: every
// recipient gets a full attempt regardless of other recipients' outcomes.
func (d *Dispatcher) Deliver(ctx context.Context, msg *domain.Message, candidates []domain.Channel) (domain.DeliveryStats, error) {
	eligible := allowedChannels(candidates, msg.Channels)

	stats := domain.DeliveryStats{TotalRecipients: len(msg.Recipients)}
	if len(eligible) == 0 {
		stats.FailedCount = stats.TotalRecipients
		return stats, ErrNoEligibleChannels
	}
	results := make([]bool, len(msg.Recipients))

	g, gctx := errgroup.WithContext(ctx)
	if d.MaxConcurrent > 0 {
		g.SetLimit(d.MaxConcurrent)
	}
	for i, rcpt := range msg.Recipients {
		g.Go(func() error {
			results[i] = d.deliverRecipient(gctx, msg, rcpt, eligible)
			return nil
		})
	}
	_ = g.Wait() // workers always return nil; outcomes land in results

	for _, ok := range results {
		if ok {
			stats.SentCount++
		} else {
			stats.FailedCount++
		}
	}
	return stats, nil
}

// deliverRecipient resolves the recipient's target channel (preferred
// first, then priority order) and attempts a single send; the fallback
// flags are the only way a later candidate is tried. It reports whether
// the send succeeded.
func (d *Dispatcher) deliverRecipient(ctx context.Context, msg *domain.Message, rcpt domain.Recipient, eligible []domain.Channel) bool {
	ordered := orderForRecipient(eligible, rcpt)

	for i := range ordered {
		ch := &ordered[i]
		c, ok := d.Registry.Capability(ch.Type)
		if !ok {
			log.Warn().Str("channel_id", ch.ID).Str("channel_type", ch.Type).
				Msg("no capability registered for channel type")
			continue
		}

		allowed, err := d.Limiter.Allow(ctx, ch)
		if err != nil {
			log.Error().Err(err).Str("channel_id", ch.ID).
				Bool("allowed", allowed).Msg("rate limit backend error")
		}
		if !allowed {
			sendsTotal.WithLabelValues(ch.Type, outcomeRateLimited).Inc()
			if d.FallbackOnLimit {
				continue
			}
			return false
		}

		start := time.Now()
		sendErr := d.send(ctx, c, ch, msg, rcpt)
		sendDuration.WithLabelValues(ch.Type).Observe(time.Since(start).Seconds())

		if err := d.Limiter.Record(ctx, ch, sendErr == nil); err != nil {
			log.Error().Err(err).Str("channel_id", ch.ID).Msg("usage record failed")
		}

		if sendErr == nil {
			sendsTotal.WithLabelValues(ch.Type, outcomeSent).Inc()
			return true
		}
		sendsTotal.WithLabelValues(ch.Type, outcomeFailed).Inc()
		log.Warn().Err(sendErr).
			Str("message_id", msg.ID).
			Str("channel_id", ch.ID).
			Str("channel_type", ch.Type).
			Str("user_id", rcpt.UserID).
			Msg("channel send failed")
		if d.FallbackOnError {
			continue
		}
		return false
	}
	return false
}

// send runs one capability call under the per-send deadline, converting a
// capability panic into an error so one bad provider cannot take down the
// whole fan-out.
func (d *Dispatcher) send(ctx context.Context, c channels.Capability, ch *domain.Channel, msg *domain.Message, rcpt domain.Recipient) (err error) {
	if d.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SendTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s: send panic: %v", ch.ID, r)
		}
	}()
	return c.Send(ctx, ch, msg, rcpt)
}

// ObserveOutcome records one message reaching a terminal status.
func ObserveOutcome(status string) {
	messagesTotal.WithLabelValues(status).Inc()
}

// allowedChannels keeps only the candidates whose id appears in the
// message's channel set, preserving priority order. Submit guarantees the
// set is non-empty.
func allowedChannels(candidates []domain.Channel, allowed domain.StringSlice) []domain.Channel {
	want := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		want[id] = true
	}
	out := make([]domain.Channel, 0, len(candidates))
	for _, ch := range candidates {
		if want[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}

// orderForRecipient moves the recipient's preferred channel to the front,
// keeping the priority order for the rest.
func orderForRecipient(eligible []domain.Channel, rcpt domain.Recipient) []domain.Channel {
	if rcpt.PreferredChannelID == "" {
		return eligible
	}
	idx := -1
	for i, ch := range eligible {
		if ch.ID == rcpt.PreferredChannelID {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return eligible
	}
	out := make([]domain.Channel, 0, len(eligible))
	out = append(out, eligible[idx])
	out = append(out, eligible[:idx]...)
	out = append(out, eligible[idx+1:]...)
	return out
}
