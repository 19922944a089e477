// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the message lifecycle. It validates submissions, persists the message
// in the queued state, and hands dispatch off to a supervised background
// goroutine so the submitter never waits on channel I/O. The terminal status
// and the delivery stats are written together in one guarded update, so a
// reader polling status never observes counters from a half-finished
// dispatch.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include tenant/message identifiers and pagination parameters where
// applicable.

package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rzilem/Community-Intelligence-sub005/internal/channels"
	"github.com/rzilem/Community-Intelligence-sub005/internal/dispatch"
	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SubmitInput is the validated shape of one message submission.
type SubmitInput struct {
	Subject    string
	Content    string
	Channels   []string // channel ids the message may use; at least one required
	Recipients []domain.Recipient
}

// MessageService coordinates message persistence and asynchronous dispatch.
type MessageService struct {
	DB         *gorm.DB
	Cache      *channels.ActiveCache
	Dispatcher *dispatch.Dispatcher

	// Optional guards
	MaxSubjectRunes int
	MaxContentRunes int

	mu      sync.Mutex
	wg      sync.WaitGroup
	closing bool
}

// NewMessageService constructs a MessageService with sane input guards.
func NewMessageService(db *gorm.DB, cache *channels.ActiveCache, d *dispatch.Dispatcher) *MessageService {
	return &MessageService{
		DB:              db,
		Cache:           cache,
		Dispatcher:      d,
		MaxSubjectRunes: 255,
		MaxContentRunes: 10000,
	}
}

// Submit validates the submission, persists it as queued, and spawns the
// background dispatch. The returned message reflects the queued state; the
// caller polls Status for the terminal outcome.
func (s *MessageService) Submit(ctx context.Context, tenantID string, in SubmitInput) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("recipients", len(in.Recipients)),
		),
	)
	defer span.End()

	in.Subject = strings.TrimSpace(in.Subject)
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, ErrEmptyContent
	}
	if s.MaxSubjectRunes > 0 && utf8.RuneCountInString(in.Subject) > s.MaxSubjectRunes {
		return nil, ErrSubjectTooLong
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(in.Content) > s.MaxContentRunes {
		return nil, ErrContentTooLong
	}
	if len(in.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if len(in.Channels) == 0 {
		return nil, ErrNoChannels
	}

	active, err := s.Cache.Active(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(eligibleChannels(active, in.Channels)) == 0 {
		return nil, ErrNoActiveChannels
	}

	msg := &domain.Message{
		TenantID:   tenantID,
		Subject:    in.Subject,
		Content:    in.Content,
		Channels:   domain.StringSlice(in.Channels),
		Recipients: domain.RecipientList(in.Recipients),
		Status:     domain.StatusQueued,
	}
	if err := repo.CreateMessage(ctx, s.DB, msg); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		// Leave the row queued; an operator can re-drive it after restart.
		return nil, ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	// Detach from the request lifetime but keep trace correlation.
	bg := context.WithoutCancel(ctx)
	go s.process(bg, msg)

	return msg, nil
}

// process drives one queued message to a terminal state. It runs outside
// the submitting request and reports failures through logs and metrics
// rather than to the caller.
func (s *MessageService) process(ctx context.Context, msg *domain.Message) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("message_id", msg.ID).Msg("dispatch panicked")
		}
	}()

	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "process",
		trace.WithAttributes(attribute.String("message.id", msg.ID)),
	)
	defer span.End()

	err := repo.TransitionMessage(ctx, s.DB, msg.ID, domain.StatusQueued, domain.StatusSending)
	if errors.Is(err, repo.ErrStatusConflict) {
		// Cancelled while queued; nothing was sent.
		return
	}
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("queued->sending transition failed")
		return
	}

	active, err := s.Cache.Active(ctx, msg.TenantID)
	if err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("loading active channels failed")
		active = nil
	}

	stats, err := s.Dispatcher.Deliver(ctx, msg, active)
	if err != nil {
		// Stats already mark every recipient failed; finalize as usual.
		log.Error().Err(err).Str("message_id", msg.ID).Msg("dispatch aborted")
	}

	status := domain.StatusFailed
	var sentAt *time.Time
	if stats.SentCount > 0 {
		status = domain.StatusSent
		now := time.Now().UTC()
		sentAt = &now
	}
	if err := repo.FinalizeMessage(ctx, s.DB, msg.ID, status, stats, sentAt); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Str("status", status).Msg("finalize failed")
		return
	}
	dispatch.ObserveOutcome(status)
	log.Info().
		Str("message_id", msg.ID).
		Str("status", status).
		Int("sent", stats.SentCount).
		Int("failed", stats.FailedCount).
		Msg("message dispatch finished")
}

// Status returns the message with its delivery stats, scoped to the tenant.
func (s *MessageService) Status(ctx context.Context, tenantID, id string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Status",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("message.id", id),
		),
	)
	defer span.End()

	msg, err := repo.GetMessage(ctx, s.DB, id, tenantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// Cancel moves a still-queued message to cancelled. Once dispatch has
// started the message is past the point of no return and ErrNotCancellable
// is reported instead.
func (s *MessageService) Cancel(ctx context.Context, tenantID, id string) error {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Cancel",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("message.id", id),
		),
	)
	defer span.End()

	if _, err := repo.GetMessage(ctx, s.DB, id, tenantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	err := repo.TransitionMessage(ctx, s.DB, id, domain.StatusQueued, domain.StatusCancelled)
	if errors.Is(err, repo.ErrStatusConflict) {
		return ErrNotCancellable
	}
	if errors.Is(err, repo.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	dispatch.ObserveOutcome(domain.StatusCancelled)
	return nil
}

// ListPage returns paginated messages for a tenant, most recent first.
// It applies defaults for invalid page/pageSize and returns total count.
func (s *MessageService) ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountMessages(ctx, s.DB, tenantID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, tenantID, offset, pageSize)
	return items, total, err
}

// Close stops accepting new submissions and waits for in-flight dispatches
// to finish, up to the context deadline.
func (s *MessageService) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// eligibleChannels filters the active set down to the allowed channel ids.
func eligibleChannels(active []domain.Channel, allowed []string) []domain.Channel {
	want := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		want[id] = true
	}
	out := make([]domain.Channel, 0, len(active))
	for _, ch := range active {
		if want[ch.ID] {
			out = append(out, ch)
		}
	}
	return out
}
