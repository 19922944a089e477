package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rzilem/Community-Intelligence-sub005/internal/channels"
	"github.com/rzilem/Community-Intelligence-sub005/internal/dispatch"
	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
	"github.com/rzilem/Community-Intelligence-sub005/internal/ratelimit"
	"github.com/rzilem/Community-Intelligence-sub005/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newOrchestrator wires a MessageService over an in-memory store, a real
// store limiter, and whatever capabilities the test registers.
func newOrchestrator(t *testing.T, db *gorm.DB, reg *channels.Registry) *MessageService {
	t.Helper()
	cache := channels.NewActiveCache(db, time.Minute)
	d := &dispatch.Dispatcher{
		Registry:      reg,
		Limiter:       ratelimit.NewStoreLimiter(db, false),
		MaxConcurrent: 1,
		SendTimeout:   time.Second,
	}
	return NewMessageService(db, cache, d)
}

func addChannel(t *testing.T, db *gorm.DB, tenantID, chType string, priority int, rl domain.RateLimit) *domain.Channel {
	t.Helper()
	ch := &domain.Channel{TenantID: tenantID, Type: chType, Priority: priority, IsActive: true, RateLimit: rl}
	if err := repo.CreateChannel(context.Background(), db, ch); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	return ch
}

func okCapability(counter *int32) channels.CapabilityFunc {
	return func(context.Context, *domain.Channel, *domain.Message, domain.Recipient) error {
		atomic.AddInt32(counter, 1)
		return nil
	}
}

func TestSubmit_Validation(t *testing.T) {
	db := newTestDB(t)
	reg := channels.NewRegistry()
	var sends int32
	reg.Register(domain.ChannelEmail, okCapability(&sends))
	svc := newOrchestrator(t, db, reg)
	ctx := context.Background()

	rcpts := []domain.Recipient{{UserID: "u1"}}
	if _, err := svc.Submit(ctx, "t1", SubmitInput{Content: "", Channels: []string{"c1"}, Recipients: rcpts}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("empty content: got %v", err)
	}
	if _, err := svc.Submit(ctx, "t1", SubmitInput{Content: "hi", Channels: []string{"c1"}}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("no recipients: got %v", err)
	}
	if _, err := svc.Submit(ctx, "t1", SubmitInput{Content: "hi", Recipients: rcpts}); !errors.Is(err, ErrNoChannels) {
		t.Fatalf("no channels: got %v", err)
	}
	if _, err := svc.Submit(ctx, "t1", SubmitInput{Content: "hi", Channels: []string{uuid.NewString()}, Recipients: rcpts}); !errors.Is(err, ErrNoActiveChannels) {
		t.Fatalf("no active channels: got %v", err)
	}

	svc.MaxSubjectRunes = 4
	svc.MaxContentRunes = 8
	if _, err := svc.Submit(ctx, "t1", SubmitInput{Subject: "way too long", Content: "hi", Channels: []string{"c1"}, Recipients: rcpts}); !errors.Is(err, ErrSubjectTooLong) {
		t.Fatalf("long subject: got %v", err)
	}
	if _, err := svc.Submit(ctx, "t1", SubmitInput{Content: "exceeds the cap", Channels: []string{"c1"}, Recipients: rcpts}); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("long content: got %v", err)
	}
}

func TestSubmit_DispatchesToTerminalSent(t *testing.T) {
	db := newTestDB(t)
	reg := channels.NewRegistry()
	var sends int32
	reg.Register(domain.ChannelEmail, okCapability(&sends))
	svc := newOrchestrator(t, db, reg)
	ctx := context.Background()

	ch := addChannel(t, db, "t1", domain.ChannelEmail, 1, domain.RateLimit{})

	msg, err := svc.Submit(ctx, "t1", SubmitInput{
		Subject:    "hello",
		Content:    "world",
		Channels:   []string{ch.ID},
		Recipients: []domain.Recipient{{UserID: "u1"}, {UserID: "u2"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if msg.Status != domain.StatusQueued {
		t.Fatalf("submitted status = %q, want queued", msg.Status)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := svc.Close(waitCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := svc.Status(ctx, "t1", msg.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("status = %q, want sent", got.Status)
	}
	if got.Stats.SentCount != 2 || got.Stats.FailedCount != 0 || got.Stats.TotalRecipients != 2 {
		t.Fatalf("stats = %+v", got.Stats)
	}
	if got.Stats.SentCount+got.Stats.FailedCount != got.Stats.TotalRecipients {
		t.Fatalf("terminal stats must cover every recipient: %+v", got.Stats)
	}
	if got.SentAt == nil {
		t.Fatalf("sent message must carry sent_at")
	}
	if atomic.LoadInt32(&sends) != 2 {
		t.Fatalf("sends = %d, want 2", sends)
	}
}

func TestSubmit_AllFailuresReachFailed(t *testing.T) {
	db := newTestDB(t)
	reg := channels.NewRegistry()
	reg.Register(domain.ChannelEmail, channels.CapabilityFunc(func(context.Context, *domain.Channel, *domain.Message, domain.Recipient) error {
		return errors.New("provider rejected")
	}))
	svc := newOrchestrator(t, db, reg)
	ctx := context.Background()

	ch := addChannel(t, db, "t1", domain.ChannelEmail, 1, domain.RateLimit{})

	msg, err := svc.Submit(ctx, "t1", SubmitInput{
		Content:    "body",
		Channels:   []string{ch.ID},
		Recipients: []domain.Recipient{{UserID: "u1"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := svc.Close(waitCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := svc.Status(ctx, "t1", msg.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.SentAt != nil {
		t.Fatalf("failed message must not carry sent_at")
	}
}

// Two active channels, email capped at 2/hour, three recipients, no
// fallback on limit: two deliver on email, the third fails.
func TestSubmit_RateLimitScenario(t *testing.T) {
	db := newTestDB(t)
	reg := channels.NewRegistry()
	var emailSends, smsSends int32
	reg.Register(domain.ChannelEmail, okCapability(&emailSends))
	reg.Register(domain.ChannelSMS, okCapability(&smsSends))
	svc := newOrchestrator(t, db, reg)
	ctx := context.Background()

	email := addChannel(t, db, "t1", domain.ChannelEmail, 1, domain.RateLimit{MaxPerHour: 2})
	sms := addChannel(t, db, "t1", domain.ChannelSMS, 2, domain.RateLimit{})

	msg, err := svc.Submit(ctx, "t1", SubmitInput{
		Content:    "body",
		Channels:   []string{email.ID, sms.ID},
		Recipients: []domain.Recipient{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := svc.Close(waitCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := svc.Status(ctx, "t1", msg.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("status = %q, want sent (partial success)", got.Status)
	}
	if got.Stats.SentCount != 2 || got.Stats.FailedCount != 1 {
		t.Fatalf("stats = %+v, want 2 sent / 1 failed", got.Stats)
	}
	if atomic.LoadInt32(&smsSends) != 0 {
		t.Fatalf("rate-limit denial must not fall back to sms by default")
	}
}

func TestCancel_QueuedMessage(t *testing.T) {
	db := newTestDB(t)
	reg := channels.NewRegistry()
	var sends int32
	reg.Register(domain.ChannelEmail, okCapability(&sends))
	svc := newOrchestrator(t, db, reg)
	ctx := context.Background()

	msg := &domain.Message{
		TenantID:   "t1",
		Content:    "body",
		Recipients: domain.RecipientList{{UserID: "u1"}},
		Status:     domain.StatusQueued,
	}
	if err := repo.CreateMessage(ctx, db, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := svc.Cancel(ctx, "t1", msg.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, err := svc.Status(ctx, "t1", msg.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}

	// A dispatch racing the cancellation finds the guarded transition
	// already lost and never touches a capability.
	svc.wg.Add(1)
	svc.process(ctx, msg)
	if atomic.LoadInt32(&sends) != 0 {
		t.Fatalf("cancelled message must never reach a send capability")
	}
	got, _ = svc.Status(ctx, "t1", msg.ID)
	if got.Status != domain.StatusCancelled {
		t.Fatalf("status = %q after dispatch race, want cancelled", got.Status)
	}
}

func TestCancel_AfterTerminalState(t *testing.T) {
	db := newTestDB(t)
	svc := newOrchestrator(t, db, channels.NewRegistry())
	ctx := context.Background()

	msg := &domain.Message{
		TenantID:   "t1",
		Content:    "body",
		Recipients: domain.RecipientList{{UserID: "u1"}},
		Status:     domain.StatusSent,
	}
	if err := repo.CreateMessage(ctx, db, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if err := svc.Cancel(ctx, "t1", msg.ID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("got %v, want ErrNotCancellable", err)
	}
}

func TestCancel_UnknownMessage(t *testing.T) {
	db := newTestDB(t)
	svc := newOrchestrator(t, db, channels.NewRegistry())

	if err := svc.Cancel(context.Background(), "t1", uuid.NewString()); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("got %v, want ErrMessageNotFound", err)
	}
}

func TestStatus_TenantScoped(t *testing.T) {
	db := newTestDB(t)
	svc := newOrchestrator(t, db, channels.NewRegistry())
	ctx := context.Background()

	msg := &domain.Message{
		TenantID:   "t1",
		Content:    "body",
		Recipients: domain.RecipientList{{UserID: "u1"}},
		Status:     domain.StatusQueued,
	}
	if err := repo.CreateMessage(ctx, db, msg); err != nil {
		t.Fatalf("create message: %v", err)
	}

	if _, err := svc.Status(ctx, "t2", msg.ID); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("foreign tenant read: got %v", err)
	}
}

func TestSubmit_RejectedDuringShutdown(t *testing.T) {
	db := newTestDB(t)
	reg := channels.NewRegistry()
	var sends int32
	reg.Register(domain.ChannelEmail, okCapability(&sends))
	svc := newOrchestrator(t, db, reg)
	ctx := context.Background()

	ch := addChannel(t, db, "t1", domain.ChannelEmail, 1, domain.RateLimit{})

	closeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := svc.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := svc.Submit(ctx, "t1", SubmitInput{
		Content:    "body",
		Channels:   []string{ch.ID},
		Recipients: []domain.Recipient{{UserID: "u1"}},
	})
	if !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("got %v, want ErrShuttingDown", err)
	}
}

func TestListPage_Defaults(t *testing.T) {
	db := newTestDB(t)
	svc := newOrchestrator(t, db, channels.NewRegistry())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m := &domain.Message{
			TenantID:   "t1",
			Content:    "body",
			Recipients: domain.RecipientList{{UserID: "u1"}},
			Status:     domain.StatusQueued,
		}
		if err := repo.CreateMessage(ctx, db, m); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	items, total, err := svc.ListPage(ctx, "t1", 0, 0)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("total = %d, items = %d, want 3/3", total, len(items))
	}

	items, total, err = svc.ListPage(ctx, "t2", 1, 10)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("foreign tenant: total = %d, items = %d", total, len(items))
	}
}
