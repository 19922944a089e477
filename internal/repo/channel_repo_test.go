package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rzilem/Community-Intelligence-sub005/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedChannel(t *testing.T, db *gorm.DB, tenantID, chType string, priority int, active bool) *domain.Channel {
	t.Helper()
	ch := &domain.Channel{
		TenantID: tenantID,
		Type:     chType,
		Priority: priority,
		IsActive: active,
	}
	if err := CreateChannel(context.Background(), db, ch); err != nil {
		t.Fatalf("seed channel: %v", err)
	}
	return ch
}

func TestListActiveChannels_OrderAndFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedChannel(t, db, "t1", domain.ChannelSMS, 2, true)
	seedChannel(t, db, "t1", domain.ChannelEmail, 1, true)
	seedChannel(t, db, "t1", domain.ChannelPush, 1, false) // inactive, excluded
	seedChannel(t, db, "t2", domain.ChannelEmail, 1, true) // other tenant

	got, err := ListActiveChannels(ctx, db, "t1")
	if err != nil {
		t.Fatalf("ListActiveChannels: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d channels, want 2", len(got))
	}
	if got[0].Type != domain.ChannelEmail || got[1].Type != domain.ChannelSMS {
		t.Fatalf("wrong order: %s, %s", got[0].Type, got[1].Type)
	}
}

func TestListActiveChannels_TiesBreakByID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := seedChannel(t, db, "t1", domain.ChannelEmail, 5, true)
	b := seedChannel(t, db, "t1", domain.ChannelSMS, 5, true)

	got, err := ListActiveChannels(ctx, db, "t1")
	if err != nil {
		t.Fatalf("ListActiveChannels: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d channels, want 2", len(got))
	}
	lo, hi := a.ID, b.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	if got[0].ID != lo || got[1].ID != hi {
		t.Fatalf("equal priorities must order by id: got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestUpdateChannel_PersistsFalseActive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ch := seedChannel(t, db, "t1", domain.ChannelEmail, 1, true)
	ch.IsActive = false
	ch.Priority = 0
	if err := UpdateChannel(ctx, db, ch.ID, "t1", ch); err != nil {
		t.Fatalf("UpdateChannel: %v", err)
	}

	got, err := GetChannel(ctx, db, ch.ID, "t1")
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if got.IsActive {
		t.Fatalf("IsActive = true, want false (zero values must persist)")
	}
	if got.Priority != 0 {
		t.Fatalf("Priority = %d, want 0", got.Priority)
	}
}

func TestUpdateChannel_WrongTenantNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ch := seedChannel(t, db, "t1", domain.ChannelEmail, 1, true)
	err := UpdateChannel(ctx, db, ch.ID, "t2", ch)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign tenant, got %v", err)
	}
}

func TestChannel_ConfigurationRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ch := &domain.Channel{
		TenantID:      "t1",
		Type:          domain.ChannelSlack,
		Priority:      3,
		IsActive:      true,
		Configuration: domain.JSONMap{"webhook_url": "https://hooks.example.com/T123", "channel": "#ops"},
		RateLimit:     domain.RateLimit{MaxPerHour: 10, MaxPerDay: 100},
	}
	if err := CreateChannel(ctx, db, ch); err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}

	got, err := GetChannel(ctx, db, ch.ID, "t1")
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if got.Configuration["webhook_url"] != "https://hooks.example.com/T123" {
		t.Fatalf("configuration lost: %+v", got.Configuration)
	}
	if got.RateLimit.MaxPerHour != 10 || got.RateLimit.MaxPerDay != 100 {
		t.Fatalf("rate limit lost: %+v", got.RateLimit)
	}
}
