package repo

import (
	"context"
	"testing"
	"time"
)

func TestCountUsageSince_WindowBoundary(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Two sends inside the hour, one just outside it.
	if err := RecordUsage(ctx, db, "ch1", true, now.Add(-10*time.Minute)); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := RecordUsage(ctx, db, "ch1", false, now.Add(-30*time.Minute)); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := RecordUsage(ctx, db, "ch1", true, now.Add(-61*time.Minute)); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := RecordUsage(ctx, db, "ch2", true, now.Add(-5*time.Minute)); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	n, err := CountUsageSince(ctx, db, "ch1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountUsageSince: %v", err)
	}
	if n != 2 {
		t.Fatalf("hour window count = %d, want 2", n)
	}

	n, err = CountUsageSince(ctx, db, "ch1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CountUsageSince: %v", err)
	}
	if n != 3 {
		t.Fatalf("day window count = %d, want 3", n)
	}
}

func TestPurgeUsageBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := RecordUsage(ctx, db, "ch1", true, now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	if err := RecordUsage(ctx, db, "ch1", true, now.Add(-5*time.Minute)); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	purged, err := PurgeUsageBefore(ctx, db, now.Add(-25*time.Hour))
	if err != nil {
		t.Fatalf("PurgeUsageBefore: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}

	n, err := CountUsageSince(ctx, db, "ch1", now.Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("CountUsageSince: %v", err)
	}
	if n != 1 {
		t.Fatalf("remaining = %d, want 1", n)
	}
}
