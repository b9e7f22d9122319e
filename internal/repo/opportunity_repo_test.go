package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

func TestCreateOpportunity_FingerprintCollision(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	o := seedOpportunity(t, db)

	dup := &domain.Opportunity{
		ID:           uuid.NewString(),
		Fingerprint:  o.Fingerprint,
		Title:        o.Title,
		Organization: o.Organization,
		DiscoveredAt: time.Now().UTC(),
	}
	if err := CreateOpportunity(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestGetOpportunityByFingerprint(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	o := seedOpportunity(t, db)

	got, err := GetOpportunityByFingerprint(ctx, db, o.Fingerprint)
	if err != nil {
		t.Fatalf("GetOpportunityByFingerprint: %v", err)
	}
	if got.ID != o.ID {
		t.Fatalf("got %s, want %s", got.ID, o.ID)
	}

	if _, err := GetOpportunityByFingerprint(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveOpportunity_RoundTripsJSONFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	o := seedOpportunity(t, db)

	o.Sources = []string{"feed", "linkedin"}
	o.Tags = []string{"backend", "go"}
	if err := SaveOpportunity(ctx, db, o); err != nil {
		t.Fatalf("SaveOpportunity: %v", err)
	}

	got, err := GetOpportunity(ctx, db, o.ID)
	if err != nil {
		t.Fatalf("GetOpportunity: %v", err)
	}
	if len(got.Sources) != 2 || got.Sources[1] != "linkedin" {
		t.Fatalf("sources = %v", got.Sources)
	}
	if len(got.Tags) != 2 {
		t.Fatalf("tags = %v", got.Tags)
	}
}

func TestArchiveOpportunitiesBefore(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := seedOpportunity(t, db)
	db.Model(&domain.Opportunity{}).Where("id = ?", stale.ID).
		Update("discovered_at", now.Add(-100*24*time.Hour))
	fresh := seedOpportunity(t, db)

	n, err := ArchiveOpportunitiesBefore(ctx, db, now.Add(-90*24*time.Hour), now)
	if err != nil {
		t.Fatalf("ArchiveOpportunitiesBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("archived %d rows, want 1", n)
	}

	gotStale, _ := GetOpportunity(ctx, db, stale.ID)
	if gotStale.ArchivedAt == nil {
		t.Fatal("stale row not archived")
	}
	gotFresh, _ := GetOpportunity(ctx, db, fresh.ID)
	if gotFresh.ArchivedAt != nil {
		t.Fatal("fresh row must not be archived")
	}

	// Idempotent: already-archived rows are not re-counted.
	n, err = ArchiveOpportunitiesBefore(ctx, db, now.Add(-90*24*time.Hour), now)
	if err != nil || n != 0 {
		t.Fatalf("second pass n=%d err=%v, want 0/nil", n, err)
	}
}
