package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// newTestDB opens a throwaway SQLite database with the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

// seedOpportunity inserts a minimal opportunity row and returns it.
func seedOpportunity(t *testing.T, db *gorm.DB) *domain.Opportunity {
	t.Helper()
	o := &domain.Opportunity{
		ID:           uuid.NewString(),
		Fingerprint:  uuid.NewString() + uuid.NewString(), // unique, length is not enforced by sqlite
		Title:        "Backend Engineer",
		Organization: "Acme",
		Sources:      []string{"feed"},
		DiscoveredAt: time.Now().UTC(),
	}
	if err := CreateOpportunity(context.Background(), db, o); err != nil {
		t.Fatalf("CreateOpportunity: %v", err)
	}
	return o
}

// seedApplication inserts an application in the given state.
func seedApplication(t *testing.T, db *gorm.DB, state string) *domain.Application {
	t.Helper()
	o := seedOpportunity(t, db)
	a := &domain.Application{
		ID:            uuid.NewString(),
		OpportunityID: o.ID,
		UserID:        "u-" + uuid.NewString()[:8],
		State:         state,
		Version:       1,
	}
	if err := CreateApplication(context.Background(), db, a); err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	return a
}

func TestOpenSQLite_ErrorOnMissingDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "x.db")
	if _, err := OpenSQLite(bad); err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestOpenSQLite_MigratesSchema(t *testing.T) {
	db := newTestDB(t)
	for _, table := range []string{
		"opportunities", "applications", "submission_attempts",
		"follow_up_tasks", "timeline_events", "scoring_weights",
	} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("missing table %s", table)
		}
	}
}
