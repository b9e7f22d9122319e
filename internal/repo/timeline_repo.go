// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only timeline plus the small
// aggregate queries (funnel counts, admission counts) derived from it.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// AppendEvent writes one timeline entry for an application. Events are
// append-only; there is no update or delete path.
func AppendEvent(ctx context.Context, db *gorm.DB, applicationID, kind string, payload map[string]any) (*domain.TimelineEvent, error) {
	ev := &domain.TimelineEvent{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Kind:          kind,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(ev).Error; err != nil {
		return nil, err
	}
	return ev, nil
}

// ListTimeline returns the full event timeline for an application in
// insertion order.
func ListTimeline(ctx context.Context, db *gorm.DB, applicationID string) ([]domain.TimelineEvent, error) {
	var out []domain.TimelineEvent
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountEventsSince counts events of one kind recorded at or after the given
// instant, across all applications. The orchestrator uses this to enforce
// the daily admission quota across restarts.
func CountEventsSince(ctx context.Context, db *gorm.DB, kind string, since time.Time) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.TimelineEvent{}).
		Where("kind = ? AND created_at >= ?", kind, since).
		Count(&total).Error
	return total, err
}

// FunnelCounts is the per-user conversion summary across the lifecycle.
type FunnelCounts struct {
	Discovered int64 `json:"discovered"`
	Admitted   int64 `json:"admitted"`
	Submitted  int64 `json:"submitted"`
	Closed     int64 `json:"closed"`
	Accepted   int64 `json:"accepted"`
}

// UserFunnel computes the Discovered→Admitted→Submitted→Closed funnel for a
// user from current application rows. Closed includes every terminal outcome
// reached through tracking; Accepted narrows to accepted outcomes.
func UserFunnel(ctx context.Context, db *gorm.DB, userID string) (*FunnelCounts, error) {
	var f FunnelCounts
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Application{}).Where("user_id = ?", userID)
	}

	if err := base().Count(&f.Discovered).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("state NOT IN (?, ?, ?)", domain.StateDiscovered, domain.StateScored, domain.StateSkipped).
		Count(&f.Admitted).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("state IN (?, ?, ?)", domain.StateSubmitted, domain.StateTracking, domain.StateClosed).
		Count(&f.Submitted).Error; err != nil {
		return nil, err
	}
	if err := base().Where("state = ?", domain.StateClosed).Count(&f.Closed).Error; err != nil {
		return nil, err
	}
	if err := base().
		Where("state = ? AND outcome = ?", domain.StateClosed, domain.OutcomeAccepted).
		Count(&f.Accepted).Error; err != nil {
		return nil, err
	}
	return &f, nil
}
