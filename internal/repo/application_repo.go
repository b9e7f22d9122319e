// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Application
// model, including the version-guarded compare-and-swap used for every state
// transition.
//
// Concurrency contract:
//
//	TransitionApplication(ctx, db, id, fromVersion, updates) writes back only
//	if the row still carries fromVersion, incrementing the version atomically.
//	A lost race returns ErrVersionConflict so the caller can re-read and
//	retry against the fresh state. This guarantees that transitions for a
//	single application are strictly sequential even with many workers.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// ErrVersionConflict is returned when a version-guarded write loses a race
// against a concurrent transition of the same application.
var ErrVersionConflict = errors.New("application version conflict")

// CreateApplication inserts a new application row. A (user, opportunity)
// pair that already has an application yields ErrDuplicate.
func CreateApplication(ctx context.Context, db *gorm.DB, a *domain.Application) error {
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetApplication fetches an application by primary key, or ErrNotFound.
func GetApplication(ctx context.Context, db *gorm.DB, id string) (*domain.Application, error) {
	var a domain.Application
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetApplicationForUserOpportunity fetches the application for a
// (user, opportunity) pair, or ErrNotFound.
func GetApplicationForUserOpportunity(ctx context.Context, db *gorm.DB, userID, opportunityID string) (*domain.Application, error) {
	var a domain.Application
	err := db.WithContext(ctx).
		First(&a, "user_id = ? AND opportunity_id = ?", userID, opportunityID).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// TransitionApplication performs the optimistic-concurrency state write.
// updates must include the target "state"; version handling is added here.
// Returns ErrVersionConflict when the row moved since fromVersion was read.
func TransitionApplication(ctx context.Context, db *gorm.DB, id string, fromVersion int64, updates map[string]any) error {
	updates["version"] = fromVersion + 1
	updates["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ? AND version = ?", id, fromVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the record is gone or another worker won the version race.
		var count int64
		if err := db.WithContext(ctx).Model(&domain.Application{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// SetCancelRequested flags an application for cancellation. The flag is
// deliberately written outside the version guard: it does not advance the
// state machine, it only asks the orchestrator to abandon the record at the
// next transition boundary.
func SetCancelRequested(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ?", id).
		Update("cancel_requested", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListApplicationsInState returns applications currently in the given state,
// oldest first, capped at limit.
func ListApplicationsInState(ctx context.Context, db *gorm.DB, state string, limit int) ([]domain.Application, error) {
	var out []domain.Application
	err := db.WithContext(ctx).
		Where("state = ?", state).
		Order("updated_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListStuckTracking returns applications that have sat in the tracking state
// since before the cutoff, i.e. candidates for no-response auto-close.
func ListStuckTracking(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Application, error) {
	var out []domain.Application
	err := db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", domain.StateTracking, cutoff).
		Order("updated_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ArchiveApplication stamps a terminal application as archived. The row, its
// attempts, and its timeline survive for auditability.
func ArchiveApplication(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Application{}).
		Where("id = ?", id).
		Update("archived_at", now).Error
}
