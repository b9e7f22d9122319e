// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// SubmissionAttempt model. One row is created per dispatch try; retries of
// the same logical submission share an idempotency key but get fresh rows
// with an incremented attempt number.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// CreateAttempt inserts a new submission attempt row.
func CreateAttempt(ctx context.Context, db *gorm.DB, a *domain.SubmissionAttempt) error {
	return db.WithContext(ctx).Create(a).Error
}

// GetAttempt fetches an attempt by primary key, or ErrNotFound.
func GetAttempt(ctx context.Context, db *gorm.DB, id string) (*domain.SubmissionAttempt, error) {
	var a domain.SubmissionAttempt
	if err := db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAttemptsForApplication returns every attempt for an application,
// oldest first.
func ListAttemptsForApplication(ctx context.Context, db *gorm.DB, applicationID string) ([]domain.SubmissionAttempt, error) {
	var out []domain.SubmissionAttempt
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// CountDeliveredByKey counts attempts with the given idempotency key that
// reached delivered status. Used to verify the exactly-once property.
func CountDeliveredByKey(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.SubmissionAttempt{}).
		Where("idempotency_key = ? AND status = ?", key, domain.AttemptDelivered).
		Count(&total).Error
	return total, err
}

// MarkAttemptInFlight moves a pending attempt to in_flight.
func MarkAttemptInFlight(ctx context.Context, db *gorm.DB, id string) error {
	return updateAttempt(ctx, db, id, map[string]any{"status": domain.AttemptInFlight})
}

// MarkAttemptDelivered finalizes an attempt as delivered with the adapter's
// delivery ID. Terminal; the row is not touched again.
func MarkAttemptDelivered(ctx context.Context, db *gorm.DB, id, deliveryID string) error {
	return updateAttempt(ctx, db, id, map[string]any{
		"status":      domain.AttemptDelivered,
		"delivery_id": deliveryID,
	})
}

// MarkAttemptFailed finalizes an attempt as failed, optionally recording when
// the next retry is due (nil when the retry budget is exhausted).
func MarkAttemptFailed(ctx context.Context, db *gorm.DB, id, lastError string, nextRetryAt *time.Time) error {
	return updateAttempt(ctx, db, id, map[string]any{
		"status":        domain.AttemptFailed,
		"last_error":    lastError,
		"next_retry_at": nextRetryAt,
	})
}

// MarkAttemptExpired finalizes an attempt whose opportunity deadline passed
// before delivery could happen.
func MarkAttemptExpired(ctx context.Context, db *gorm.DB, id, reason string) error {
	return updateAttempt(ctx, db, id, map[string]any{
		"status":     domain.AttemptExpired,
		"last_error": reason,
	})
}

func updateAttempt(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.SubmissionAttempt{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
