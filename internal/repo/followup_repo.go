// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for FollowUpTask.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// CreateFollowUp inserts a new follow-up task row.
func CreateFollowUp(ctx context.Context, db *gorm.DB, t *domain.FollowUpTask) error {
	return db.WithContext(ctx).Create(t).Error
}

// ListDueFollowUps returns uncompleted tasks due at or before now, soonest
// first, capped at limit.
func ListDueFollowUps(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.FollowUpTask, error) {
	var out []domain.FollowUpTask
	err := db.WithContext(ctx).
		Where("completed = ? AND due_at <= ?", false, now).
		Order("due_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListFollowUpsForApplication returns every follow-up for an application,
// soonest first.
func ListFollowUpsForApplication(ctx context.Context, db *gorm.DB, applicationID string) ([]domain.FollowUpTask, error) {
	var out []domain.FollowUpTask
	err := db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("due_at asc").
		Find(&out).Error
	return out, err
}

// CompleteFollowUp marks a task as completed. Returns ErrNotFound when the
// task does not exist or was already completed.
func CompleteFollowUp(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.FollowUpTask{}).
		Where("id = ? AND completed = ?", id, false).
		Update("completed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
