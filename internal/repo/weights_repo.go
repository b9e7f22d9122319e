// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists immutable scoring-weights versions so
// the outcome feedback adapter can resolve the exact weights any application
// was scored with, even long after newer versions were installed.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// SaveWeights inserts a new weights version. Versions are immutable; writing
// an existing version yields ErrDuplicate.
func SaveWeights(ctx context.Context, db *gorm.DB, w *domain.WeightsRecord) error {
	if err := db.WithContext(ctx).Create(w).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetWeights fetches one weights version, or ErrNotFound.
func GetWeights(ctx context.Context, db *gorm.DB, version int) (*domain.WeightsRecord, error) {
	var w domain.WeightsRecord
	if err := db.WithContext(ctx).First(&w, "version = ?", version).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// LatestWeights fetches the highest installed version, or ErrNotFound when no
// weights were ever persisted.
func LatestWeights(ctx context.Context, db *gorm.DB) (*domain.WeightsRecord, error) {
	var w domain.WeightsRecord
	if err := db.WithContext(ctx).Order("version desc").First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}
