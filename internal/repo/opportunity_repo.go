// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Opportunity
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Merge semantics for duplicate
// fingerprints live in the ingest service; this layer only exposes the
// primitives (fingerprint lookup, insert with unique-violation detection,
// field updates).
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Inserting a fingerprint that already exists returns ErrDuplicate so the
//     caller can fall back to a merge.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation, e.g. inserting an
// opportunity whose fingerprint is already stored.
var ErrDuplicate = errors.New("duplicate record")

// CreateOpportunity inserts a new opportunity row. A fingerprint collision
// with an existing row yields ErrDuplicate; the caller is expected to
// re-fetch and merge instead.
func CreateOpportunity(ctx context.Context, db *gorm.DB, o *domain.Opportunity) error {
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetOpportunity fetches an opportunity by primary key, or ErrNotFound.
func GetOpportunity(ctx context.Context, db *gorm.DB, id string) (*domain.Opportunity, error) {
	var o domain.Opportunity
	if err := db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOpportunityByFingerprint fetches an opportunity by its content
// fingerprint, or ErrNotFound.
func GetOpportunityByFingerprint(ctx context.Context, db *gorm.DB, fingerprint string) (*domain.Opportunity, error) {
	var o domain.Opportunity
	if err := db.WithContext(ctx).First(&o, "fingerprint = ?", fingerprint).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveOpportunity persists every field of an already-loaded opportunity.
// Used by the ingest service after computing a merge.
func SaveOpportunity(ctx context.Context, db *gorm.DB, o *domain.Opportunity) error {
	return db.WithContext(ctx).Save(o).Error
}

// UpdateOpportunityScore records the latest score and tier assigned by the
// scoring engine.
func UpdateOpportunityScore(ctx context.Context, db *gorm.DB, id string, score float64, tier int) error {
	res := db.WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("id = ?", id).
		Updates(map[string]any{"score": score, "tier": tier})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ArchiveOpportunitiesBefore soft-archives opportunities discovered before
// the cutoff that are not yet archived. Returns the number of rows archived.
// Rows are never deleted.
func ArchiveOpportunitiesBefore(ctx context.Context, db *gorm.DB, cutoff, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Opportunity{}).
		Where("discovered_at < ? AND archived_at IS NULL", cutoff).
		Update("archived_at", now)
	return res.RowsAffected, res.Error
}

// isUniqueViolation detects unique-constraint failures across drivers that
// may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
