// Weights administration.
//
// Operators can inspect the active scoring weights and install a new version.
// Install is persist-then-activate: the immutable version row is written
// first so outcome attribution never references a version that was active
// but never stored.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/repo"
	"github.com/growthengine/opportunity-engine/internal/scoring"
)

// WeightsService exposes read and install operations over the versioned
// scoring configuration.
type WeightsService struct {
	DB    *gorm.DB
	Store *scoring.Store
}

// Current returns the active weights version.
func (s *WeightsService) Current() scoring.Weights {
	return s.Store.Current()
}

// History returns one persisted weights version, or ErrNotFound.
func (s *WeightsService) History(ctx context.Context, version int) (*domain.WeightsRecord, error) {
	return repo.GetWeights(ctx, s.DB, version)
}

// Install validates, persists, and atomically activates a new weights
// version. The version number must exceed the active one.
func (s *WeightsService) Install(ctx context.Context, w scoring.Weights) error {
	if err := w.Validate(); err != nil {
		return errors.Join(ErrValidation, err)
	}
	if w.Version <= s.Store.Current().Version {
		return errors.Join(ErrValidation, errors.New("weights version must increase"))
	}

	rec := &domain.WeightsRecord{
		Version:        w.Version,
		Weights:        w.Features,
		Tier1Threshold: w.Tier1Threshold,
		Tier2Threshold: w.Tier2Threshold,
		UpdatedAt:      w.UpdatedAt,
	}
	if err := repo.SaveWeights(ctx, s.DB, rec); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return errors.Join(ErrValidation, errors.New("weights version already exists"))
		}
		return err
	}
	return s.Store.Install(w)
}
