// Outcome feedback adapter.
//
// Closed applications carry the exact weights version and per-feature score
// breakdown they were scored with. This adapter turns each outcome into a
// per-feature delta signal against that version: features that contributed
// strongly to an accepted application push their weights up, features that
// contributed strongly to a rejection push them down. The adapter only emits
// signals; deciding whether and how to install a new weights version is the
// consumer's job.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/repo"
	"github.com/growthengine/opportunity-engine/internal/scoring"
)

// WeightAdjustmentSignal is one outcome's suggested adjustment, attributed
// to the weights version the application was scored with.
type WeightAdjustmentSignal struct {
	ApplicationID  string             `json:"application_id"`
	Outcome        string             `json:"outcome"`
	WeightsVersion int                `json:"weights_version"`
	FeatureDeltas  map[string]float64 `json:"feature_deltas"`
}

// SignalConsumer receives adjustment signals. Implementations aggregate them
// into weight update proposals; emission failures are logged, never fatal.
type SignalConsumer interface {
	Consume(ctx context.Context, sig WeightAdjustmentSignal) error
}

// SignalConsumerFunc adapts a function to SignalConsumer.
type SignalConsumerFunc func(ctx context.Context, sig WeightAdjustmentSignal) error

// Consume implements SignalConsumer.
func (f SignalConsumerFunc) Consume(ctx context.Context, sig WeightAdjustmentSignal) error {
	return f(ctx, sig)
}

// Feedback converts application outcomes into weight adjustment signals.
type Feedback struct {
	db       *gorm.DB
	consumer SignalConsumer
	// rate scales every delta; small by default so a single outcome can
	// never swing a weight dramatically.
	rate float64
}

// NewFeedback builds the adapter. consumer may be nil, in which case signals
// are computed and logged but not delivered anywhere.
func NewFeedback(db *gorm.DB, consumer SignalConsumer, learningRate float64) *Feedback {
	if learningRate <= 0 {
		learningRate = 0.05
	}
	return &Feedback{db: db, consumer: consumer, rate: learningRate}
}

// RecordOutcome computes and emits the adjustment signal for a closed
// application. Safe to call from the orchestrator's OnClosed hook.
func (f *Feedback) RecordOutcome(ctx context.Context, app *domain.Application) {
	if !domain.ValidOutcome(app.Outcome) {
		log.Error().
			Str("application_id", app.ID).
			Str("outcome", app.Outcome).
			Msg("closed application carries no valid outcome")
		return
	}
	if len(app.FeatureScores) == 0 {
		log.Warn().Str("application_id", app.ID).Msg("no feature breakdown, skipping feedback")
		return
	}

	// Resolve the weights the application was actually scored with. A
	// missing version still yields a signal; attribution just degrades.
	if _, err := repo.GetWeights(ctx, f.db, app.WeightsVersion); err != nil && !errors.Is(err, repo.ErrNotFound) {
		log.Error().Err(err).Int("weights_version", app.WeightsVersion).Msg("resolve weights version")
		return
	}

	sig := WeightAdjustmentSignal{
		ApplicationID:  app.ID,
		Outcome:        app.Outcome,
		WeightsVersion: app.WeightsVersion,
		FeatureDeltas:  f.deltas(app),
	}

	if f.consumer == nil {
		log.Info().
			Str("application_id", app.ID).
			Str("outcome", app.Outcome).
			Int("weights_version", app.WeightsVersion).
			Msg("weight adjustment signal (no consumer)")
		return
	}
	if err := f.consumer.Consume(ctx, sig); err != nil {
		log.Error().Err(err).Str("application_id", app.ID).Msg("deliver adjustment signal")
	}
}

// deltas computes per-feature adjustments: the gap between the outcome value
// and the combined score, distributed in proportion to how strongly each
// feature scored, scaled by the learning rate.
func (f *Feedback) deltas(app *domain.Application) map[string]float64 {
	target := outcomeValue(app.Outcome)
	gap := target - app.Score

	out := make(map[string]float64, len(scoring.FeatureNames))
	for _, name := range scoring.FeatureNames {
		out[name] = f.rate * gap * app.FeatureScores[name]
	}
	return out
}

// outcomeValue maps an outcome to its reward. No response sits low but above
// rejection: the application at least cleared submission.
func outcomeValue(outcome string) float64 {
	switch outcome {
	case domain.OutcomeAccepted:
		return 1.0
	case domain.OutcomeNoResponse:
		return 0.25
	default:
		return 0.0
	}
}
