// Package generate defines the contract to the external content-generation
// collaborator. The orchestration core only requests drafts and receives
// references to them; the natural-language generation itself lives outside
// this repo.
package generate

import (
	"context"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// Constraints narrows what kind of draft the generator should produce.
type Constraints struct {
	ContentType string `json:"content_type"` // cover_letter, essay, proposal, …
	MaxWords    int    `json:"max_words"`
	Tone        string `json:"tone"`
}

// Draft is the generator's response: an opaque reference to the produced
// content plus the generator's self-reported quality estimate in [0,1].
type Draft struct {
	ContentRef   string  `json:"content_ref"`
	QualityScore float64 `json:"quality_score"`
}

// Generator produces application material for a (profile, opportunity) pair.
// Calls may be slow (seconds to low minutes). Implementations must be safe
// to call again with the same inputs: the orchestrator retries on timeout,
// and a repeated request for the same pair should not produce conflicting
// drafts.
type Generator interface {
	Generate(ctx context.Context, profile domain.Profile, opp domain.Opportunity, c Constraints) (Draft, error)
}

// Func adapts a plain function to the Generator interface. Handy for tests
// and for wiring small built-in generators.
type Func func(ctx context.Context, profile domain.Profile, opp domain.Opportunity, c Constraints) (Draft, error)

// Generate implements Generator.
func (f Func) Generate(ctx context.Context, profile domain.Profile, opp domain.Opportunity, c Constraints) (Draft, error) {
	return f(ctx, profile, opp, c)
}
