// Package scoring implements the fit scoring and tiering engine.
//
// This file defines the versioned weights configuration and the process-wide
// store that holds the active version. Weights are immutable values: readers
// always observe a complete, consistent version, and writers install a whole
// new version atomically instead of mutating fields in place.
package scoring

import (
	"errors"
	"sync/atomic"
	"time"
)

// Feature names used across the engine, the persisted breakdown on
// applications, and the feedback adapter's delta signals.
const (
	FeatureSkillMatch      = "skill_match"
	FeatureExperienceMatch = "experience_match"
	FeatureInterestMatch   = "interest_match"
	FeaturePrestige        = "prestige"
	FeatureUrgency         = "urgency"
	FeatureCompensation    = "compensation"
)

// FeatureNames lists every scored feature in the fixed order the engine
// combines them. The fixed order keeps float accumulation deterministic.
var FeatureNames = []string{
	FeatureSkillMatch,
	FeatureExperienceMatch,
	FeatureInterestMatch,
	FeaturePrestige,
	FeatureUrgency,
	FeatureCompensation,
}

// Weights is one immutable version of the scoring configuration. The main
// per-feature weights should sum to roughly 1.0 so the combined score stays
// in [0,1].
type Weights struct {
	Version        int
	Features       map[string]float64
	Tier1Threshold float64
	Tier2Threshold float64
	UpdatedAt      time.Time
}

// DefaultWeights returns version 1 of the scoring configuration.
func DefaultWeights() Weights {
	return Weights{
		Version: 1,
		Features: map[string]float64{
			FeatureSkillMatch:      0.30,
			FeatureExperienceMatch: 0.20,
			FeatureInterestMatch:   0.20,
			FeaturePrestige:        0.15,
			FeatureUrgency:         0.10,
			FeatureCompensation:    0.05,
		},
		Tier1Threshold: 0.85,
		Tier2Threshold: 0.50,
		UpdatedAt:      time.Unix(0, 0).UTC(),
	}
}

// Validate checks a weights version for internal consistency.
func (w Weights) Validate() error {
	if w.Version <= 0 {
		return errors.New("weights version must be positive")
	}
	if w.Tier1Threshold <= w.Tier2Threshold {
		return errors.New("tier 1 threshold must exceed tier 2 threshold")
	}
	if w.Tier1Threshold > 1 || w.Tier2Threshold < 0 {
		return errors.New("tier thresholds must lie within [0,1]")
	}
	var sum float64
	for _, name := range FeatureNames {
		v, ok := w.Features[name]
		if !ok {
			return errors.New("missing weight for feature " + name)
		}
		if v < 0 {
			return errors.New("negative weight for feature " + name)
		}
		sum += v
	}
	if sum < 0.99 || sum > 1.01 {
		return errors.New("feature weights must sum to 1.0")
	}
	return nil
}

// clone returns a deep copy so installed versions cannot be mutated through
// a retained map reference.
func (w Weights) clone() Weights {
	features := make(map[string]float64, len(w.Features))
	for k, v := range w.Features {
		features[k] = v
	}
	w.Features = features
	return w
}

// Store holds the active weights version for the whole process. Reads are
// lock-free; installs swap the value atomically.
type Store struct {
	current atomic.Pointer[Weights]
}

// NewStore creates a store seeded with the given version.
func NewStore(w Weights) *Store {
	s := &Store{}
	c := w.clone()
	s.current.Store(&c)
	return s
}

// Current returns the active weights version. The returned value must be
// treated as read-only.
func (s *Store) Current() Weights {
	return *s.current.Load()
}

// Install validates and atomically activates a new weights version. The new
// version number must be strictly greater than the active one.
func (s *Store) Install(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	for {
		cur := s.current.Load()
		if w.Version <= cur.Version {
			return errors.New("weights version must increase")
		}
		c := w.clone()
		if s.current.CompareAndSwap(cur, &c) {
			return nil
		}
	}
}
