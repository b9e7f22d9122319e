// Profile source.
//
// Profiles are external inputs; this file provides the narrow read interface
// the orchestrator consumes plus a YAML-backed implementation for
// deployments that ship profiles as configuration.
package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// ProfileSource resolves the profile for a user.
type ProfileSource interface {
	Profile(userID string) (domain.Profile, bool)
	// UserIDs lists every known user, used to fan applications out on
	// ingestion.
	UserIDs() []string
}

// StaticProfiles is an immutable, map-backed ProfileSource.
type StaticProfiles struct {
	byUser map[string]domain.Profile
	order  []string
}

// NewStaticProfiles builds a source from a fixed set of profiles.
func NewStaticProfiles(profiles []domain.Profile) *StaticProfiles {
	s := &StaticProfiles{byUser: make(map[string]domain.Profile, len(profiles))}
	for _, p := range profiles {
		if _, seen := s.byUser[p.UserID]; !seen {
			s.order = append(s.order, p.UserID)
		}
		s.byUser[p.UserID] = p
	}
	return s
}

// Profile implements ProfileSource.
func (s *StaticProfiles) Profile(userID string) (domain.Profile, bool) {
	p, ok := s.byUser[userID]
	return p, ok
}

// UserIDs implements ProfileSource. Order follows the configuration file.
func (s *StaticProfiles) UserIDs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

type profilesFile struct {
	Profiles []domain.Profile `yaml:"profiles"`
}

// LoadProfiles reads a YAML profiles file:
//
//	profiles:
//	  - user_id: u-1
//	    skills: [go, distributed systems]
//	    experience_years: 6
//	    interests: [infrastructure]
func LoadProfiles(path string) (*StaticProfiles, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f profilesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, fmt.Errorf("profiles file %s defines no profiles", path)
	}
	for i, p := range f.Profiles {
		if p.UserID == "" {
			return nil, fmt.Errorf("profiles file %s: entry %d has no user_id", path, i)
		}
	}
	return NewStaticProfiles(f.Profiles), nil
}
