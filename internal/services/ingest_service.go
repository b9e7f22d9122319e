// Package services – IngestService
//
// This file implements the opportunity store and deduplicator. Raw records
// from any source are canonicalized, fingerprinted, and either inserted or
// merged into the existing row carrying the same fingerprint. Merging is
// non-destructive: the source list grows by union, the earliest discovery
// time wins, and mutable descriptive fields take the latest value.
//
// Concurrency: ingestion of the same fingerprint from different sources is
// serialized through a per-fingerprint lock, and an insert losing a race
// against another process falls back to re-fetch-and-merge, so a duplicate
// row is never created.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/growthengine/opportunity-engine/internal/domain"
	"github.com/growthengine/opportunity-engine/internal/repo"
)

// RawOpportunity is the ingestion input as delivered by an external scraper
// or feed. Title, Organization, and Source are required.
type RawOpportunity struct {
	Title        string     `json:"title"`
	Organization string     `json:"organization"`
	Source       string     `json:"source"`
	Type         string     `json:"type"`
	URL          string     `json:"url"`
	Description  string     `json:"description"`
	Location     string     `json:"location"`
	Tags         []string   `json:"tags"`
	Skills       []string   `json:"skills"`
	YearsNeeded  int        `json:"years_needed"`
	SalaryMin    *float64   `json:"salary_min,omitempty"`
	SalaryMax    *float64   `json:"salary_max,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	DiscoveredAt *time.Time `json:"discovered_at,omitempty"`
}

// IngestService canonicalizes and deduplicates raw opportunities.
type IngestService struct {
	DB *gorm.DB

	// locks serializes concurrent ingestion per fingerprint.
	locks sync.Map // fingerprint → *sync.Mutex

	titleCaser cases.Caser
	caserOnce  sync.Once
}

// Ingest validates, canonicalizes, and stores a raw opportunity. When the
// fingerprint already exists the record is merged and isNew is false. Never
// fails on duplicate detection; a ValidationError is returned for missing
// required fields.
func (s *IngestService) Ingest(ctx context.Context, raw RawOpportunity) (*domain.Opportunity, bool, error) {
	if err := validateRaw(raw); err != nil {
		return nil, false, err
	}

	fp := domain.Fingerprint(raw.Title, raw.Organization, raw.URL, raw.Description)

	mu := s.lockFor(fp)
	mu.Lock()
	defer mu.Unlock()

	// Insert-or-merge loop: a concurrent insert from another process shows
	// up as a duplicate fingerprint, in which case we re-read and merge.
	for {
		existing, err := repo.GetOpportunityByFingerprint(ctx, s.DB, fp)
		switch {
		case err == nil:
			merged := mergeOpportunity(existing, raw)
			if err := repo.SaveOpportunity(ctx, s.DB, merged); err != nil {
				return nil, false, err
			}
			log.Debug().
				Str("opportunity_id", merged.ID).
				Str("source", raw.Source).
				Msg("merged duplicate opportunity")
			return merged, false, nil

		case errors.Is(err, repo.ErrNotFound):
			o := s.canonicalize(raw, fp)
			createErr := repo.CreateOpportunity(ctx, s.DB, o)
			if createErr == nil {
				return o, true, nil
			}
			if errors.Is(createErr, repo.ErrDuplicate) {
				continue // lost an insert race, merge instead
			}
			return nil, false, createErr

		default:
			return nil, false, err
		}
	}
}

// ArchiveStale soft-archives opportunities discovered before the retention
// window. Returns the number of rows archived.
func (s *IngestService) ArchiveStale(ctx context.Context, retention time.Duration) (int64, error) {
	now := time.Now().UTC()
	return repo.ArchiveOpportunitiesBefore(ctx, s.DB, now.Add(-retention), now)
}

func (s *IngestService) lockFor(fingerprint string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(fingerprint, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// canonicalize builds the stored record from a raw one: title-cased
// organization, trimmed fields, deduplicated tag/skill lists.
func (s *IngestService) canonicalize(raw RawOpportunity, fingerprint string) *domain.Opportunity {
	s.caserOnce.Do(func() { s.titleCaser = cases.Title(language.English) })

	discovered := time.Now().UTC()
	if raw.DiscoveredAt != nil {
		discovered = raw.DiscoveredAt.UTC()
	}
	typ := strings.ToLower(strings.TrimSpace(raw.Type))
	if typ == "" {
		typ = "job"
	}

	return &domain.Opportunity{
		ID:           uuid.NewString(),
		Fingerprint:  fingerprint,
		Type:         typ,
		Title:        strings.TrimSpace(raw.Title),
		Organization: s.titleCaser.String(strings.TrimSpace(raw.Organization)),
		CanonicalURL: domain.CanonicalURL(raw.URL),
		Description:  strings.TrimSpace(raw.Description),
		Location:     strings.TrimSpace(raw.Location),
		Sources:      []string{strings.ToLower(strings.TrimSpace(raw.Source))},
		Tags:         dedupeLower(raw.Tags),
		Skills:       dedupeLower(raw.Skills),
		YearsNeeded:  raw.YearsNeeded,
		SalaryMin:    raw.SalaryMin,
		SalaryMax:    raw.SalaryMax,
		Deadline:     raw.Deadline,
		DiscoveredAt: discovered,
	}
}

// mergeOpportunity folds a duplicate raw record into the stored one:
// source-list union, earliest discovery time, latest-wins for mutable fields
// that the new record actually provides.
func mergeOpportunity(existing *domain.Opportunity, raw RawOpportunity) *domain.Opportunity {
	src := strings.ToLower(strings.TrimSpace(raw.Source))
	found := false
	for _, s := range existing.Sources {
		if s == src {
			found = true
			break
		}
	}
	if !found {
		existing.Sources = append(existing.Sources, src)
		sort.Strings(existing.Sources)
	}

	if raw.DiscoveredAt != nil && raw.DiscoveredAt.UTC().Before(existing.DiscoveredAt) {
		existing.DiscoveredAt = raw.DiscoveredAt.UTC()
	}

	// Latest-wins for fields the duplicate actually carries.
	if d := strings.TrimSpace(raw.Description); d != "" {
		existing.Description = d
	}
	if l := strings.TrimSpace(raw.Location); l != "" {
		existing.Location = l
	}
	if raw.Deadline != nil {
		existing.Deadline = raw.Deadline
	}
	if raw.SalaryMin != nil {
		existing.SalaryMin = raw.SalaryMin
	}
	if raw.SalaryMax != nil {
		existing.SalaryMax = raw.SalaryMax
	}
	if len(raw.Tags) > 0 {
		existing.Tags = unionLower(existing.Tags, raw.Tags)
	}
	if len(raw.Skills) > 0 {
		existing.Skills = unionLower(existing.Skills, raw.Skills)
	}
	return existing
}

func validateRaw(raw RawOpportunity) error {
	var missing []string
	if strings.TrimSpace(raw.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(raw.Organization) == "" {
		missing = append(missing, "organization")
	}
	if strings.TrimSpace(raw.Source) == "" {
		missing = append(missing, "source")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func dedupeLower(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		t := strings.ToLower(strings.TrimSpace(s))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func unionLower(a, b []string) []string {
	return dedupeLower(append(append([]string{}, a...), b...))
}
