// Package scoring implements the fit scoring and tiering engine.
//
// Score is a pure function: the same (profile, opportunity, weights, now)
// inputs always produce the identical result. Determinism lets tests
// reproduce scores exactly, and the outcome feedback adapter can
// attribute outcome deltas to the specific weights version an application
// was scored with. The clock is an explicit input (deadline urgency depends
// on it), so callers pass a fixed instant per scoring pass.
package scoring

import (
	"strings"
	"time"
	"unicode"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

// Result carries the combined score, the assigned tier, and the per-feature
// breakdown persisted with the application for later outcome attribution.
type Result struct {
	Score    float64
	Tier     int
	Features map[string]float64
}

// Score evaluates how well an opportunity fits a profile under the given
// weights version. The combined score is a weighted sum of normalized
// feature scores, each in [0,1]; the tier follows the thresholds carried by
// the weights version (score ≥ Tier1Threshold → 1, ≥ Tier2Threshold → 2,
// else 3).
func Score(p domain.Profile, o domain.Opportunity, w Weights, now time.Time) Result {
	features := map[string]float64{
		FeatureSkillMatch:      skillMatch(o.Skills, p.Skills),
		FeatureExperienceMatch: experienceMatch(o.YearsNeeded, p.ExperienceYears, o.Title, p.Roles),
		FeatureInterestMatch:   interestMatch(o.Tags, p.Interests, p.CareerGoals, o.Description),
		FeaturePrestige:        prestigeScore(o.Organization),
		FeatureUrgency:         urgencyScore(o.Deadline, now),
		FeatureCompensation:    compensationScore(o.SalaryMax, p.MinSalary),
	}

	// Accumulate in the fixed feature order so float addition stays
	// bit-for-bit reproducible.
	var score float64
	for _, name := range FeatureNames {
		score += features[name] * w.Features[name]
	}
	score = clamp01(score)

	tier := 3
	switch {
	case score >= w.Tier1Threshold:
		tier = 1
	case score >= w.Tier2Threshold:
		tier = 2
	}

	return Result{Score: score, Tier: tier, Features: features}
}

// skillMatch scores required-skill coverage: full credit for exact matches,
// half credit for partial (substring) matches, and a penalty per skill that
// is missing entirely.
func skillMatch(required, held []string) float64 {
	if len(required) == 0 {
		return 1.0 // no requirements, perfect match
	}
	reqs := normalizeAll(required)
	have := normalizeAll(held)

	var exact, partial int
	for _, r := range reqs {
		if containsExact(have, r) {
			exact++
			continue
		}
		if containsPartial(have, r) {
			partial++
		}
	}

	n := float64(len(reqs))
	missing := n - float64(exact) - float64(partial)
	score := float64(exact)/n + 0.5*float64(partial)/n - 0.2*missing/n
	return clamp01(score)
}

// experienceMatch blends a years-of-experience band with role-title
// similarity (0.7 / 0.3).
func experienceMatch(requiredYears, profileYears int, title string, roles []string) float64 {
	yearsScore := 1.0
	if requiredYears > 0 {
		ratio := float64(profileYears) / float64(requiredYears)
		switch {
		case ratio >= 1.0:
			yearsScore = 1.0
		case ratio >= 0.7:
			yearsScore = 0.8
		case ratio >= 0.5:
			yearsScore = 0.5
		default:
			yearsScore = 0.3
		}
	}

	roleScore := 1.0
	keywords := tokenize(title)
	if len(keywords) > 0 && len(roles) > 0 {
		matches := 0
		for _, kw := range keywords {
			for _, role := range roles {
				if strings.Contains(strings.ToLower(role), kw) {
					matches++
					break
				}
			}
		}
		roleScore = clamp01(float64(matches) / float64(len(keywords)))
	}

	return 0.7*yearsScore + 0.3*roleScore
}

// interestMatch measures alignment between the opportunity's tags/description
// and the profile's interests and stated career goals. Tag overlap is
// bidirectional-substring; goal alignment rewards long goal keywords found in
// the description.
func interestMatch(tags, interests []string, goals, description string) float64 {
	if len(tags) == 0 && len(interests) == 0 {
		return 0.5 // neutral when there is nothing to compare
	}

	tagScore := 0.0
	if len(tags) > 0 && len(interests) > 0 {
		ts := normalizeAll(tags)
		is := normalizeAll(interests)
		matches := 0
		for _, t := range ts {
			for _, i := range is {
				if strings.Contains(t, i) || strings.Contains(i, t) {
					matches++
					break
				}
			}
		}
		tagScore = clamp01(float64(matches) / float64(len(ts)))
	}

	goalScore := 0.5
	if goals != "" && description != "" {
		desc := strings.ToLower(description)
		matches := 0
		for _, kw := range tokenize(goals) {
			if len(kw) > 4 && strings.Contains(desc, kw) {
				matches++
			}
		}
		goalScore = clamp01(0.5 + 0.1*float64(matches))
	}

	return (tagScore + goalScore) / 2
}

// Organizations and programs treated as high-prestige signals. Matching is
// substring-based on the normalized organization name.
var (
	topOrganizations = []string{
		"google", "deepmind", "openai", "meta", "apple", "microsoft",
		"amazon", "nvidia", "stanford", "mit", "berkeley", "harvard",
		"cambridge", "oxford",
	}
	topPrograms = []string{
		"y combinator", "techstars", "rhodes", "fulbright", "marshall",
		"thiel fellowship",
	}
)

func prestigeScore(organization string) float64 {
	org := strings.ToLower(organization)
	for _, t := range topOrganizations {
		if strings.Contains(org, t) {
			return 0.95
		}
	}
	for _, p := range topPrograms {
		if strings.Contains(org, p) {
			return 0.90
		}
	}
	return 0.5
}

// urgencyScore maps deadline proximity to a band: expired 0, ≤3d critical,
// ≤7d urgent, ≤14d soon, ≤30d normal, otherwise low. No deadline scores low.
func urgencyScore(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0.3
	}
	days := int(deadline.Sub(now).Hours() / 24)
	switch {
	case deadline.Before(now):
		return 0.0
	case days <= 3:
		return 1.0
	case days <= 7:
		return 0.9
	case days <= 14:
		return 0.7
	case days <= 30:
		return 0.5
	default:
		return 0.3
	}
}

func compensationScore(salaryMax, minAcceptable *float64) float64 {
	if salaryMax == nil || minAcceptable == nil {
		return 0.5 // neutral when unknown
	}
	switch {
	case *salaryMax >= *minAcceptable*1.2:
		return 1.0
	case *salaryMax >= *minAcceptable:
		return 0.8
	case *salaryMax >= *minAcceptable*0.9:
		return 0.5
	default:
		return 0.3
	}
}

// --- helpers ---

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.ToLower(strings.TrimSpace(s)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsExact(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

func containsPartial(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.Contains(h, needle) || strings.Contains(needle, h) {
			return true
		}
	}
	return false
}

// tokenize splits text into lowercase word tokens (letters and digits only).
func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		toks = append(toks, cur.String())
	}
	return toks
}
