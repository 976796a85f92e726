// Package scoring implements the pure scoring functions the resolution
// strategies rank frameworks with: specificity, context relevance and the
// multi-factor arbitration score. All functions are side-effect free
// computations over a single framework.
package scoring

import (
	"strings"
	"time"

	"normlex/internal/ranking"
	"normlex/pkg/types"
)

// SimilarityFunc scores the similarity of two texts on a normalized [0,1]
// scale. The engine treats text similarity as an injected capability so the
// resolution logic stays testable with a stub.
type SimilarityFunc func(a, b string) float64

// Specificity scores how narrowly tailored a framework is. More tags,
// conditions, validation rules and metadata mean a more specific
// instrument; narrow jurisdictions earn a flat bonus.
func Specificity(f *types.NormativeFramework) float64 {
	score := 0.1 * float64(len(f.Tags))

	for i := range f.Requirements {
		req := &f.Requirements[i]
		score += 0.2 * float64(len(req.Conditions))
		score += 0.15 * float64(len(req.ValidationRules))
	}

	if len(f.Metadata) > 0 {
		score += 0.05 * float64(len(f.Metadata))
	}

	score += jurisdictionSpecificityBonus(f.Jurisdiction)
	return score
}

func jurisdictionSpecificityBonus(j types.Jurisdiction) float64 {
	switch j {
	case types.JurisdictionDepartmental, types.JurisdictionOrganizational:
		return 2.0
	case types.JurisdictionSectoral:
		return 1.5
	case types.JurisdictionLocal:
		return 1.0
	case types.JurisdictionRegional:
		return 0.5
	default:
		return 0
	}
}

// ContextRelevance scores how well a framework matches the key/value
// context attached to a conflict. Matches accumulate: an exact metadata
// match, a tag containing the value and a description mention all count for
// the same pair.
func ContextRelevance(f *types.NormativeFramework, context map[string]string) float64 {
	score := 0.0

	for key, value := range context {
		if f.Metadata[key] == value {
			score += 1.0
		}
		for _, tag := range f.Tags {
			if strings.Contains(tag, value) {
				score += 0.5
				break
			}
		}
		if strings.Contains(f.Description, value) {
			score += 0.3
		}
	}

	return score
}

// Arbitration computes the last-resort multi-factor score: weighted
// authority and jurisdiction rank, requirement volume, an activity bonus
// and a recency bonus that decays with the framework's age. Frameworks
// effective in the future get no recency bonus, not a penalty.
func Arbitration(f *types.NormativeFramework, h *ranking.Hierarchy, now time.Time) float64 {
	score := 0.3 * float64(h.AuthorityLevel(f.Authority))
	score += 0.2 * float64(h.JurisdictionLevel(f.Jurisdiction))
	score += 0.1 * float64(len(f.Requirements))

	if f.IsActive(now) {
		score += 1.0
	}

	ageDays := now.Sub(f.EffectiveDate).Hours() / 24
	if ageDays > 0 {
		score += (1.0 / (1.0 + ageDays/365.0)) * 0.2
	}

	return score
}
