package resolution

import (
	"fmt"
	"sort"
	"strconv"

	"normlex/internal/scoring"
	"normlex/pkg/types"
)

// Per-strategy confidence levels. Strict winners on strong signals score
// high; ties degrade to a weaker confidence instead of erroring.
const (
	confidenceLexSuperiorWin   = 0.9
	confidenceLexSuperiorTie   = 0.6
	confidenceLexPosteriorDate = 0.85
	confidenceLexPosteriorTie  = 0.75
	confidenceLexSpecialisWin  = 0.8
	confidenceLexSpecialisTie  = 0.5
	confidenceHarmonization    = 0.75
	confidenceContextualWin    = 0.8
	confidenceContextualTie    = 0.6
	confidenceDelegation       = 0.7
	confidenceArbitration      = 0.65
	confidenceMediation        = 0.7
)

// applyStrategy dispatches a single strategy over the conflict and the two
// framework bodies. Strategies are total functions over well-formed
// frameworks; the error return exists for defensive coverage of the closed
// enum.
func (r *Resolver) applyStrategy(strategy types.ResolutionStrategy, conflict *types.NormativeConflict, a, b *types.NormativeFramework) (*types.ConflictResolution, error) {
	switch strategy {
	case types.StrategyLexSuperior:
		return r.applyLexSuperior(a, b), nil
	case types.StrategyLexPosterior:
		return r.applyLexPosterior(a, b), nil
	case types.StrategyLexSpecialis:
		return r.applyLexSpecialis(a, b), nil
	case types.StrategyHarmonization:
		return r.applyHarmonization(a, b), nil
	case types.StrategyContextualization:
		return r.applyContextualization(conflict, a, b), nil
	case types.StrategyDelegation:
		return r.applyDelegation(a, b), nil
	case types.StrategyArbitration:
		return r.applyArbitration(a, b), nil
	case types.StrategyMediation:
		return r.applyMediation(a, b), nil
	default:
		return nil, &ResolutionError{
			Strategy: string(strategy),
			Reason:   "strategy not implemented",
		}
	}
}

// applyLexSuperior prefers the framework issued by the higher authority.
// Authority rank weighs double the jurisdiction rank. Ties go to a.
func (r *Resolver) applyLexSuperior(a, b *types.NormativeFramework) *types.ConflictResolution {
	scoreA := 2*int(r.hierarchy.AuthorityLevel(a.Authority)) + int(r.hierarchy.JurisdictionLevel(a.Jurisdiction))
	scoreB := 2*int(r.hierarchy.AuthorityLevel(b.Authority)) + int(r.hierarchy.JurisdictionLevel(b.Jurisdiction))

	winner, confidence := a, confidenceLexSuperiorWin
	switch {
	case scoreA > scoreB:
		winner = a
	case scoreB > scoreA:
		winner = b
	default:
		winner, confidence = a, confidenceLexSuperiorTie
	}

	return &types.ConflictResolution{
		ResolvedFramework: winner.Clone(),
		StrategyUsed:      types.StrategyLexSuperior,
		ConfidenceScore:   confidence,
		ResolutionNotes: fmt.Sprintf("%q prevails by authority: %s (rank %d) over %s (rank %d)",
			winner.Title, a.Authority, scoreA, b.Authority, scoreB),
		Metadata: map[string]string{
			"hierarchy_score_a": strconv.Itoa(scoreA),
			"hierarchy_score_b": strconv.Itoa(scoreB),
		},
	}
}

// applyLexPosterior prefers the newer framework by effective date, falling
// through to the update timestamp on a tie. Both equal means a wins at the
// tiebreak confidence.
func (r *Resolver) applyLexPosterior(a, b *types.NormativeFramework) *types.ConflictResolution {
	winner, confidence, basis := a, confidenceLexPosteriorDate, "effective_date"
	switch {
	case a.EffectiveDate.After(b.EffectiveDate):
		winner = a
	case b.EffectiveDate.After(a.EffectiveDate):
		winner = b
	case b.UpdatedAt.After(a.UpdatedAt):
		winner, confidence, basis = b, confidenceLexPosteriorTie, "updated_at"
	default:
		winner, confidence, basis = a, confidenceLexPosteriorTie, "updated_at"
	}

	return &types.ConflictResolution{
		ResolvedFramework: winner.Clone(),
		StrategyUsed:      types.StrategyLexPosterior,
		ConfidenceScore:   confidence,
		ResolutionNotes:   fmt.Sprintf("%q prevails as the more recent instrument (decided by %s)", winner.Title, basis),
		Metadata: map[string]string{
			"effective_date_a": a.EffectiveDate.Format(timeLayout),
			"effective_date_b": b.EffectiveDate.Format(timeLayout),
			"updated_at_a":     a.UpdatedAt.Format(timeLayout),
			"updated_at_b":     b.UpdatedAt.Format(timeLayout),
			"decided_by":       basis,
		},
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

// applyLexSpecialis prefers the more specific framework. Ties go to a with
// weak confidence.
func (r *Resolver) applyLexSpecialis(a, b *types.NormativeFramework) *types.ConflictResolution {
	scoreA := scoring.Specificity(a)
	scoreB := scoring.Specificity(b)

	winner, confidence := a, confidenceLexSpecialisWin
	switch {
	case scoreA > scoreB:
		winner = a
	case scoreB > scoreA:
		winner = b
	default:
		winner, confidence = a, confidenceLexSpecialisTie
	}

	return &types.ConflictResolution{
		ResolvedFramework: winner.Clone(),
		StrategyUsed:      types.StrategyLexSpecialis,
		ConfidenceScore:   confidence,
		ResolutionNotes:   fmt.Sprintf("%q prevails as the more specific instrument", winner.Title),
		Metadata: map[string]string{
			"specificity_a": formatScore(scoreA),
			"specificity_b": formatScore(scoreB),
		},
	}
}

// applyHarmonization always succeeds: it clones a, appends b's requirements
// verbatim, merges the tag sets (deduplicated and sorted) and stamps a
// fresh update time.
func (r *Resolver) applyHarmonization(a, b *types.NormativeFramework) *types.ConflictResolution {
	merged := a.Clone()
	merged.Title = fmt.Sprintf("Harmonized: %s + %s", a.Title, b.Title)
	merged.Description = fmt.Sprintf("Harmonized framework merging the requirements of %q and %q.", a.Title, b.Title)

	for i := range b.Requirements {
		merged.Requirements = append(merged.Requirements, b.Requirements[i].Clone())
	}

	merged.Tags = mergeTags(a.Tags, b.Tags)
	merged.Metadata["harmonized_from"] = a.ID + "," + b.ID
	merged.UpdatedAt = r.now().UTC()

	return &types.ConflictResolution{
		ResolvedFramework: merged,
		StrategyUsed:      types.StrategyHarmonization,
		ConfidenceScore:   confidenceHarmonization,
		ResolutionNotes:   fmt.Sprintf("merged %d requirements from %q into %q", len(b.Requirements), b.Title, a.Title),
		Metadata: map[string]string{
			"source_a": a.ID,
			"source_b": b.ID,
		},
	}
}

// mergeTags returns the deduplicated, sorted union of two tag sets.
func mergeTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]string, 0, len(a)+len(b))
	for _, tag := range a {
		if !seen[tag] {
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	for _, tag := range b {
		if !seen[tag] {
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	sort.Strings(merged)
	return merged
}

// applyContextualization prefers the framework more relevant to the
// conflict's context map. Ties go to a.
func (r *Resolver) applyContextualization(conflict *types.NormativeConflict, a, b *types.NormativeFramework) *types.ConflictResolution {
	scoreA := scoring.ContextRelevance(a, conflict.Context)
	scoreB := scoring.ContextRelevance(b, conflict.Context)

	winner, confidence := a, confidenceContextualWin
	switch {
	case scoreA > scoreB:
		winner = a
	case scoreB > scoreA:
		winner = b
	default:
		winner, confidence = a, confidenceContextualTie
	}

	return &types.ConflictResolution{
		ResolvedFramework: winner.Clone(),
		StrategyUsed:      types.StrategyContextualization,
		ConfidenceScore:   confidence,
		ResolutionNotes:   fmt.Sprintf("%q prevails as the more context-relevant instrument", winner.Title),
		Metadata: map[string]string{
			"context_relevance_a": formatScore(scoreA),
			"context_relevance_b": formatScore(scoreB),
		},
	}
}

// applyDelegation defers from an international instrument to the more local
// one, annotating the result. When neither side is international the
// default is a.
func (r *Resolver) applyDelegation(a, b *types.NormativeFramework) *types.ConflictResolution {
	var resolved types.NormativeFramework
	var notes string

	switch {
	case a.Jurisdiction == types.JurisdictionInternational:
		resolved = b.Clone()
		resolved.Description += fmt.Sprintf(" [Delegated from international instrument %q]", a.Title)
		notes = fmt.Sprintf("international instrument %q delegates to %q", a.Title, b.Title)
	case b.Jurisdiction == types.JurisdictionInternational:
		resolved = a.Clone()
		resolved.Description += fmt.Sprintf(" [Delegated from international instrument %q]", b.Title)
		notes = fmt.Sprintf("international instrument %q delegates to %q", b.Title, a.Title)
	default:
		resolved = a.Clone()
		notes = fmt.Sprintf("no international instrument involved; defaulting to %q", a.Title)
	}

	return &types.ConflictResolution{
		ResolvedFramework: resolved,
		StrategyUsed:      types.StrategyDelegation,
		ConfidenceScore:   confidenceDelegation,
		ResolutionNotes:   notes,
		Metadata: map[string]string{
			"jurisdiction_a": string(a.Jurisdiction),
			"jurisdiction_b": string(b.Jurisdiction),
		},
	}
}

// applyArbitration picks the higher multi-factor arbitration score. The
// strict comparison means ties go to b; kept for compatibility with
// existing resolution output.
func (r *Resolver) applyArbitration(a, b *types.NormativeFramework) *types.ConflictResolution {
	now := r.now()
	scoreA := scoring.Arbitration(a, r.hierarchy, now)
	scoreB := scoring.Arbitration(b, r.hierarchy, now)

	winner := b
	if scoreA > scoreB {
		winner = a
	}

	return &types.ConflictResolution{
		ResolvedFramework: winner.Clone(),
		StrategyUsed:      types.StrategyArbitration,
		ConfidenceScore:   confidenceArbitration,
		ResolutionNotes:   fmt.Sprintf("%q prevails by arbitration score (%.3f vs %.3f)", winner.Title, scoreA, scoreB),
		Metadata: map[string]string{
			"arbitration_score_a": formatScore(scoreA),
			"arbitration_score_b": formatScore(scoreB),
		},
	}
}

// applyMediation builds a balanced merge on a's header: the obligations the
// two frameworks share (a's copy), plus each side's unique requirements.
func (r *Resolver) applyMediation(a, b *types.NormativeFramework) *types.ConflictResolution {
	common, uniqueA, uniqueB := r.partitionRequirements(a.Requirements, b.Requirements)

	mediated := a.Clone()
	mediated.Title = fmt.Sprintf("Mediated: %s / %s", a.Title, b.Title)
	mediated.Description = fmt.Sprintf("Mediated framework preserving the common ground of %q and %q plus each side's unique requirements.", a.Title, b.Title)

	requirements := make([]types.Requirement, 0, len(common)+len(uniqueA)+len(uniqueB))
	requirements = append(requirements, common...)
	requirements = append(requirements, uniqueA...)
	requirements = append(requirements, uniqueB...)
	mediated.Requirements = requirements
	mediated.UpdatedAt = r.now().UTC()

	return &types.ConflictResolution{
		ResolvedFramework: mediated,
		StrategyUsed:      types.StrategyMediation,
		ConfidenceScore:   confidenceMediation,
		ResolutionNotes: fmt.Sprintf("mediated merge: %d common, %d unique to %q, %d unique to %q",
			len(common), len(uniqueA), a.Title, len(uniqueB), b.Title),
		Metadata: map[string]string{
			"common_requirements":   strconv.Itoa(len(common)),
			"unique_requirements_a": strconv.Itoa(len(uniqueA)),
			"unique_requirements_b": strconv.Itoa(len(uniqueB)),
		},
	}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', 3, 64)
}
