// Package resolution implements the normative conflict resolution engine:
// the strategy catalogue, the eight legal-precedence resolution algorithms
// and the orchestrator that applies them. Every strategy is a pure
// computation over in-memory clones of the two input frameworks; a Resolver
// holds only read-only tables after construction and is safe for concurrent
// use without locking.
package resolution

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"normlex/internal/logging"
	"normlex/internal/ranking"
	"normlex/internal/scoring"
	"normlex/pkg/types"
)

const (
	// defaultConfidenceThreshold is the orchestrator's acceptance bar: the
	// first strategy whose confidence exceeds it wins.
	defaultConfidenceThreshold = 0.7
	// defaultRequirementMatchThreshold is the similarity bar above which two
	// requirements in the same category count as the same obligation.
	defaultRequirementMatchThreshold = 0.8
	// fallbackConfidence is the fixed confidence of the authority-based
	// fallback when no catalogue strategy clears the threshold.
	fallbackConfidence = 0.5
)

// Resolver orchestrates conflict resolution between normative frameworks.
type Resolver struct {
	hierarchy           *ranking.Hierarchy
	catalog             map[types.ConflictType][]types.ResolutionStrategy
	similarity          scoring.SimilarityFunc
	confidenceThreshold float64
	requirementMatch    float64
	now                 func() time.Time
	logger              logging.Logger
}

// Option configures a Resolver at construction time.
type Option func(*Resolver)

// WithHierarchy injects a custom authority/jurisdiction hierarchy.
func WithHierarchy(h *ranking.Hierarchy) Option {
	return func(r *Resolver) { r.hierarchy = h }
}

// WithSimilarity injects the text-similarity capability used for
// requirement matching.
func WithSimilarity(fn scoring.SimilarityFunc) Option {
	return func(r *Resolver) { r.similarity = fn }
}

// WithConfidenceThreshold overrides the orchestrator acceptance threshold.
func WithConfidenceThreshold(threshold float64) Option {
	return func(r *Resolver) { r.confidenceThreshold = threshold }
}

// WithRequirementMatchThreshold overrides the same-obligation similarity bar.
func WithRequirementMatchThreshold(threshold float64) Option {
	return func(r *Resolver) { r.requirementMatch = threshold }
}

// WithClock injects the clock used for merged-framework timestamps and
// recency scoring. Tests inject a fixed clock for deterministic output.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger injects the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver builds an immutable resolver value. The precedence tables and
// the strategy catalogue are constructed once here; there is no package
// level mutable state.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		hierarchy:           ranking.NewHierarchy(),
		catalog:             defaultCatalog(),
		similarity:          scoring.JaccardSimilarity,
		confidenceThreshold: defaultConfidenceThreshold,
		requirementMatch:    defaultRequirementMatchThreshold,
		now:                 time.Now,
		logger:              logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hierarchy exposes the resolver's precedence tables to collaborators such
// as the detector.
func (r *Resolver) Hierarchy() *ranking.Hierarchy {
	return r.hierarchy
}

// ResolveConflictAdvanced resolves a conflict between two materialized
// frameworks. It tries the catalogue strategies for the conflict's type in
// order and returns the first result whose confidence exceeds the
// threshold; per-strategy failures mean "try the next one". When nothing
// clears the bar, the authority-based fallback decides with confidence 0.5.
// The only caller-visible error is an unknown conflict type.
func (r *Resolver) ResolveConflictAdvanced(ctx context.Context, conflict *types.NormativeConflict, a, b *types.NormativeFramework) (*types.ConflictResolution, error) {
	candidates, ok := r.catalog[conflict.ConflictType]
	if !ok {
		return nil, &ResolutionError{
			Strategy: "orchestrator",
			Reason:   fmt.Sprintf("no strategies found for conflict type %q", conflict.ConflictType),
		}
	}

	for _, strategy := range candidates {
		result, err := r.applyStrategy(strategy, conflict, a, b)
		if err != nil {
			r.logger.DebugContext(ctx, "strategy failed, trying next",
				"conflict_id", conflict.ID, "strategy", string(strategy), "error", err.Error())
			continue
		}
		if result.ConfidenceScore > r.confidenceThreshold {
			r.logger.InfoContext(ctx, "conflict resolved",
				"conflict_id", conflict.ID,
				"strategy", string(result.StrategyUsed),
				"confidence", result.ConfidenceScore)
			return result, nil
		}
	}

	result := r.fallbackResolution(a, b)
	r.logger.InfoContext(ctx, "conflict resolved by fallback",
		"conflict_id", conflict.ID, "confidence", result.ConfidenceScore)
	return result, nil
}

// fallbackResolution picks the framework issued by the higher authority,
// ties broken toward a.
func (r *Resolver) fallbackResolution(a, b *types.NormativeFramework) *types.ConflictResolution {
	levelA := r.hierarchy.AuthorityLevel(a.Authority)
	levelB := r.hierarchy.AuthorityLevel(b.Authority)

	winner := a
	if levelB > levelA {
		winner = b
	}

	return &types.ConflictResolution{
		ResolvedFramework: winner.Clone(),
		StrategyUsed:      types.StrategyArbitration,
		ConfidenceScore:   fallbackConfidence,
		ResolutionNotes: fmt.Sprintf("no strategy cleared the confidence threshold; defaulted to %q by authority level",
			winner.Title),
		Metadata: map[string]string{
			"authority_level_a": strconv.Itoa(int(levelA)),
			"authority_level_b": strconv.Itoa(int(levelB)),
			"fallback":          "true",
		},
	}
}

// severityFallbacks are the hardcoded strategies used by the summary path
// when the severity-derived index falls outside the catalogue entry.
var severityFallbacks = map[types.ConflictSeverity]types.ResolutionStrategy{
	types.SeverityCritical: types.StrategyLexSuperior,
	types.SeverityHigh:     types.StrategyHarmonization,
	types.SeverityMedium:   types.StrategyContextualization,
	types.SeverityLow:      types.StrategyMediation,
}

// ResolveConflict is the summary path for callers holding only a conflict
// and no materialized framework bodies. It recommends a single strategy by
// severity and returns a synthetic placeholder framework tagged with it.
// No real scores are computed here; this is strategy recommendation without
// materialization, not an equivalent of ResolveConflictAdvanced.
func (r *Resolver) ResolveConflict(ctx context.Context, conflict *types.NormativeConflict) (*types.NormativeFramework, error) {
	if len(conflict.FrameworkIDs) < 2 {
		return nil, &ResolutionError{
			Strategy: "summary",
			Reason:   "conflict references fewer than two frameworks",
		}
	}

	candidates, ok := r.catalog[conflict.ConflictType]
	if !ok {
		return nil, &ResolutionError{
			Strategy: "summary",
			Reason:   fmt.Sprintf("no strategies found for conflict type %q", conflict.ConflictType),
		}
	}

	strategy := r.strategyForSeverity(conflict.Severity, candidates)
	now := r.now().UTC()

	r.logger.InfoContext(ctx, "strategy recommended without materialization",
		"conflict_id", conflict.ID, "strategy", string(strategy))

	return &types.NormativeFramework{
		ID:           "resolution-" + conflict.ID,
		Title:        fmt.Sprintf("Recommended resolution for conflict %s", conflict.ID),
		Description:  fmt.Sprintf("Placeholder framework recommending %s for a %s conflict; framework bodies were not materialized.", strategy, conflict.ConflictType),
		Jurisdiction: types.JurisdictionOrganizational,
		Requirements: []types.Requirement{},
		Tags:         []string{"synthetic", string(strategy)},
		Metadata: map[string]string{
			"conflict_id": conflict.ID,
			"strategy":    string(strategy),
			"mode":        "summary",
		},
		EffectiveDate: now,
		UpdatedAt:     now,
	}, nil
}

// strategyForSeverity indexes the candidate list by severity: critical
// picks the first (most decisive) entry, low the last, with a hardcoded
// per-severity fallback when the index is out of range.
func (r *Resolver) strategyForSeverity(severity types.ConflictSeverity, candidates []types.ResolutionStrategy) types.ResolutionStrategy {
	var idx int
	switch severity {
	case types.SeverityCritical:
		idx = 0
	case types.SeverityHigh:
		idx = 1
	case types.SeverityMedium:
		idx = 2
	case types.SeverityLow:
		idx = len(candidates) - 1
	default:
		idx = len(candidates) - 1
	}

	if idx < 0 || idx >= len(candidates) {
		return severityFallbacks[severity]
	}
	return candidates[idx]
}

// SuggestResolutionStrategies returns the catalogue entry for the
// conflict's type as display strings, in priority order.
func (r *Resolver) SuggestResolutionStrategies(conflict *types.NormativeConflict) ([]string, error) {
	candidates, ok := r.catalog[conflict.ConflictType]
	if !ok {
		return nil, &ResolutionError{
			Strategy: "suggest",
			Reason:   fmt.Sprintf("no strategies found for conflict type %q", conflict.ConflictType),
		}
	}

	names := make([]string, len(candidates))
	for i, s := range candidates {
		names[i] = string(s)
	}
	return names, nil
}

// ApplyResolutionStrategy is a logging-only side-effect hook keyed by a
// strategy name string. The name is parsed into the typed enum at this
// boundary; unrecognized names fail.
func (r *Resolver) ApplyResolutionStrategy(ctx context.Context, conflict *types.NormativeConflict, name string) error {
	strategy, ok := types.ParseResolutionStrategy(name)
	if !ok {
		return &ResolutionError{Strategy: name, Reason: "unknown resolution strategy"}
	}

	r.logger.InfoContext(ctx, "resolution strategy applied",
		"conflict_id", conflict.ID,
		"conflict_type", string(conflict.ConflictType),
		"strategy", string(strategy))
	return nil
}
