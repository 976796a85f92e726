package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel validation errors for externally supplied values.
var (
	ErrMissingID           = errors.New("framework id is required")
	ErrMissingTitle        = errors.New("framework title is required")
	ErrInvalidJurisdiction = errors.New("invalid jurisdiction")
	ErrInvalidConflictType = errors.New("invalid conflict type")
	ErrInvalidSeverity     = errors.New("invalid severity")
)

// ConflictType classifies the tension detected between two frameworks.
type ConflictType string

const (
	// ConflictDirectContradiction marks requirements that directly oppose each other
	ConflictDirectContradiction ConflictType = "direct_contradiction"
	// ConflictImplicit marks tensions inferred from overlapping scope rather than explicit text
	ConflictImplicit ConflictType = "implicit_conflict"
	// ConflictJurisdictionalOverlap marks two frameworks claiming the same territory
	ConflictJurisdictionalOverlap ConflictType = "jurisdictional_overlap"
	// ConflictTemporalInconsistency marks frameworks whose timelines disagree
	ConflictTemporalInconsistency ConflictType = "temporal_inconsistency"
	// ConflictScopeAmbiguity marks unclear boundaries between frameworks
	ConflictScopeAmbiguity ConflictType = "scope_ambiguity"
	// ConflictAuthority marks two issuing bodies of comparable rank in tension
	ConflictAuthority ConflictType = "authority_conflict"
	// ConflictPriorityDispute marks frameworks that both claim precedence
	ConflictPriorityDispute ConflictType = "priority_dispute"
)

// Valid returns true if the conflict type is valid
func (ct ConflictType) Valid() bool {
	switch ct {
	case ConflictDirectContradiction, ConflictImplicit, ConflictJurisdictionalOverlap,
		ConflictTemporalInconsistency, ConflictScopeAmbiguity, ConflictAuthority,
		ConflictPriorityDispute:
		return true
	}
	return false
}

// ConflictSeverity represents the severity level of a conflict
type ConflictSeverity string

const (
	SeverityCritical ConflictSeverity = "critical"
	SeverityHigh     ConflictSeverity = "high"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityLow      ConflictSeverity = "low"
)

// Valid returns true if the severity is valid
func (s ConflictSeverity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Weight returns an ordering weight for sorting conflicts, highest severity
// first.
func (s ConflictSeverity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// NormativeConflict is a detected or asserted tension between two (or more)
// frameworks. It is constructed by a detector and immutable from the
// resolver's point of view.
type NormativeConflict struct {
	ID           string            `json:"id"`
	ConflictType ConflictType      `json:"conflict_type"`
	Severity     ConflictSeverity  `json:"severity"`
	Description  string            `json:"description"`
	Context      map[string]string `json:"context"`
	FrameworkIDs []string          `json:"framework_ids"`
	Confidence   float64           `json:"confidence"`
	DetectedAt   time.Time         `json:"detected_at"`
}

// Validate checks structural invariants on an externally supplied conflict.
func (c *NormativeConflict) Validate() error {
	if !c.ConflictType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidConflictType, c.ConflictType)
	}
	if !c.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, c.Severity)
	}
	if len(c.FrameworkIDs) < 2 {
		return errors.New("conflict must reference at least two frameworks")
	}
	return nil
}

// ResolutionStrategy identifies one of the legal-precedence doctrines the
// engine applies. The enum is used everywhere inside the engine; strings
// appear only at the API boundary through ParseResolutionStrategy.
type ResolutionStrategy string

const (
	// StrategyLexSuperior prefers the framework issued by the higher authority
	StrategyLexSuperior ResolutionStrategy = "lex_superior"
	// StrategyLexPosterior prefers the newer framework
	StrategyLexPosterior ResolutionStrategy = "lex_posterior"
	// StrategyLexSpecialis prefers the more specific framework
	StrategyLexSpecialis ResolutionStrategy = "lex_specialis"
	// StrategyHarmonization merges both frameworks into one superset
	StrategyHarmonization ResolutionStrategy = "harmonization"
	// StrategyContextualization prefers the framework more relevant to the conflict context
	StrategyContextualization ResolutionStrategy = "contextualization"
	// StrategyDelegation defers from international instruments to the local one
	StrategyDelegation ResolutionStrategy = "delegation"
	// StrategyArbitration applies a multi-factor score as a last resort
	StrategyArbitration ResolutionStrategy = "arbitration"
	// StrategyMediation keeps common ground plus each side's unique content
	StrategyMediation ResolutionStrategy = "mediation"
)

// Valid returns true if the strategy is valid
func (rs ResolutionStrategy) Valid() bool {
	switch rs {
	case StrategyLexSuperior, StrategyLexPosterior, StrategyLexSpecialis,
		StrategyHarmonization, StrategyContextualization, StrategyDelegation,
		StrategyArbitration, StrategyMediation:
		return true
	}
	return false
}

// ParseResolutionStrategy converts an API-supplied strategy name to the
// typed enum. This is the single string-to-enum boundary.
func ParseResolutionStrategy(name string) (ResolutionStrategy, bool) {
	rs := ResolutionStrategy(name)
	return rs, rs.Valid()
}

// ConflictResolution is the engine's output: a candidate resolved framework
// with the strategy that produced it and the engine's confidence.
// Confidence semantics: >=0.9 strong textual/temporal signal, 0.7-0.89
// moderate signal, <0.7 weak or fallback.
type ConflictResolution struct {
	ResolvedFramework NormativeFramework `json:"resolved_framework"`
	StrategyUsed      ResolutionStrategy `json:"strategy_used"`
	ConfidenceScore   float64            `json:"confidence_score"`
	ResolutionNotes   string             `json:"resolution_notes"`
	Metadata          map[string]string  `json:"metadata"`
}
