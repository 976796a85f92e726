// Package detection implements pattern and keyword based conflict detection
// over pairs of normative frameworks. It is deliberately shallow: no
// natural-language understanding, just modal-keyword opposition, metadata
// comparison and token similarity. Detected conflicts feed the resolution
// engine.
package detection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"normlex/internal/ranking"
	"normlex/internal/scoring"
	"normlex/pkg/types"
)

// DetectionResult contains the outcome of a detection pass.
type DetectionResult struct {
	TotalFrameworks int                       `json:"total_frameworks"`
	ConflictsFound  int                       `json:"conflicts_found"`
	Conflicts       []types.NormativeConflict `json:"conflicts"`
	AnalysisTime    time.Time                 `json:"analysis_time"`
	ProcessingTime  string                    `json:"processing_time"`
}

// Detector compares framework pairs and emits normative conflicts.
type Detector struct {
	minConfidence float64
	similarity    scoring.SimilarityFunc
	hierarchy     *ranking.Hierarchy
	now           func() time.Time
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinConfidence overrides the confidence floor below which detected
// conflicts are discarded.
func WithMinConfidence(min float64) Option {
	return func(d *Detector) { d.minConfidence = min }
}

// WithSimilarity injects the text-similarity capability.
func WithSimilarity(fn scoring.SimilarityFunc) Option {
	return func(d *Detector) { d.similarity = fn }
}

// WithHierarchy injects the authority/jurisdiction precedence tables.
func WithHierarchy(h *ranking.Hierarchy) Option {
	return func(d *Detector) { d.hierarchy = h }
}

// WithClock injects the clock stamped onto detected conflicts.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// NewDetector creates a conflict detector with default thresholds.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		minConfidence: 0.6,
		similarity:    scoring.JaccardSimilarity,
		hierarchy:     ranking.NewHierarchy(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectConflicts analyzes every framework pair and returns the conflicts
// that clear the confidence floor, ordered by severity then confidence.
func (d *Detector) DetectConflicts(ctx context.Context, frameworks []types.NormativeFramework) (*DetectionResult, error) {
	start := d.now()

	result := &DetectionResult{
		TotalFrameworks: len(frameworks),
		Conflicts:       []types.NormativeConflict{},
		AnalysisTime:    start,
	}

	if len(frameworks) < 2 {
		result.ProcessingTime = time.Since(start).String()
		return result, nil
	}

	var conflicts []types.NormativeConflict
	for i := range frameworks {
		for j := i + 1; j < len(frameworks); j++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			conflicts = append(conflicts, d.analyzePair(&frameworks[i], &frameworks[j])...)
		}
	}

	filtered := conflicts[:0]
	for i := range conflicts {
		if conflicts[i].Confidence >= d.minConfidence {
			filtered = append(filtered, conflicts[i])
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Severity != filtered[j].Severity {
			return filtered[i].Severity.Weight() > filtered[j].Severity.Weight()
		}
		return filtered[i].Confidence > filtered[j].Confidence
	})

	result.Conflicts = filtered
	result.ConflictsFound = len(filtered)
	result.ProcessingTime = time.Since(start).String()
	return result, nil
}

// analyzePair runs every check against one framework pair.
func (d *Detector) analyzePair(a, b *types.NormativeFramework) []types.NormativeConflict {
	var conflicts []types.NormativeConflict

	checks := []func(a, b *types.NormativeFramework) *types.NormativeConflict{
		d.checkDirectContradiction,
		d.checkJurisdictionalOverlap,
		d.checkTemporalInconsistency,
		d.checkAuthorityConflict,
		d.checkScopeAmbiguity,
		d.checkPriorityDispute,
		d.checkImplicitConflict,
	}

	for _, check := range checks {
		if c := check(a, b); c != nil {
			conflicts = append(conflicts, *c)
		}
	}

	return conflicts
}

// modalOppositions pairs a permissive modal term with its prohibitive
// counterpart. Text that takes one side of a pair opposes text taking the
// other.
var modalOppositions = [][2]string{
	{"shall", "shall not"},
	{"must", "must not"},
	{"permitted", "prohibited"},
	{"allowed", "forbidden"},
	{"mandatory", "optional"},
	{"required", "exempt"},
	{"opt-in", "opt-out"},
}

// opposes reports whether two texts take opposite sides of a modal pair.
// The negative form is checked first so "shall not" is never misread as an
// occurrence of "shall".
func opposes(textA, textB string) bool {
	la := strings.ToLower(textA)
	lb := strings.ToLower(textB)

	for _, pair := range modalOppositions {
		pos, neg := pair[0], pair[1]
		aPositive := strings.Contains(la, pos) && !strings.Contains(la, neg)
		aNegative := strings.Contains(la, neg)
		bPositive := strings.Contains(lb, pos) && !strings.Contains(lb, neg)
		bNegative := strings.Contains(lb, neg)

		if (aPositive && bNegative) || (aNegative && bPositive) {
			return true
		}
	}
	return false
}

// checkDirectContradiction flags requirement pairs in the same category
// whose descriptions are similar yet take opposite modal positions.
func (d *Detector) checkDirectContradiction(a, b *types.NormativeFramework) *types.NormativeConflict {
	contradictions := 0
	var evidence []string

	for i := range a.Requirements {
		for j := range b.Requirements {
			ra, rb := &a.Requirements[i], &b.Requirements[j]
			if ra.Category != rb.Category {
				continue
			}
			if d.similarity(ra.Description, rb.Description) < 0.3 {
				continue
			}
			if opposes(ra.Description, rb.Description) {
				contradictions++
				evidence = append(evidence, ra.Category)
			}
		}
	}

	if contradictions == 0 {
		return nil
	}

	severity := types.SeverityHigh
	if contradictions > 2 {
		severity = types.SeverityCritical
	}

	return d.newConflict(a, b, types.ConflictDirectContradiction, severity,
		fmt.Sprintf("%d requirement pairs take opposite modal positions (categories: %s)",
			contradictions, strings.Join(dedupe(evidence), ", ")),
		0.7+0.1*minFloat(float64(contradictions), 3),
		map[string]string{"contradictions": fmt.Sprintf("%d", contradictions)})
}

// checkJurisdictionalOverlap flags frameworks from different authorities
// claiming the same jurisdiction over a shared subject area.
func (d *Detector) checkJurisdictionalOverlap(a, b *types.NormativeFramework) *types.NormativeConflict {
	if a.Jurisdiction != b.Jurisdiction || a.Authority == b.Authority {
		return nil
	}

	shared := sharedTags(a.Tags, b.Tags)
	if len(shared) == 0 {
		return nil
	}

	severity := types.SeverityMedium
	if len(shared) > 2 {
		severity = types.SeverityHigh
	}

	return d.newConflict(a, b, types.ConflictJurisdictionalOverlap, severity,
		fmt.Sprintf("%q and %q both regulate %s at the %s level",
			a.Title, b.Title, strings.Join(shared, ", "), a.Jurisdiction),
		0.6+0.1*minFloat(float64(len(shared)), 3),
		map[string]string{"shared_tags": strings.Join(shared, ",")})
}

// checkTemporalInconsistency flags an older instrument amended after a
// newer one took effect while the two texts oppose each other.
func (d *Detector) checkTemporalInconsistency(a, b *types.NormativeFramework) *types.NormativeConflict {
	older, newer := a, b
	if b.EffectiveDate.Before(a.EffectiveDate) {
		older, newer = b, a
	}
	if !older.EffectiveDate.Before(newer.EffectiveDate) {
		return nil // same effective date, nothing temporal to flag
	}
	if !older.UpdatedAt.After(newer.EffectiveDate) {
		return nil
	}
	if !opposes(older.Description, newer.Description) && !opposes(newer.Description, older.Description) {
		return nil
	}

	return d.newConflict(a, b, types.ConflictTemporalInconsistency, types.SeverityMedium,
		fmt.Sprintf("%q was amended after %q took effect and the texts disagree", older.Title, newer.Title),
		0.65,
		map[string]string{
			"older_framework": older.ID,
			"newer_framework": newer.ID,
		})
}

// checkAuthorityConflict flags two distinct issuing bodies of identical
// rank regulating a similar subject.
func (d *Detector) checkAuthorityConflict(a, b *types.NormativeFramework) *types.NormativeConflict {
	rankA := d.hierarchy.AuthorityLevel(a.Authority)
	rankB := d.hierarchy.AuthorityLevel(b.Authority)
	if rankA == 0 || rankA != rankB || a.Authority == b.Authority {
		return nil
	}

	similarity := d.similarity(a.Description, b.Description)
	if similarity < 0.3 && len(sharedTags(a.Tags, b.Tags)) == 0 {
		return nil
	}

	return d.newConflict(a, b, types.ConflictAuthority, types.SeverityHigh,
		fmt.Sprintf("%s and %s hold equal rank and regulate overlapping subject matter", a.Authority, b.Authority),
		0.6+similarity*0.3,
		map[string]string{"authority_rank": fmt.Sprintf("%d", rankA)})
}

// checkScopeAmbiguity flags near-identical requirements filed under
// different categories: the obligation boundary between the two frameworks
// is unclear.
func (d *Detector) checkScopeAmbiguity(a, b *types.NormativeFramework) *types.NormativeConflict {
	ambiguous := 0
	for i := range a.Requirements {
		for j := range b.Requirements {
			ra, rb := &a.Requirements[i], &b.Requirements[j]
			if ra.Category == rb.Category {
				continue
			}
			if d.similarity(ra.Description, rb.Description) > 0.6 {
				ambiguous++
			}
		}
	}

	if ambiguous == 0 {
		return nil
	}

	severity := types.SeverityLow
	if ambiguous > 1 {
		severity = types.SeverityMedium
	}

	return d.newConflict(a, b, types.ConflictScopeAmbiguity, severity,
		fmt.Sprintf("%d near-identical requirements are categorized differently across the two frameworks", ambiguous),
		0.6,
		map[string]string{"ambiguous_requirements": fmt.Sprintf("%d", ambiguous)})
}

// precedenceClaims are metadata/tag markers by which a framework asserts it
// supersedes others.
var precedenceClaims = []string{"primary", "supersedes", "prevails", "takes precedence"}

func claimsPrecedence(f *types.NormativeFramework) bool {
	if claim, ok := f.Metadata["precedence"]; ok {
		for _, marker := range precedenceClaims {
			if strings.Contains(strings.ToLower(claim), marker) {
				return true
			}
		}
	}
	for _, tag := range f.Tags {
		lower := strings.ToLower(tag)
		for _, marker := range precedenceClaims {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// checkPriorityDispute flags two frameworks that both claim precedence.
func (d *Detector) checkPriorityDispute(a, b *types.NormativeFramework) *types.NormativeConflict {
	if !claimsPrecedence(a) || !claimsPrecedence(b) {
		return nil
	}

	return d.newConflict(a, b, types.ConflictPriorityDispute, types.SeverityHigh,
		fmt.Sprintf("%q and %q both claim precedence", a.Title, b.Title),
		0.75,
		nil)
}

// checkImplicitConflict flags moderately similar frameworks whose
// descriptions take opposite modal positions without an explicit
// requirement-level contradiction.
func (d *Detector) checkImplicitConflict(a, b *types.NormativeFramework) *types.NormativeConflict {
	similarity := d.similarity(a.Description, b.Description)
	if similarity < 0.3 || similarity > 0.8 {
		return nil
	}
	if !opposes(a.Description, b.Description) {
		return nil
	}

	return d.newConflict(a, b, types.ConflictImplicit, types.SeverityMedium,
		fmt.Sprintf("%q and %q overlap in scope and lean opposite ways", a.Title, b.Title),
		similarity*0.3+0.5,
		map[string]string{"similarity": fmt.Sprintf("%.3f", similarity)})
}

func (d *Detector) newConflict(a, b *types.NormativeFramework, conflictType types.ConflictType, severity types.ConflictSeverity, description string, confidence float64, context map[string]string) *types.NormativeConflict {
	if context == nil {
		context = map[string]string{}
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return &types.NormativeConflict{
		ID:           uuid.New().String(),
		ConflictType: conflictType,
		Severity:     severity,
		Description:  description,
		Context:      context,
		FrameworkIDs: []string{a.ID, b.ID},
		Confidence:   confidence,
		DetectedAt:   d.now().UTC(),
	}
}

func sharedTags(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, tag := range a {
		set[strings.ToLower(tag)] = true
	}
	var shared []string
	for _, tag := range b {
		if set[strings.ToLower(tag)] {
			shared = append(shared, tag)
		}
	}
	return shared
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
