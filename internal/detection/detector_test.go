package detection

import (
	"context"
	"math"
	"testing"
	"time"

	"normlex/pkg/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var testClock = func() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func framework(id, title, authority string, jurisdiction types.Jurisdiction) types.NormativeFramework {
	effective := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	return types.NormativeFramework{
		ID:            id,
		Title:         title,
		Description:   title,
		Authority:     authority,
		Jurisdiction:  jurisdiction,
		Requirements:  []types.Requirement{},
		Tags:          []string{},
		Metadata:      map[string]string{},
		EffectiveDate: effective,
		UpdatedAt:     effective,
	}
}

func findConflict(conflicts []types.NormativeConflict, ct types.ConflictType) *types.NormativeConflict {
	for i := range conflicts {
		if conflicts[i].ConflictType == ct {
			return &conflicts[i]
		}
	}
	return nil
}

func TestDetectConflicts_DirectContradiction(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	a := framework("fw-a", "Encryption Act", "Federal Legislature", types.JurisdictionFederal)
	a.Requirements = []types.Requirement{{
		ID:          "req-a1",
		Category:    "data-security",
		Description: "personal data must be encrypted at rest",
	}}
	b := framework("fw-b", "Lawful Access Act", "State Legislature", types.JurisdictionState)
	b.Requirements = []types.Requirement{{
		ID:          "req-b1",
		Category:    "data-security",
		Description: "personal data must not be encrypted at rest",
	}}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := findConflict(result.Conflicts, types.ConflictDirectContradiction)
	if conflict == nil {
		t.Fatalf("Expected a direct contradiction, got %v", result.Conflicts)
	}
	if conflict.Severity != types.SeverityHigh {
		t.Errorf("Expected high severity for a single contradiction, got %s", conflict.Severity)
	}
	// One contradicting pair scores 0.7 + 0.1.
	if !almostEqual(conflict.Confidence, 0.8) {
		t.Errorf("Expected confidence 0.8, got %f", conflict.Confidence)
	}
	if len(conflict.FrameworkIDs) != 2 || conflict.FrameworkIDs[0] != "fw-a" || conflict.FrameworkIDs[1] != "fw-b" {
		t.Errorf("Expected framework IDs [fw-a fw-b], got %v", conflict.FrameworkIDs)
	}
	if !conflict.DetectedAt.Equal(testClock().UTC()) {
		t.Errorf("Expected detection stamped from injected clock, got %v", conflict.DetectedAt)
	}
}

func TestDetectConflicts_ContradictionCountEscalatesSeverity(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	a := framework("fw-a", "Strict Code", "Federal Legislature", types.JurisdictionFederal)
	b := framework("fw-b", "Permissive Code", "State Legislature", types.JurisdictionState)
	categories := []string{"consent", "retention", "disclosure"}
	for _, cat := range categories {
		a.Requirements = append(a.Requirements, types.Requirement{
			ID: "a-" + cat, Category: cat,
			Description: "processing of " + cat + " records is permitted under this code",
		})
		b.Requirements = append(b.Requirements, types.Requirement{
			ID: "b-" + cat, Category: cat,
			Description: "processing of " + cat + " records is prohibited under this code",
		})
	}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := findConflict(result.Conflicts, types.ConflictDirectContradiction)
	if conflict == nil {
		t.Fatal("Expected a direct contradiction")
	}
	if conflict.Severity != types.SeverityCritical {
		t.Errorf("Expected critical severity for three contradictions, got %s", conflict.Severity)
	}
	// Confidence caps its contradiction bonus at three pairs.
	if !almostEqual(conflict.Confidence, 1.0) {
		t.Errorf("Expected confidence 1.0, got %f", conflict.Confidence)
	}
}

func TestDetectConflicts_JurisdictionalOverlap(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	a := framework("fw-a", "Health Data Act", "Federal Legislature", types.JurisdictionFederal)
	a.Tags = []string{"health", "privacy"}
	b := framework("fw-b", "Medical Records Regulation", "National Regulator", types.JurisdictionFederal)
	b.Tags = []string{"health", "records"}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := findConflict(result.Conflicts, types.ConflictJurisdictionalOverlap)
	if conflict == nil {
		t.Fatalf("Expected a jurisdictional overlap, got %v", result.Conflicts)
	}
	if conflict.Severity != types.SeverityMedium {
		t.Errorf("Expected medium severity for one shared tag, got %s", conflict.Severity)
	}
	if conflict.Context["shared_tags"] != "health" {
		t.Errorf("Expected shared tag recorded, got %v", conflict.Context)
	}
}

func TestDetectConflicts_NoOverlapForSameAuthority(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	a := framework("fw-a", "Rule One", "Federal Legislature", types.JurisdictionFederal)
	a.Tags = []string{"health"}
	b := framework("fw-b", "Rule Two", "Federal Legislature", types.JurisdictionFederal)
	b.Tags = []string{"health"}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if findConflict(result.Conflicts, types.ConflictJurisdictionalOverlap) != nil {
		t.Error("Expected no overlap when the same authority issued both frameworks")
	}
}

func TestDetectConflicts_TemporalInconsistency(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	older := framework("fw-old", "Records Act", "Federal Legislature", types.JurisdictionFederal)
	older.Description = "retention of client records is required for audits"
	older.EffectiveDate = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	older.UpdatedAt = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	newer := framework("fw-new", "Data Minimization Act", "Federal Legislature", types.JurisdictionFederal)
	newer.Description = "retention of client records is exempt for audits"
	newer.EffectiveDate = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	newer.UpdatedAt = newer.EffectiveDate

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{older, newer})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := findConflict(result.Conflicts, types.ConflictTemporalInconsistency)
	if conflict == nil {
		t.Fatalf("Expected a temporal inconsistency, got %v", result.Conflicts)
	}
	if conflict.Context["older_framework"] != "fw-old" || conflict.Context["newer_framework"] != "fw-new" {
		t.Errorf("Expected both sides identified, got %v", conflict.Context)
	}

	// The older instrument untouched since before the newer took effect is
	// not a temporal inconsistency.
	older.UpdatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	result, err = detector.DetectConflicts(context.Background(), []types.NormativeFramework{older, newer})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if findConflict(result.Conflicts, types.ConflictTemporalInconsistency) != nil {
		t.Error("Expected no temporal inconsistency without a late amendment")
	}
}

func TestDetectConflicts_AuthorityConflict(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	a := framework("fw-a", "Securities Disclosure Rule", "State Court", types.JurisdictionState)
	a.Description = "quarterly disclosure of securities holdings"
	a.Tags = []string{"securities"}
	b := framework("fw-b", "Securities Reporting Rule", "State Court", types.JurisdictionState)
	b.Authority = "state court" // same rank via case-insensitive lookup, different body string
	b.Description = "quarterly disclosure of securities holdings"
	b.Tags = []string{"securities"}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := findConflict(result.Conflicts, types.ConflictAuthority)
	if conflict == nil {
		t.Fatalf("Expected an authority conflict, got %v", result.Conflicts)
	}
	if conflict.Severity != types.SeverityHigh {
		t.Errorf("Expected high severity, got %s", conflict.Severity)
	}
	// Identical descriptions score 0.6 + 1.0*0.3.
	if !almostEqual(conflict.Confidence, 0.9) {
		t.Errorf("Expected confidence 0.9, got %f", conflict.Confidence)
	}
}

func TestDetectConflicts_PriorityDispute(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	a := framework("fw-a", "Framework Alpha", "Federal Legislature", types.JurisdictionFederal)
	a.Metadata["precedence"] = "primary instrument for this sector"
	b := framework("fw-b", "Framework Beta", "National Regulator", types.JurisdictionSectoral)
	b.Tags = []string{"supersedes-prior-rules"}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := findConflict(result.Conflicts, types.ConflictPriorityDispute)
	if conflict == nil {
		t.Fatalf("Expected a priority dispute, got %v", result.Conflicts)
	}
	if conflict.Confidence != 0.75 {
		t.Errorf("Expected confidence 0.75, got %f", conflict.Confidence)
	}

	// One-sided precedence claims are not a dispute.
	b.Tags = nil
	result, err = detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if findConflict(result.Conflicts, types.ConflictPriorityDispute) != nil {
		t.Error("Expected no dispute when only one framework claims precedence")
	}
}

func TestDetectConflicts_ImplicitConflict(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	a := framework("fw-a", "Access Charter", "Federal Legislature", types.JurisdictionFederal)
	a.Description = "employers must provide workers access to personnel files"
	b := framework("fw-b", "Confidentiality Charter", "State Legislature", types.JurisdictionState)
	b.Description = "employers must not provide third parties access to personnel files"

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	conflict := findConflict(result.Conflicts, types.ConflictImplicit)
	if conflict == nil {
		t.Fatalf("Expected an implicit conflict, got %v", result.Conflicts)
	}
	if conflict.Severity != types.SeverityMedium {
		t.Errorf("Expected medium severity, got %s", conflict.Severity)
	}
}

func TestDetectConflicts_FewerThanTwoFrameworks(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	single := framework("fw-a", "Lone Act", "Federal Legislature", types.JurisdictionFederal)
	for _, frameworks := range [][]types.NormativeFramework{nil, {single}} {
		result, err := detector.DetectConflicts(context.Background(), frameworks)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if result.ConflictsFound != 0 || len(result.Conflicts) != 0 {
			t.Errorf("Expected empty result for %d frameworks", len(frameworks))
		}
		if result.TotalFrameworks != len(frameworks) {
			t.Errorf("Expected TotalFrameworks %d, got %d", len(frameworks), result.TotalFrameworks)
		}
	}
}

func TestDetectConflicts_MinConfidenceFilter(t *testing.T) {
	// Jurisdictional overlap with one shared tag scores 0.7, below a 0.9
	// floor.
	detector := NewDetector(WithClock(testClock), WithMinConfidence(0.9))

	a := framework("fw-a", "Health Data Act", "Federal Legislature", types.JurisdictionFederal)
	a.Tags = []string{"health"}
	b := framework("fw-b", "Medical Records Regulation", "National Regulator", types.JurisdictionFederal)
	b.Tags = []string{"health"}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if findConflict(result.Conflicts, types.ConflictJurisdictionalOverlap) != nil {
		t.Error("Expected the overlap filtered out below the confidence floor")
	}
}

func TestDetectConflicts_OrdersBySeverityThenConfidence(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	// fw-a vs fw-b produces a critical direct contradiction; fw-a vs fw-c a
	// medium jurisdictional overlap.
	a := framework("fw-a", "Strict Code", "Federal Legislature", types.JurisdictionFederal)
	a.Tags = []string{"health"}
	b := framework("fw-b", "Permissive Code", "State Legislature", types.JurisdictionState)
	c := framework("fw-c", "Health Regulation", "National Regulator", types.JurisdictionFederal)
	c.Tags = []string{"health"}

	for _, cat := range []string{"consent", "retention", "disclosure"} {
		a.Requirements = append(a.Requirements, types.Requirement{
			ID: "a-" + cat, Category: cat,
			Description: "processing of " + cat + " records is permitted under this code",
		})
		b.Requirements = append(b.Requirements, types.Requirement{
			ID: "b-" + cat, Category: cat,
			Description: "processing of " + cat + " records is prohibited under this code",
		})
	}

	result, err := detector.DetectConflicts(context.Background(), []types.NormativeFramework{a, b, c})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Conflicts) < 2 {
		t.Fatalf("Expected at least two conflicts, got %d", len(result.Conflicts))
	}

	for i := 0; i < len(result.Conflicts)-1; i++ {
		cur, next := result.Conflicts[i], result.Conflicts[i+1]
		if cur.Severity.Weight() < next.Severity.Weight() {
			t.Fatalf("Conflicts out of severity order at %d: %s before %s", i, cur.Severity, next.Severity)
		}
		if cur.Severity == next.Severity && cur.Confidence < next.Confidence {
			t.Fatalf("Conflicts out of confidence order at %d", i)
		}
	}
	if result.Conflicts[0].ConflictType != types.ConflictDirectContradiction {
		t.Errorf("Expected the critical contradiction first, got %s", result.Conflicts[0].ConflictType)
	}
}

func TestDetectConflicts_CancelledContext(t *testing.T) {
	detector := NewDetector(WithClock(testClock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frameworks := []types.NormativeFramework{
		framework("fw-a", "One", "Federal Legislature", types.JurisdictionFederal),
		framework("fw-b", "Two", "State Legislature", types.JurisdictionState),
	}
	if _, err := detector.DetectConflicts(ctx, frameworks); err == nil {
		t.Error("Expected a context error after cancellation")
	}
}

func TestOpposes(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"data must be encrypted", "data must not be encrypted", true},
		{"data must not be encrypted", "data must be encrypted", true},
		{"processing is permitted", "processing is prohibited", true},
		{"reporting is mandatory", "reporting is optional", true},
		{"consent is opt-in", "consent is opt-out", true},
		{"data must be encrypted", "data must be encrypted", false},
		{"data must not be encrypted", "data must not be encrypted", false},
		{"shall notify the regulator", "shall notify the regulator", false},
	}

	for _, tt := range tests {
		if got := opposes(tt.a, tt.b); got != tt.want {
			t.Errorf("opposes(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
