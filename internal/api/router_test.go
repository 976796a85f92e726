package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"normlex/internal/config"
	"normlex/internal/detection"
	"normlex/internal/registry"
	"normlex/internal/resolution"
	"normlex/pkg/types"
)

func newTestRouter(t *testing.T) (*Router, registry.Store) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Audit.Enabled = false

	store := registry.NewMemoryStore()
	resolver := resolution.NewResolver()
	detector := detection.NewDetector(detection.WithHierarchy(resolver.Hierarchy()))

	return NewRouter(cfg, resolver, detector, store, nil, nil), store
}

func apiFramework(id, title, authority string, jurisdiction types.Jurisdiction) types.NormativeFramework {
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

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestFrameworkCRUD(t *testing.T) {
	router, _ := newTestRouter(t)
	handler := router.Handler()

	fw := apiFramework("fw-1", "Data Protection Act", "Federal Legislature", types.JurisdictionFederal)
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/frameworks/", fw)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/frameworks/fw-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got types.NormativeFramework
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Data Protection Act", got.Title)

	got.Title = "Amended Act"
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/frameworks/fw-1", got)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/frameworks/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Frameworks []types.NormativeFramework `json:"frameworks"`
		Total      int                        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Amended Act", list.Frameworks[0].Title)

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/frameworks/fw-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/frameworks/fw-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateFramework_GeneratesIDAndTimestamps(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/frameworks/", map[string]interface{}{
		"title":        "Minimal Act",
		"authority":    "State Legislature",
		"jurisdiction": "state",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created types.NormativeFramework
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.EffectiveDate.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())
}

func TestCreateFramework_ValidationFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/frameworks/", map[string]interface{}{
		"title":        "Bad Act",
		"jurisdiction": "galactic",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestCreateFramework_DuplicateID(t *testing.T) {
	router, _ := newTestRouter(t)
	handler := router.Handler()

	fw := apiFramework("fw-1", "Some Act", "Federal Legislature", types.JurisdictionFederal)
	require.Equal(t, http.StatusCreated, doJSON(t, handler, http.MethodPost, "/api/v1/frameworks/", fw).Code)
	assert.Equal(t, http.StatusConflict, doJSON(t, handler, http.MethodPost, "/api/v1/frameworks/", fw).Code)
}

func TestDetectConflicts_InlineFrameworks(t *testing.T) {
	router, _ := newTestRouter(t)

	a := apiFramework("fw-a", "Encryption Act", "Federal Legislature", types.JurisdictionFederal)
	a.Requirements = []types.Requirement{{
		ID: "req-a", Category: "data-security",
		Description: "personal data must be encrypted at rest",
	}}
	b := apiFramework("fw-b", "Lawful Access Act", "State Legislature", types.JurisdictionState)
	b.Requirements = []types.Requirement{{
		ID: "req-b", Category: "data-security",
		Description: "personal data must not be encrypted at rest",
	}}

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/conflicts/detect", map[string]interface{}{
		"frameworks": []types.NormativeFramework{a, b},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result detection.DetectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TotalFrameworks)
	require.NotEmpty(t, result.Conflicts)
	assert.Equal(t, types.ConflictDirectContradiction, result.Conflicts[0].ConflictType)
}

func TestDetectConflicts_ByStoredID(t *testing.T) {
	router, store := newTestRouter(t)

	a := apiFramework("fw-a", "Health Data Act", "Federal Legislature", types.JurisdictionFederal)
	a.Tags = []string{"health"}
	b := apiFramework("fw-b", "Medical Records Regulation", "National Regulator", types.JurisdictionFederal)
	b.Tags = []string{"health"}
	require.NoError(t, store.Create(context.Background(), &a))
	require.NoError(t, store.Create(context.Background(), &b))

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/conflicts/detect", map[string]interface{}{
		"framework_ids": []string{"fw-a", "fw-b"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result detection.DetectionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.TotalFrameworks)
}

func TestDetectConflicts_RequiresTwoFrameworks(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/conflicts/detect", map[string]interface{}{
		"frameworks": []types.NormativeFramework{
			apiFramework("fw-a", "Lone Act", "Federal Legislature", types.JurisdictionFederal),
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuggestStrategies(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodGet, "/api/v1/conflicts/jurisdictional_overlap/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ConflictType string   `json:"conflict_type"`
		Strategies   []string `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jurisdictional_overlap", resp.ConflictType)
	assert.Equal(t, []string{"lex_superior", "delegation", "contextualization"}, resp.Strategies)
}

func TestSuggestStrategies_UnknownType(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodGet, "/api/v1/conflicts/vibes_mismatch/strategies", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolve_InlineFrameworks(t *testing.T) {
	router, _ := newTestRouter(t)

	a := apiFramework("fw-a", "Supreme Directive", "Supreme Court", types.JurisdictionFederal)
	b := apiFramework("fw-b", "Local Ordinance", "Local Government", types.JurisdictionLocal)
	conflict := types.NormativeConflict{
		ID:           "conflict-1",
		ConflictType: types.ConflictDirectContradiction,
		Severity:     types.SeverityHigh,
		FrameworkIDs: []string{"fw-a", "fw-b"},
		Confidence:   0.9,
		DetectedAt:   time.Now().UTC(),
	}

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/resolutions/", map[string]interface{}{
		"conflict":    conflict,
		"framework_a": a,
		"framework_b": b,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result types.ConflictResolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, types.StrategyLexSuperior, result.StrategyUsed)
	assert.Equal(t, "fw-a", result.ResolvedFramework.ID)
	assert.Equal(t, 0.9, result.ConfidenceScore)
}

func TestResolve_LoadsFrameworksFromStore(t *testing.T) {
	router, store := newTestRouter(t)

	a := apiFramework("fw-a", "Supreme Directive", "Supreme Court", types.JurisdictionFederal)
	b := apiFramework("fw-b", "Local Ordinance", "Local Government", types.JurisdictionLocal)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &a))
	require.NoError(t, store.Create(ctx, &b))

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/resolutions/", map[string]interface{}{
		"conflict": types.NormativeConflict{
			ID:           "conflict-1",
			ConflictType: types.ConflictDirectContradiction,
			Severity:     types.SeverityHigh,
			FrameworkIDs: []string{"fw-a", "fw-b"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result types.ConflictResolution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "fw-a", result.ResolvedFramework.ID)
}

func TestResolve_MissingFramework(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/resolutions/", map[string]interface{}{
		"conflict": types.NormativeConflict{
			ID:           "conflict-1",
			ConflictType: types.ConflictDirectContradiction,
			Severity:     types.SeverityHigh,
			FrameworkIDs: []string{"fw-a", "fw-b"},
		},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolve_MissingConflict(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/resolutions/", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveSummary(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/resolutions/summary", map[string]interface{}{
		"conflict": types.NormativeConflict{
			ID:           "conflict-1",
			ConflictType: types.ConflictDirectContradiction,
			Severity:     types.SeverityCritical,
			FrameworkIDs: []string{"fw-a", "fw-b"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var framework types.NormativeFramework
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &framework))
	assert.Equal(t, "resolution-conflict-1", framework.ID)
	assert.Equal(t, "lex_superior", framework.Metadata["strategy"])
	assert.Equal(t, "summary", framework.Metadata["mode"])
}

func TestApplyStrategy(t *testing.T) {
	router, _ := newTestRouter(t)

	body := map[string]interface{}{
		"conflict": types.NormativeConflict{
			ID:           "conflict-1",
			ConflictType: types.ConflictPriorityDispute,
			Severity:     types.SeverityHigh,
			FrameworkIDs: []string{"fw-a", "fw-b"},
		},
	}

	rec := doJSON(t, router.Handler(), http.MethodPost, "/api/v1/strategies/mediation/apply", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		ConflictID string `json:"conflict_id"`
		Strategy   string `json:"strategy"`
		Applied    bool   `json:"applied"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "conflict-1", resp.ConflictID)
	assert.Equal(t, "mediation", resp.Strategy)
	assert.True(t, resp.Applied)

	rec = doJSON(t, router.Handler(), http.MethodPost, "/api/v1/strategies/trial_by_combat/apply", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndPing(t *testing.T) {
	router, _ := newTestRouter(t)
	handler := router.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTraceIDPropagation(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	rec := httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Trace-ID"))

	// A missing trace ID gets generated.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	router.Handler().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t)
	handler := router.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, handler, http.MethodPatch, "/api/v1/frameworks/", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAuditEndpointsWithDisabledTrail(t *testing.T) {
	router, _ := newTestRouter(t)
	handler := router.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/audit/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/audit/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []json.RawMessage `json:"events"`
		Total  int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Total)
}
