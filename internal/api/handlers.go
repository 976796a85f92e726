package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"normlex/internal/audit"
	"normlex/internal/httperr"
	"normlex/internal/logging"
	"normlex/internal/registry"
	"normlex/pkg/types"
)

// resolveRequest carries a conflict plus its two framework bodies. Bodies
// may be inline; when omitted they are loaded from the registry by the
// conflict's first two framework IDs.
type resolveRequest struct {
	Conflict   *types.NormativeConflict  `json:"conflict"`
	FrameworkA *types.NormativeFramework `json:"framework_a,omitempty"`
	FrameworkB *types.NormativeFramework `json:"framework_b,omitempty"`
}

// detectRequest carries framework bodies to analyze, inline or by ID.
type detectRequest struct {
	Frameworks   []types.NormativeFramework `json:"frameworks,omitempty"`
	FrameworkIDs []string                   `json:"framework_ids,omitempty"`
}

func (r *Router) writeError(w http.ResponseWriter, req *http.Request, stdErr *httperr.StandardError) {
	stdErr.WithTraceID(logging.GetTraceID(req.Context())).WriteHTTPError(w)
}

func (r *Router) writeStorageError(w http.ResponseWriter, req *http.Request, err error, resource, id string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		r.writeError(w, req, httperr.NewNotFoundError(resource, id))
	case errors.Is(err, registry.ErrAlreadyExists):
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeAlreadyExists, err.Error(), nil))
	default:
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeStorageError, "storage operation failed", err.Error()))
	}
}

// handleCreateFramework registers a new normative framework.
func (r *Router) handleCreateFramework(w http.ResponseWriter, req *http.Request) {
	var framework types.NormativeFramework
	if err := json.NewDecoder(req.Body).Decode(&framework); err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeInvalidFormat, "invalid JSON body", err.Error()))
		return
	}

	now := time.Now().UTC()
	if framework.ID == "" {
		framework.ID = uuid.New().String()
	}
	if framework.EffectiveDate.IsZero() {
		framework.EffectiveDate = now
	}
	if framework.UpdatedAt.IsZero() {
		framework.UpdatedAt = now
	}

	if err := framework.Validate(); err != nil {
		r.writeError(w, req, httperr.NewValidationError("framework", err.Error(), nil))
		return
	}

	if err := r.store.Create(req.Context(), &framework); err != nil {
		r.writeStorageError(w, req, err, "framework", framework.ID)
		return
	}

	r.trail.Record(req.Context(), audit.Event{
		EventType:    audit.EventTypeFrameworkStored,
		FrameworkIDs: []string{framework.ID},
		Action:       "framework created",
		Success:      true,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = writeJSON(w, framework)
}

// handleListFrameworks returns every registered framework.
func (r *Router) handleListFrameworks(w http.ResponseWriter, req *http.Request) {
	frameworks, err := r.store.List(req.Context())
	if err != nil {
		r.writeStorageError(w, req, err, "framework", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, map[string]interface{}{
		"frameworks": frameworks,
		"total":      len(frameworks),
	})
}

// handleGetFramework returns one framework by ID.
func (r *Router) handleGetFramework(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	framework, err := r.store.Get(req.Context(), id)
	if err != nil {
		r.writeStorageError(w, req, err, "framework", id)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, framework)
}

// handleUpdateFramework replaces a stored framework.
func (r *Router) handleUpdateFramework(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	var framework types.NormativeFramework
	if err := json.NewDecoder(req.Body).Decode(&framework); err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeInvalidFormat, "invalid JSON body", err.Error()))
		return
	}
	framework.ID = id
	framework.UpdatedAt = time.Now().UTC()

	if err := framework.Validate(); err != nil {
		r.writeError(w, req, httperr.NewValidationError("framework", err.Error(), nil))
		return
	}

	if err := r.store.Update(req.Context(), &framework); err != nil {
		r.writeStorageError(w, req, err, "framework", id)
		return
	}

	r.trail.Record(req.Context(), audit.Event{
		EventType:    audit.EventTypeFrameworkStored,
		FrameworkIDs: []string{id},
		Action:       "framework updated",
		Success:      true,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, framework)
}

// handleDeleteFramework removes a framework by ID.
func (r *Router) handleDeleteFramework(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")

	if err := r.store.Delete(req.Context(), id); err != nil {
		r.writeStorageError(w, req, err, "framework", id)
		return
	}

	r.trail.Record(req.Context(), audit.Event{
		EventType:    audit.EventTypeFrameworkDeleted,
		FrameworkIDs: []string{id},
		Action:       "framework deleted",
		Success:      true,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleDetectConflicts runs the detector over the submitted frameworks.
func (r *Router) handleDetectConflicts(w http.ResponseWriter, req *http.Request) {
	var body detectRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeInvalidFormat, "invalid JSON body", err.Error()))
		return
	}

	frameworks := body.Frameworks
	for _, id := range body.FrameworkIDs {
		framework, err := r.store.Get(req.Context(), id)
		if err != nil {
			r.writeStorageError(w, req, err, "framework", id)
			return
		}
		frameworks = append(frameworks, *framework)
	}

	if len(frameworks) < 2 {
		r.writeError(w, req, httperr.NewValidationError("frameworks", "at least two frameworks are required", len(frameworks)))
		return
	}

	result, err := r.detector.DetectConflicts(req.Context(), frameworks)
	if err != nil {
		r.writeError(w, req, httperr.NewInternalError("conflict detection failed", err))
		return
	}

	for i := range result.Conflicts {
		c := &result.Conflicts[i]
		r.trail.Record(req.Context(), audit.Event{
			EventType:    audit.EventTypeConflictDetected,
			ConflictID:   c.ID,
			FrameworkIDs: c.FrameworkIDs,
			Confidence:   c.Confidence,
			Action:       "conflict detected",
			Details:      map[string]string{"conflict_type": string(c.ConflictType), "severity": string(c.Severity)},
			Success:      true,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, result)
}

// handleSuggestStrategies lists the catalogue strategies for a conflict type.
func (r *Router) handleSuggestStrategies(w http.ResponseWriter, req *http.Request) {
	conflictType := types.ConflictType(chi.URLParam(req, "type"))
	if !conflictType.Valid() {
		r.writeError(w, req, httperr.NewValidationError("type", "unknown conflict type", string(conflictType)))
		return
	}

	strategies, err := r.resolver.SuggestResolutionStrategies(&types.NormativeConflict{ConflictType: conflictType})
	if err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeResolutionFailed, err.Error(), nil))
		return
	}

	r.trail.Record(req.Context(), audit.Event{
		EventType: audit.EventTypeStrategySuggested,
		Action:    "strategies suggested",
		Details:   map[string]string{"conflict_type": string(conflictType)},
		Success:   true,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, map[string]interface{}{
		"conflict_type": conflictType,
		"strategies":    strategies,
	})
}

// loadConflictFrameworks returns the two framework bodies for a resolve
// request, fetching missing ones from the registry.
func (r *Router) loadConflictFrameworks(req *http.Request, body *resolveRequest) (*types.NormativeFramework, *types.NormativeFramework, *httperr.StandardError) {
	a, b := body.FrameworkA, body.FrameworkB
	ids := body.Conflict.FrameworkIDs

	if a == nil {
		if len(ids) < 1 {
			return nil, nil, httperr.NewRequiredFieldError("framework_a")
		}
		loaded, err := r.store.Get(req.Context(), ids[0])
		if err != nil {
			return nil, nil, httperr.NewNotFoundError("framework", ids[0])
		}
		a = loaded
	}
	if b == nil {
		if len(ids) < 2 {
			return nil, nil, httperr.NewRequiredFieldError("framework_b")
		}
		loaded, err := r.store.Get(req.Context(), ids[1])
		if err != nil {
			return nil, nil, httperr.NewNotFoundError("framework", ids[1])
		}
		b = loaded
	}
	return a, b, nil
}

// handleResolve resolves a conflict between two materialized frameworks.
func (r *Router) handleResolve(w http.ResponseWriter, req *http.Request) {
	var body resolveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeInvalidFormat, "invalid JSON body", err.Error()))
		return
	}
	if body.Conflict == nil {
		r.writeError(w, req, httperr.ErrConflictRequired)
		return
	}
	if err := body.Conflict.Validate(); err != nil {
		r.writeError(w, req, httperr.NewValidationError("conflict", err.Error(), nil))
		return
	}

	a, b, stdErr := r.loadConflictFrameworks(req, &body)
	if stdErr != nil {
		r.writeError(w, req, stdErr)
		return
	}

	result, err := r.resolver.ResolveConflictAdvanced(req.Context(), body.Conflict, a, b)
	if err != nil {
		r.trail.RecordFailure(req.Context(), body.Conflict.ID, err)
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeResolutionFailed, err.Error(), nil))
		return
	}

	r.trail.RecordResolution(req.Context(), body.Conflict.ID, string(result.StrategyUsed), result.ConfidenceScore, body.Conflict.FrameworkIDs)

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, result)
}

// handleResolveSummary recommends a strategy for a conflict without
// materialized framework bodies.
func (r *Router) handleResolveSummary(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Conflict *types.NormativeConflict `json:"conflict"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeInvalidFormat, "invalid JSON body", err.Error()))
		return
	}
	if body.Conflict == nil {
		r.writeError(w, req, httperr.ErrConflictRequired)
		return
	}

	framework, err := r.resolver.ResolveConflict(req.Context(), body.Conflict)
	if err != nil {
		r.trail.RecordFailure(req.Context(), body.Conflict.ID, err)
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeResolutionFailed, err.Error(), nil))
		return
	}

	r.trail.Record(req.Context(), audit.Event{
		EventType:  audit.EventTypeStrategySuggested,
		ConflictID: body.Conflict.ID,
		Strategy:   framework.Metadata["strategy"],
		Action:     "strategy recommended",
		Success:    true,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, framework)
}

// handleApplyStrategy validates and records a strategy application by name.
func (r *Router) handleApplyStrategy(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")

	var body struct {
		Conflict *types.NormativeConflict `json:"conflict"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeInvalidFormat, "invalid JSON body", err.Error()))
		return
	}
	if body.Conflict == nil {
		r.writeError(w, req, httperr.ErrConflictRequired)
		return
	}

	if err := r.resolver.ApplyResolutionStrategy(req.Context(), body.Conflict, name); err != nil {
		r.writeError(w, req, httperr.NewStandardError(httperr.ErrorCodeUnknownStrategy, err.Error(), nil))
		return
	}

	r.trail.Record(req.Context(), audit.Event{
		EventType:  audit.EventTypeStrategySuggested,
		ConflictID: body.Conflict.ID,
		Strategy:   name,
		Action:     "strategy applied",
		Success:    true,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, map[string]interface{}{
		"conflict_id": body.Conflict.ID,
		"strategy":    name,
		"applied":     true,
	})
}

// handleAuditStats reports audit trail counters.
func (r *Router) handleAuditStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, r.trail.Statistics())
}

// handleAuditSearch searches the audit trail.
func (r *Router) handleAuditSearch(w http.ResponseWriter, req *http.Request) {
	criteria := audit.SearchCriteria{
		ConflictID: req.URL.Query().Get("conflict_id"),
		Strategy:   req.URL.Query().Get("strategy"),
	}
	if eventType := req.URL.Query().Get("event_type"); eventType != "" {
		criteria.EventTypes = []audit.EventType{audit.EventType(eventType)}
	}
	if limit := req.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			criteria.Limit = n
		}
	}

	events, err := r.trail.Search(req.Context(), criteria)
	if err != nil {
		r.writeError(w, req, httperr.NewInternalError("audit search failed", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = writeJSON(w, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}
