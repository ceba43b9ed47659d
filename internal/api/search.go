package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/history"
	"medgraph-search/internal/logging"
	"medgraph-search/internal/observability"
)

const (
	// ShapeRows returns raw result rows; ShapeGraph reshapes them into a
	// node/edge list.
	ShapeRows  = "rows"
	ShapeGraph = "graph"
)

type searchRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
	Shape    string `json:"shape"`
}

type validateRequest struct {
	Cypher string `json:"cypher"`
}

// SearchQuery runs the full question-to-Cypher pipeline and executes the
// validated query.
func (h *Handlers) SearchQuery(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	shape := strings.TrimSpace(req.Shape)
	if shape == "" {
		shape = ShapeRows
	}
	if shape != ShapeRows && shape != ShapeGraph {
		writeError(w, http.StatusBadRequest, "bad_request", "shape must be rows or graph")
		return
	}

	reqLogger := logging.FromContext(r.Context())
	result, err := h.pipeline.Search(r.Context(), req.Question)
	h.recordHistory(r.Context(), req.Question, result, err)
	if err != nil {
		reqLogger.Warn("search failed",
			observability.SearchLogFields(r.Context(), req.Question, 0, "failed")...)
		writePipelineError(w, err)
		return
	}

	rows := result.Rows
	if req.Limit > 0 && len(rows) > req.Limit {
		rows = rows[:req.Limit]
	}

	reqLogger.Info("search completed",
		observability.SearchLogFields(r.Context(), req.Question, result.Attempts, string(result.Status))...)

	response := map[string]any{
		"question":    result.Question,
		"cypher":      result.Cypher,
		"bindings":    result.Bindings,
		"attempts":    result.Attempts,
		"duration_ms": result.Duration.Milliseconds(),
		"count":       len(rows),
	}
	if shape == ShapeGraph {
		response["graph"] = shapeAsGraph(rows)
	} else {
		if rows == nil {
			rows = []graphdb.Record{}
		}
		response["results"] = rows
	}
	writeJSON(w, http.StatusOK, response)
}

// ToCypher runs generation and validation but skips execution, returning the
// query that would have run.
func (h *Handlers) ToCypher(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	result, err := h.pipeline.ToCypher(r.Context(), req.Question)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"question":    result.Question,
		"cypher":      result.Cypher,
		"bindings":    result.Bindings,
		"attempts":    result.Attempts,
		"status":      result.Status,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// ValidateQuery dry-runs a caller-supplied Cypher query against the engine.
func (h *Handlers) ValidateQuery(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Cypher) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "cypher is required")
		return
	}

	if verr := h.pipeline.Validate(r.Context(), req.Cypher); verr != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": verr})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// SearchHistory returns the most recent recorded searches.
func (h *Handlers) SearchHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "not_found", "search history is disabled")
		return
	}

	entries, err := h.history.Recent(r.Context(), queryLimit(r, 50))
	if err != nil {
		h.logger.Error("failed to load search history", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal", "failed to load search history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// ResolveEntity probes the full-text resolver for a single phrase.
func (h *Handlers) ResolveEntity(w http.ResponseWriter, r *http.Request) {
	entityType := r.PathValue("type")
	phrase := r.PathValue("text")

	ref, ok := h.resolver.ResolveOne(r.Context(), entityType, phrase)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no matching entity")
		return
	}
	writeJSON(w, http.StatusOK, ref)
}
