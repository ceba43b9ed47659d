// Package api implements the HTTP handlers for search, entity resolution,
// and the canned graph endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"medgraph-search/internal/entity"
	"medgraph-search/internal/history"
	"medgraph-search/internal/logging"
	"medgraph-search/internal/nl2cypher"
)

// pipeline is the slice of nl2cypher.Pipeline the handlers need.
type pipeline interface {
	Search(ctx context.Context, question string) (*nl2cypher.Result, error)
	ToCypher(ctx context.Context, question string) (*nl2cypher.Result, error)
	Validate(ctx context.Context, cypher string) *nl2cypher.ValidationError
}

// entityResolver is the slice of entity.Resolver the handlers need.
type entityResolver interface {
	ResolveOne(ctx context.Context, entityType, phrase string) (entity.Ref, bool)
}

// historyStore records searches and serves the history endpoint. Nil disables
// both.
type historyStore interface {
	Record(ctx context.Context, entry history.Entry) error
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Handlers holds the wired dependencies for all API endpoints.
type Handlers struct {
	pipeline pipeline
	resolver entityResolver
	graph    *GraphQueries
	history  historyStore
	logger   *logging.Logger
}

// Config wires the handler set.
type Config struct {
	Pipeline pipeline
	Resolver entityResolver
	Graph    *GraphQueries
	History  historyStore
	Logger   *logging.Logger
}

// New returns the handler set.
func New(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	return &Handlers{
		pipeline: cfg.Pipeline,
		resolver: cfg.Resolver,
		graph:    cfg.Graph,
		history:  cfg.History,
		logger:   logger.WithFields(slog.String("component", "api")),
	}
}

// Register mounts every endpoint on the mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/search/query", h.SearchQuery)
	mux.HandleFunc("POST /v1/search/to-cypher", h.ToCypher)
	mux.HandleFunc("POST /v1/search/validate", h.ValidateQuery)
	mux.HandleFunc("GET /v1/search/history", h.SearchHistory)
	mux.HandleFunc("GET /v1/entities/{type}/{text}", h.ResolveEntity)
	mux.HandleFunc("GET /v1/patients/{id}/summary", h.PatientSummary)
	mux.HandleFunc("GET /v1/encounters/{id}", h.EncounterDetails)
	mux.HandleFunc("GET /v1/graph/subgraph", h.Subgraph)
	mux.HandleFunc("GET /v1/graph/path", h.ShortestPath)
	mux.HandleFunc("POST /v1/graph/symptoms", h.DiseasesBySymptoms)
	mux.HandleFunc("GET /v1/assertions/{id}/evidence", h.EvidenceTrail)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Kind: kind, Message: message}})
}

// writePipelineError maps a pipeline failure onto an HTTP status and the
// structured failure body.
func writePipelineError(w http.ResponseWriter, err error) {
	kind := nl2cypher.ErrorKind(err)
	status := http.StatusInternalServerError
	switch kind {
	case "generation_failure", "execution_error":
		status = http.StatusBadGateway
	case "repair_exhausted", "validation_error":
		status = http.StatusUnprocessableEntity
	}

	var exhausted *nl2cypher.RepairExhaustedError
	if errors.As(err, &exhausted) {
		writeJSON(w, status, map[string]any{
			"error": errorBody{Kind: kind, Message: err.Error()},
			"last_draft": map[string]any{
				"cypher":   exhausted.Cypher,
				"attempts": exhausted.Attempts,
				"cause":    exhausted.Last,
			},
		})
		return
	}
	writeError(w, status, kind, err.Error())
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

// recordHistory persists a search outcome. Failures are logged and dropped so
// auditing never breaks the request path.
func (h *Handlers) recordHistory(ctx context.Context, question string, result *nl2cypher.Result, err error) {
	if h.history == nil {
		return
	}

	entry := history.Entry{Question: question}
	if result != nil {
		entry.Cypher = result.Cypher
		entry.Status = string(result.Status)
		entry.Attempts = result.Attempts
		entry.Duration = result.Duration
	}
	if err != nil {
		entry.Status = "failed"
		entry.ErrorKind = nl2cypher.ErrorKind(err)
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if recordErr := h.history.Record(recordCtx, entry); recordErr != nil {
		h.logger.Warn("failed to record search history", slog.String("error", recordErr.Error()))
	}
}
