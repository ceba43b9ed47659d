package entity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/graphschema"
	"medgraph-search/internal/logging"

	"github.com/jinzhu/inflection"
)

// DefaultMinScore is the floor below which index hits are discarded.
const DefaultMinScore = 0.5

// exactScoreFloor is the score an unquoted phrase must clear to count as an
// exact hit. Lucene scores exact phrase matches well above this.
const exactScoreFloor = 0.9

// indexNames maps singular entity types to their full-text index.
var indexNames = map[string]string{
	"patient":    "patient_search",
	"clinician":  "clinician_search",
	"disease":    "disease_search",
	"symptom":    "symptom_search",
	"medication": "medication_search",
	"procedure":  "procedure_search",
	"test":       "test_search",
}

// Config controls resolution thresholds.
type Config struct {
	// MinScore is the minimum index score to accept. Zero means DefaultMinScore.
	MinScore float64
	// Schema, when set, supplies introspected full-text indexes for entity
	// types the static table does not cover.
	Schema func() *graphschema.Schema
}

// Resolver maps extracted entity mentions to graph node identifiers.
type Resolver struct {
	exec     graphdb.Executor
	logger   *logging.Logger
	minScore float64
	schema   func() *graphschema.Schema
}

// NewResolver returns a resolver backed by the given graph executor.
func NewResolver(exec graphdb.Executor, logger *logging.Logger, cfg Config) *Resolver {
	minScore := cfg.MinScore
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Resolver{
		exec:     exec,
		logger:   logger.WithFields(slog.String("component", "entity_resolver")),
		minScore: minScore,
		schema:   cfg.Schema,
	}
}

// Resolve maps every mention to its best graph match, keyed by the original
// phrase. Mentions that match nothing are absent from the result; resolution
// never fails the request, so index errors degrade to misses.
func (r *Resolver) Resolve(ctx context.Context, mentions Mentions) map[string]Ref {
	refs := make(map[string]Ref)
	for entityType, phrases := range mentions {
		for _, phrase := range phrases {
			ref, ok := r.ResolveOne(ctx, entityType, phrase)
			if !ok {
				continue
			}
			refs[phrase] = ref
		}
	}
	return refs
}

// ResolveOne resolves a single (type, phrase) pair. Strategies are tried in
// order of strictness: exact phrase, then fuzzy with edit distance 2, then
// prefix wildcard, then contains wildcard at a relaxed score floor.
func (r *Resolver) ResolveOne(ctx context.Context, entityType, phrase string) (Ref, bool) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return Ref{}, false
	}

	singular := inflection.Singular(strings.ToLower(strings.TrimSpace(entityType)))
	index, ok := r.indexFor(singular)
	if !ok {
		r.logger.Debug("no full-text index for entity type", slog.String("type", entityType))
		return Ref{}, false
	}

	strategies := []struct {
		kind     MatchKind
		query    string
		minScore float64
	}{
		{MatchExact, fmt.Sprintf("%q", phrase), exactScoreFloor},
		{MatchFuzzy, phrase + "~2", r.minScore},
		{MatchPartial, phrase + "*", r.minScore},
		{MatchPartial, "*" + phrase + "*", r.minScore * 0.8},
	}

	for _, strategy := range strategies {
		hit, ambiguous, ok := r.bestHit(ctx, index, strategy.query, strategy.minScore)
		if !ok {
			continue
		}
		ref := Ref{
			Name:      phrase,
			Type:      singular,
			Matched:   hit.Node,
			Score:     hit.Score,
			Kind:      strategy.kind,
			Ambiguous: ambiguous,
		}
		if id, ok := hit.Node["uuid"].(string); ok {
			ref.ID = id
		}
		return ref, true
	}
	return Ref{}, false
}

// indexFor looks up the full-text index for a singular entity type, falling
// back to the introspected schema for types the static table misses.
func (r *Resolver) indexFor(singular string) (string, bool) {
	if index, ok := indexNames[singular]; ok {
		return index, true
	}
	if r.schema == nil {
		return "", false
	}
	schema := r.schema()
	if schema == nil {
		return "", false
	}
	index, ok := schema.IndexForLabel(singular)
	if !ok {
		return "", false
	}
	return index.Name, true
}

// bestHit queries the index and picks the winner deterministically: highest
// score first, lexicographically smallest uuid on ties. A score tie is
// reported as ambiguous so the binding can carry the caveat.
func (r *Resolver) bestHit(ctx context.Context, index, query string, minScore float64) (hit graphdb.Hit, ambiguous, ok bool) {
	hits, err := r.exec.FullTextQuery(ctx, index, query, minScore, 5)
	if err != nil {
		r.logger.Warn("full-text query failed",
			slog.String("index", index),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return graphdb.Hit{}, false, false
	}
	if len(hits) == 0 {
		return graphdb.Hit{}, false, false
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hitID(hits[i]) < hitID(hits[j])
	})
	ambiguous = len(hits) > 1 && hits[0].Score == hits[1].Score
	if ambiguous {
		r.logger.Debug("score tie during resolution, picking lowest id",
			slog.String("index", index),
			slog.String("query", query),
		)
	}
	return hits[0], ambiguous, true
}

func hitID(hit graphdb.Hit) string {
	if id, ok := hit.Node["uuid"].(string); ok {
		return id
	}
	return ""
}
