// Package graphdb provides read-only access to the Neo4j knowledge graph.
// It exposes a small execution interface so higher layers can swap in fakes.
package graphdb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"medgraph-search/internal/logging"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Record is a single result row keyed by the query's RETURN aliases.
type Record = map[string]any

// Hit is one full-text index match.
type Hit struct {
	Node   map[string]any
	Labels []string
	Score  float64
}

// Executor abstracts Cypher execution so callers can swap in fakes.
type Executor interface {
	// Run executes a read query and returns all result rows.
	Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error)
	// Explain submits the query for plan compilation without executing it.
	Explain(ctx context.Context, cypher string) error
	// FullTextQuery searches a full-text index and returns scored matches.
	FullTextQuery(ctx context.Context, index string, query string, minScore float64, limit int) ([]Hit, error)
}

// Config holds Neo4j connection parameters.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// ConnectTimeout is the max time to wait for the graph on startup.
	ConnectTimeout time.Duration
	// ConnectRetryInterval is the initial interval between connection retries.
	ConnectRetryInterval time.Duration
}

// Store executes Cypher against a Neo4j database through a shared driver.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// Connect creates a driver and waits for the graph to become reachable,
// retrying with exponential backoff up to the configured timeout.
func Connect(ctx context.Context, cfg Config, logger *logging.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := waitForGraph(ctx, cfg, logger, driver); err != nil {
		_ = driver.Close(context.WithoutCancel(ctx))
		return nil, err
	}

	return &Store{driver: driver, database: cfg.Database}, nil
}

func waitForGraph(ctx context.Context, cfg Config, logger *logging.Logger, driver neo4j.DriverWithContext) error {
	timeout := cfg.ConnectTimeout
	interval := cfg.ConnectRetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	// If timeout is 0, try once and fail immediately.
	if timeout == 0 {
		return driver.VerifyConnectivity(ctx)
	}

	deadline := time.Now().Add(timeout)
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := driver.VerifyConnectivity(ctx)

		if err == nil {
			if attempt > 1 {
				logger.Info("graph connection established", slog.Int("attempts", attempt))
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("graph not available after %v: %w", timeout, err)
		}

		logger.Warn("graph not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		time.Sleep(interval)

		interval = min(interval*2, 30*time.Second)
	}
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Ping verifies graph connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
}

// Run executes a read query in a managed read transaction and collects all rows.
func (s *Store) Run(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	session := s.session(ctx)
	defer func() { _ = session.Close(ctx) }()

	collected, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}

	records, ok := collected.([]*neo4j.Record)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T from read transaction", collected)
	}

	rows := make([]Record, 0, len(records))
	for _, record := range records {
		rows = append(rows, flattenRecord(record.AsMap()))
	}
	return rows, nil
}

// Explain compiles the query plan without touching data. A nil return means
// the query is syntactically and semantically acceptable to the engine.
func (s *Store) Explain(ctx context.Context, cypher string) error {
	_, err := s.Run(ctx, "EXPLAIN "+cypher, nil)
	return err
}

// FullTextQuery searches a full-text index, returning matches above minScore
// ordered by descending score.
func (s *Store) FullTextQuery(ctx context.Context, index string, query string, minScore float64, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 1
	}
	const cypher = `
		CALL db.index.fulltext.queryNodes($index, $query)
		YIELD node, score
		WHERE score >= $min_score
		RETURN node, labels(node) AS labels, score
		ORDER BY score DESC
		LIMIT $limit`

	rows, err := s.Run(ctx, cypher, map[string]any{
		"index":     index,
		"query":     query,
		"min_score": minScore,
		"limit":     limit,
	})
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		hit := Hit{}
		if node, ok := row["node"].(map[string]any); ok {
			// flattenValue wraps nodes as {labels, properties}.
			if props, ok := node["properties"].(map[string]any); ok {
				hit.Node = props
			} else {
				hit.Node = node
			}
		}
		if labels, ok := row["labels"].([]any); ok {
			for _, label := range labels {
				if name, ok := label.(string); ok {
					hit.Labels = append(hit.Labels, name)
				}
			}
		}
		if score, ok := row["score"].(float64); ok {
			hit.Score = score
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// flattenRecord converts driver graph values (nodes, relationships) into plain
// maps so rows serialize cleanly and callers never depend on driver types.
func flattenRecord(row map[string]any) Record {
	out := make(Record, len(row))
	for key, value := range row {
		out[key] = flattenValue(value)
	}
	return out
}

func flattenValue(value any) any {
	switch v := value.(type) {
	case neo4j.Node:
		return map[string]any{
			"labels":     v.Labels,
			"properties": v.Props,
		}
	case neo4j.Relationship:
		return map[string]any{
			"type":       v.Type,
			"properties": v.Props,
		}
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = flattenValue(item)
		}
		return items
	case map[string]any:
		return flattenRecord(v)
	default:
		return value
	}
}
