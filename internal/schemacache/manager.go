// Package schemacache maintains an in-memory snapshot of the graph schema and
// refreshes it in the background when the graph's structure changes.
package schemacache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/graphschema"
	"medgraph-search/internal/logging"
	"medgraph-search/internal/observability"
)

// Snapshot contains an immutable view of the current schema state.
type Snapshot struct {
	Schema      *graphschema.Schema
	Fingerprint string
	BuiltAt     time.Time
}

// Config controls schema refresh behavior.
type Config struct {
	Executor    graphdb.Executor
	Logger      *logging.Logger
	Metrics     *observability.SchemaRefreshMetrics
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Manager maintains and refreshes schema snapshots.
type Manager struct {
	executor    graphdb.Executor
	logger      *logging.Logger
	metrics     *observability.SchemaRefreshMetrics
	minInterval time.Duration
	maxInterval time.Duration
	active      atomic.Value
	wg          sync.WaitGroup
}

// NewManager builds the initial schema snapshot and returns a manager.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("schema cache manager requires a graph executor")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	minInterval := cfg.MinInterval
	maxInterval := cfg.MaxInterval
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	if maxInterval <= 0 {
		maxInterval = 5 * time.Minute
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}

	manager := &Manager{
		executor:    cfg.Executor,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_cache")),
		metrics:     cfg.Metrics,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}

	start := time.Now()
	snapshot, err := manager.buildSnapshot(ctx)
	if err != nil {
		manager.recordRefresh(time.Since(start), false, "startup")
		return nil, err
	}
	manager.active.Store(snapshot)
	manager.recordRefresh(time.Since(start), true, "startup")

	return manager, nil
}

// Start begins the background refresh loop.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// CurrentSnapshot returns the active schema snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	if value := m.active.Load(); value != nil {
		return value.(*Snapshot)
	}
	return nil
}

// CurrentSchema returns the active schema, never nil once NewManager succeeds.
func (m *Manager) CurrentSchema() *graphschema.Schema {
	snapshot := m.CurrentSnapshot()
	if snapshot == nil {
		return &graphschema.Schema{}
	}
	return snapshot.Schema
}

// RefreshNow forces a schema rebuild and swap.
func (m *Manager) RefreshNow() error {
	return m.RefreshNowContext(context.Background())
}

// RefreshNowContext forces a schema rebuild and swap with context support.
func (m *Manager) RefreshNowContext(ctx context.Context) error {
	start := time.Now()
	snapshot, err := m.buildSnapshot(ctx)
	if err != nil {
		m.recordRefresh(time.Since(start), false, "manual")
		return err
	}
	m.active.Store(snapshot)
	m.recordRefresh(time.Since(start), true, "manual")
	return nil
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			m.refreshOnce(ctx, &interval)
			timer.Reset(interval)
		}
	}
}

func (m *Manager) refreshOnce(ctx context.Context, interval *time.Duration) {
	start := time.Now()
	snapshot, err := m.buildSnapshot(ctx)
	if err != nil {
		m.logger.Warn("schema refresh failed", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, "poll")
		*interval = m.minInterval
		return
	}

	current := m.CurrentSnapshot()
	if current != nil && snapshot.Fingerprint == current.Fingerprint {
		m.recordRefresh(time.Since(start), true, "poll_no_change")
		*interval = nextInterval(*interval, m.minInterval, m.maxInterval)
		return
	}

	m.active.Store(snapshot)
	*interval = m.minInterval
	m.recordRefresh(time.Since(start), true, "poll")
	m.logger.Info("schema change detected, snapshot swapped",
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Int("labels", len(snapshot.Schema.Labels)),
		slog.Int("relationships", len(snapshot.Schema.Relationships)),
		slog.Int("fulltext_indexes", len(snapshot.Schema.FullTextIndexes)),
	)
}

func (m *Manager) buildSnapshot(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	schema, err := graphschema.Introspect(ctx, m.executor)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect graph schema: %w", err)
	}
	m.logger.Debug("schema snapshot built",
		slog.Duration("duration", time.Since(start)),
		slog.Int("labels", len(schema.Labels)),
	)
	return &Snapshot{
		Schema:      schema,
		Fingerprint: schema.Fingerprint(),
		BuiltAt:     time.Now(),
	}, nil
}

func (m *Manager) recordRefresh(duration time.Duration, success bool, trigger string) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(context.Background(), duration, success, trigger)
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}
