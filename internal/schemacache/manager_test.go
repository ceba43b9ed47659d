package schemacache

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	labels []string
}

func (f *fakeExecutor) Run(_ context.Context, cypher string, _ map[string]any) ([]graphdb.Record, error) {
	if strings.Contains(cypher, "db.labels()") {
		rows := make([]graphdb.Record, 0, len(f.labels))
		for _, label := range f.labels {
			rows = append(rows, graphdb.Record{"label": label})
		}
		return rows, nil
	}
	return nil, nil
}

func (f *fakeExecutor) Explain(context.Context, string) error { return nil }

func (f *fakeExecutor) FullTextQuery(context.Context, string, string, float64, int) ([]graphdb.Hit, error) {
	return nil, nil
}

func testLogger() *logging.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &logging.Logger{Logger: slog.New(handler)}
}

func TestNewManager_BuildsInitialSnapshot(t *testing.T) {
	exec := &fakeExecutor{labels: []string{"Patient", "Disease"}}
	manager, err := NewManager(t.Context(), Config{Executor: exec, Logger: testLogger()})
	require.NoError(t, err)

	snapshot := manager.CurrentSnapshot()
	require.NotNil(t, snapshot)
	assert.NotEmpty(t, snapshot.Fingerprint)
	assert.True(t, snapshot.Schema.HasLabel("Patient"))
	assert.False(t, snapshot.BuiltAt.IsZero())
}

func TestRefreshOnce_NoChange_BacksOff(t *testing.T) {
	exec := &fakeExecutor{labels: []string{"Patient"}}
	manager, err := NewManager(t.Context(), Config{
		Executor:    exec,
		Logger:      testLogger(),
		MinInterval: 10 * time.Second,
		MaxInterval: time.Minute,
	})
	require.NoError(t, err)

	before := manager.CurrentSnapshot()
	interval := 10 * time.Second
	manager.refreshOnce(t.Context(), &interval)

	assert.Equal(t, 15*time.Second, interval)
	assert.Same(t, before, manager.CurrentSnapshot())
}

func TestRefreshOnce_Change_SwapsAndResetsInterval(t *testing.T) {
	exec := &fakeExecutor{labels: []string{"Patient"}}
	manager, err := NewManager(t.Context(), Config{
		Executor:    exec,
		Logger:      testLogger(),
		MinInterval: 10 * time.Second,
		MaxInterval: time.Minute,
	})
	require.NoError(t, err)
	before := manager.CurrentSnapshot()

	exec.labels = append(exec.labels, "Medication")
	interval := 45 * time.Second
	manager.refreshOnce(t.Context(), &interval)

	assert.Equal(t, 10*time.Second, interval)
	after := manager.CurrentSnapshot()
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.True(t, after.Schema.HasLabel("Medication"))
}

func TestRefreshNow_SwapsSnapshot(t *testing.T) {
	exec := &fakeExecutor{labels: []string{"Patient"}}
	manager, err := NewManager(t.Context(), Config{Executor: exec, Logger: testLogger()})
	require.NoError(t, err)

	exec.labels = []string{"Patient", "Clinician"}
	require.NoError(t, manager.RefreshNowContext(t.Context()))
	assert.True(t, manager.CurrentSchema().HasLabel("Clinician"))
}

func TestNextInterval(t *testing.T) {
	minInterval := 10 * time.Second
	maxInterval := time.Minute

	assert.Equal(t, minInterval, nextInterval(time.Second, minInterval, maxInterval))
	assert.Equal(t, 15*time.Second, nextInterval(10*time.Second, minInterval, maxInterval))
	assert.Equal(t, maxInterval, nextInterval(50*time.Second, minInterval, maxInterval))
}
