package nl2cypher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"medgraph-search/internal/entity"
	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/graphschema"
	"medgraph-search/internal/logging"
	"medgraph-search/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeResolver struct {
	refs map[string]entity.Ref
}

func (f *fakeResolver) Resolve(context.Context, entity.Mentions) map[string]entity.Ref {
	return f.refs
}

// fakeTranslator replays scripted outputs.
type fakeTranslator struct {
	mentions    entity.Mentions
	extractErr  error
	translation string
	repairs     []string
	repairCalls int
	lastCause   *ValidationError
}

func (f *fakeTranslator) Extract(context.Context, string) (entity.Mentions, error) {
	return f.mentions, f.extractErr
}

func (f *fakeTranslator) Translate(context.Context, string, string, map[string]entity.Ref) (string, error) {
	return f.translation, nil
}

func (f *fakeTranslator) Repair(_ context.Context, _ string, _ string, cause *ValidationError) (string, error) {
	f.lastCause = cause
	if f.repairCalls < len(f.repairs) {
		fixed := f.repairs[f.repairCalls]
		f.repairCalls++
		return fixed, nil
	}
	f.repairCalls++
	return "MATCH (n) RETURN n", nil
}

// fakeExec scripts Explain outcomes per query string and records Run calls.
type fakeExec struct {
	explainErrs  map[string]error
	explainCalls int
	runCypher    string
	runRows      []graphdb.Record
	runErr       error
}

func (f *fakeExec) Run(_ context.Context, cypher string, _ map[string]any) ([]graphdb.Record, error) {
	f.runCypher = cypher
	return f.runRows, f.runErr
}

func (f *fakeExec) Explain(_ context.Context, cypher string) error {
	f.explainCalls++
	return f.explainErrs[cypher]
}

func (f *fakeExec) FullTextQuery(context.Context, string, string, float64, int) ([]graphdb.Hit, error) {
	return nil, nil
}

func testLogger() *logging.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &logging.Logger{Logger: slog.New(handler)}
}

func emptySchema() *graphschema.Schema { return &graphschema.Schema{} }

func newTestPipeline(translator Translator, exec graphdb.Executor, refs map[string]entity.Ref) *Pipeline {
	return New(Config{
		Resolver:   &fakeResolver{refs: refs},
		Translator: translator,
		Executor:   exec,
		Schema:     emptySchema,
		Logger:     testLogger(),
	})
}

func TestToCypher_ValidFirstTry(t *testing.T) {
	translator := &fakeTranslator{translation: "MATCH (p:Patient) RETURN p LIMIT 50"}
	exec := &fakeExec{}
	pipeline := newTestPipeline(translator, exec, nil)

	result, err := pipeline.ToCypher(t.Context(), "list patients")
	require.NoError(t, err)

	assert.Equal(t, "MATCH (p:Patient) RETURN p LIMIT 50", result.Cypher)
	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, 0, result.Attempts)
	assert.Equal(t, 1, exec.explainCalls)
	assert.Equal(t, 0, translator.repairCalls)
}

func TestToCypher_RepairRecoversFromSyntaxError(t *testing.T) {
	translator := &fakeTranslator{
		translation: "MATCH (p:Patient RETURN p",
		repairs:     []string{"MATCH (p:Patient) RETURN p"},
	}
	exec := &fakeExec{explainErrs: map[string]error{
		"MATCH (p:Patient RETURN p": errors.New("Invalid input 'RETURN'"),
	}}
	pipeline := newTestPipeline(translator, exec, nil)

	result, err := pipeline.ToCypher(t.Context(), "list patients")
	require.NoError(t, err)

	assert.Equal(t, "MATCH (p:Patient) RETURN p", result.Cypher)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 2, exec.explainCalls)
	require.NotNil(t, translator.lastCause)
	assert.Equal(t, ValidationSyntax, translator.lastCause.Kind)
}

func TestToCypher_RepairExhaustion(t *testing.T) {
	translator := &fakeTranslator{
		translation: "BROKEN",
		repairs:     []string{"BROKEN", "BROKEN", "BROKEN"},
	}
	exec := &fakeExec{explainErrs: map[string]error{
		"BROKEN": errors.New("Invalid input 'BROKEN'"),
	}}
	pipeline := newTestPipeline(translator, exec, nil)

	_, err := pipeline.ToCypher(t.Context(), "nonsense")
	require.Error(t, err)

	var exhausted *RepairExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, DefaultMaxRepairAttempts, exhausted.Attempts)
	assert.Equal(t, "BROKEN", exhausted.Cypher)
	require.NotNil(t, exhausted.Last)
	assert.Equal(t, ValidationSyntax, exhausted.Last.Kind)

	// Exactly N repairs and N+1 validations for the default bound.
	assert.Equal(t, DefaultMaxRepairAttempts, translator.repairCalls)
	assert.Equal(t, DefaultMaxRepairAttempts+1, exec.explainCalls)
	assert.Equal(t, "repair_exhausted", ErrorKind(err))
}

func TestToCypher_ConfigurableAttemptBound(t *testing.T) {
	translator := &fakeTranslator{translation: "BROKEN", repairs: []string{"BROKEN"}}
	exec := &fakeExec{explainErrs: map[string]error{"BROKEN": errors.New("bad")}}
	pipeline := New(Config{
		Resolver:          &fakeResolver{},
		Translator:        translator,
		Executor:          exec,
		Schema:            emptySchema,
		Logger:            testLogger(),
		MaxRepairAttempts: 1,
	})

	_, err := pipeline.ToCypher(t.Context(), "nonsense")
	var exhausted *RepairExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, 2, exec.explainCalls)
}

func TestToCypher_EmptyModelOutputIsGenerationFailure(t *testing.T) {
	translator := &fakeTranslator{translation: "   "}
	pipeline := newTestPipeline(translator, &fakeExec{}, nil)

	_, err := pipeline.ToCypher(t.Context(), "list patients")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "generation_failure", ErrorKind(err))
}

func TestToCypher_EmptyQuestionRejected(t *testing.T) {
	pipeline := newTestPipeline(&fakeTranslator{translation: "MATCH (n) RETURN n"}, &fakeExec{}, nil)

	_, err := pipeline.ToCypher(t.Context(), "   ")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
}

func TestToCypher_SubstitutesBindings(t *testing.T) {
	refs := map[string]entity.Ref{
		"John Doe": {Name: "John Doe", Type: "patient", ID: "p-1"},
	}
	translator := &fakeTranslator{
		mentions:    entity.Mentions{"patient": {"John Doe"}},
		translation: "MATCH (p:Patient {uuid: $entity:John Doe$}) RETURN p",
	}
	exec := &fakeExec{}
	pipeline := newTestPipeline(translator, exec, refs)

	result, err := pipeline.ToCypher(t.Context(), "encounters for John Doe")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (p:Patient {uuid: 'p-1'}) RETURN p", result.Cypher)
	assert.Equal(t, refs, result.Bindings)
}

func TestToCypher_ExtractionFailureDegradesToUnbound(t *testing.T) {
	translator := &fakeTranslator{
		extractErr:  errors.New("model unavailable"),
		translation: "MATCH (p:Patient) RETURN p",
	}
	pipeline := newTestPipeline(translator, &fakeExec{}, nil)

	result, err := pipeline.ToCypher(t.Context(), "list patients")
	require.NoError(t, err)
	assert.Empty(t, result.Bindings)
}

func TestSearch_ExecutesValidatedQuery(t *testing.T) {
	translator := &fakeTranslator{translation: "MATCH (p:Patient) RETURN p.name AS name"}
	exec := &fakeExec{runRows: []graphdb.Record{{"name": "John Doe"}}}
	pipeline := newTestPipeline(translator, exec, nil)

	result, err := pipeline.Search(t.Context(), "patient names")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (p:Patient) RETURN p.name AS name", exec.runCypher)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "John Doe", result.Rows[0]["name"])
}

func TestSearch_ExecutionFailureIsExecutionError(t *testing.T) {
	translator := &fakeTranslator{translation: "MATCH (p:Patient) RETURN p"}
	exec := &fakeExec{runErr: errors.New("connection reset")}
	pipeline := newTestPipeline(translator, exec, nil)

	_, err := pipeline.Search(t.Context(), "list patients")
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "execution_error", ErrorKind(err))
}

func TestSearch_RecordsRepairAndResultMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	metrics, err := observability.InitSearchMetrics()
	require.NoError(t, err)

	translator := &fakeTranslator{
		translation: "MATCH (p:Patient RETURN p",
		repairs:     []string{"MATCH (p:Patient) RETURN p"},
	}
	exec := &fakeExec{
		explainErrs: map[string]error{"MATCH (p:Patient RETURN p": errors.New("Invalid input 'RETURN'")},
		runRows:     []graphdb.Record{{"p": "a"}, {"p": "b"}},
	}
	pipeline := New(Config{
		Resolver:   &fakeResolver{},
		Translator: translator,
		Executor:   exec,
		Schema:     emptySchema,
		Logger:     testLogger(),
		Metrics:    metrics,
	})

	result, err := pipeline.Search(t.Context(), "list patients")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	attempts := collectedHistogram(t, rm, "search.repair.attempts")
	assert.Equal(t, int64(1), attempts.DataPoints[0].Sum)
	results := collectedHistogram(t, rm, "search.results.count")
	assert.Equal(t, int64(2), results.DataPoints[0].Sum)
}

func collectedHistogram(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Histogram[int64] {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[int64])
			require.True(t, ok, "metric %s is not an int64 histogram", name)
			require.NotEmpty(t, hist.DataPoints)
			return hist
		}
	}
	t.Fatalf("metric %s was not recorded", name)
	return metricdata.Histogram[int64]{}
}

func TestToCypher_Deterministic(t *testing.T) {
	build := func() (*Result, error) {
		translator := &fakeTranslator{
			mentions:    entity.Mentions{"disease": {"diabetes"}},
			translation: "MATCH (d:Disease {uuid: $entity:diabetes$}) RETURN d",
		}
		refs := map[string]entity.Ref{"diabetes": {Name: "diabetes", Type: "disease", ID: "d-1"}}
		return newTestPipeline(translator, &fakeExec{}, refs).ToCypher(t.Context(), "who has diabetes")
	}

	first, err := build()
	require.NoError(t, err)
	second, err := build()
	require.NoError(t, err)
	assert.Equal(t, first.Cypher, second.Cypher)
	assert.Equal(t, first.Attempts, second.Attempts)
}
