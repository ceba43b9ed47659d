package nl2cypher

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"medgraph-search/internal/entity"
	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/graphschema"
	"medgraph-search/internal/logging"
	"medgraph-search/internal/observability"
)

// DefaultMaxRepairAttempts bounds the repair loop. Validation errors are
// deterministic, so more attempts buy little.
const DefaultMaxRepairAttempts = 3

// resolver is the slice of entity.Resolver the pipeline needs.
type resolver interface {
	Resolve(ctx context.Context, mentions entity.Mentions) map[string]entity.Ref
}

// Config wires a pipeline.
type Config struct {
	Resolver   resolver
	Translator Translator
	Executor   graphdb.Executor
	// Schema returns the current schema snapshot, called once per request.
	Schema  func() *graphschema.Schema
	Logger  *logging.Logger
	Metrics *observability.SearchMetrics
	// MaxRepairAttempts overrides DefaultMaxRepairAttempts when positive.
	MaxRepairAttempts int
	// RequestTimeout bounds the whole translate/validate/repair loop.
	// Zero disables the deadline.
	RequestTimeout time.Duration
}

// Result is the outcome of a successful pipeline run.
type Result struct {
	Question string                `json:"question"`
	Cypher   string                `json:"cypher"`
	Bindings map[string]entity.Ref `json:"bindings,omitempty"`
	// Attempts counts repair cycles consumed; zero means the first draft held.
	Attempts int           `json:"attempts"`
	Status   Status        `json:"status"`
	Rows     []graphdb.Record `json:"rows,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Pipeline runs the full question-to-Cypher flow.
type Pipeline struct {
	resolver       resolver
	translator     Translator
	validator      *Validator
	exec           graphdb.Executor
	schema         func() *graphschema.Schema
	logger         *logging.Logger
	metrics        *observability.SearchMetrics
	maxAttempts    int
	requestTimeout time.Duration
}

// New returns a pipeline.
func New(cfg Config) *Pipeline {
	maxAttempts := cfg.MaxRepairAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxRepairAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &logging.Logger{Logger: slog.Default()}
	}
	return &Pipeline{
		resolver:       cfg.Resolver,
		translator:     cfg.Translator,
		validator:      NewValidator(cfg.Executor, cfg.Schema),
		exec:           cfg.Executor,
		schema:         cfg.Schema,
		logger:         logger.WithFields(slog.String("component", "nl2cypher")),
		metrics:        cfg.Metrics,
		maxAttempts:    maxAttempts,
		requestTimeout: cfg.RequestTimeout,
	}
}

// ToCypher produces a validated Cypher query for the question without
// executing it.
func (p *Pipeline) ToCypher(ctx context.Context, question string) (*Result, error) {
	if p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.translate(ctx, question)
	p.recordSearch(ctx, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Search produces a validated Cypher query and executes it.
func (p *Pipeline) Search(ctx context.Context, question string) (*Result, error) {
	if p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := p.translate(ctx, question)
	if err != nil {
		p.recordSearch(ctx, time.Since(start), err)
		return nil, err
	}

	rows, runErr := p.exec.Run(ctx, result.Cypher, nil)
	if runErr != nil {
		err := &ExecutionError{Cypher: result.Cypher, Cause: runErr}
		p.recordSearch(ctx, time.Since(start), err)
		return nil, err
	}
	result.Rows = rows
	result.Duration = time.Since(start)
	p.recordSearch(ctx, result.Duration, nil)
	if p.metrics != nil {
		p.metrics.RecordResultsCount(ctx, int64(len(rows)))
	}
	return result, nil
}

// Validate dry-runs a caller-supplied query without generation.
func (p *Pipeline) Validate(ctx context.Context, cypher string) *ValidationError {
	return p.validator.Validate(ctx, cypher)
}

func (p *Pipeline) translate(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, &GenerationError{Message: "empty question"}
	}

	bindings := p.resolveBindings(ctx, question)
	schemaBlock := p.schema().PromptBlock()

	raw, err := p.translator.Translate(ctx, question, schemaBlock, bindings)
	if err != nil {
		return nil, &GenerationError{Message: "model call failed", Cause: err}
	}
	cypher := SubstituteBindings(strings.TrimSpace(raw), bindings)
	if cypher == "" {
		return nil, &GenerationError{Message: "model returned an empty query"}
	}

	draft := Draft{Cypher: cypher, Status: StatusUnvalidated}
	for {
		draft.Status = StatusValidating
		verr := p.validator.Validate(ctx, draft.Cypher)
		if verr == nil {
			draft.Status = StatusValid
			break
		}
		draft.LastErr = verr
		p.recordValidationFailure(ctx, verr)

		if draft.Attempt >= p.maxAttempts {
			draft.Status = StatusFailed
			p.logger.Warn("repair budget exhausted",
				slog.Int("attempts", draft.Attempt),
				slog.String("kind", string(verr.Kind)),
			)
			return nil, &RepairExhaustedError{Attempts: draft.Attempt, Cypher: draft.Cypher, Last: verr}
		}

		draft.Status = StatusInvalid
		p.logger.Debug("repairing draft",
			slog.Int("attempt", draft.Attempt+1),
			slog.String("kind", string(verr.Kind)),
			slog.String("error", verr.Message),
		)
		fixed, err := p.translator.Repair(ctx, question, draft.Cypher, verr)
		if err != nil {
			return nil, &GenerationError{Message: "repair call failed", Cause: err}
		}
		draft.Cypher = SubstituteBindings(strings.TrimSpace(fixed), bindings)
		draft.Attempt++
	}

	if p.metrics != nil {
		p.metrics.RecordRepairAttempts(ctx, draft.Attempt)
	}
	return &Result{
		Question: question,
		Cypher:   draft.Cypher,
		Bindings: bindings,
		Attempts: draft.Attempt,
		Status:   draft.Status,
	}, nil
}

// resolveBindings extracts and resolves entity mentions. Extraction failures
// degrade to an unbound translation rather than failing the request.
func (p *Pipeline) resolveBindings(ctx context.Context, question string) map[string]entity.Ref {
	mentions, err := p.translator.Extract(ctx, question)
	if err != nil {
		p.logger.Warn("entity extraction failed, translating without bindings",
			slog.String("error", err.Error()),
		)
		return nil
	}
	bindings := p.resolver.Resolve(ctx, mentions)
	if p.metrics != nil {
		for _, ref := range bindings {
			p.metrics.RecordResolverMatch(ctx, string(ref.Kind))
		}
	}
	return bindings
}

func (p *Pipeline) recordSearch(ctx context.Context, duration time.Duration, err error) {
	if p.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = ErrorKind(err)
	}
	p.metrics.RecordSearch(ctx, duration, status)
}

func (p *Pipeline) recordValidationFailure(ctx context.Context, verr *ValidationError) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordValidationFailure(ctx, string(verr.Kind))
}
