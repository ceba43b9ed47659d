package observability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// QuestionHash returns a short stable hash of the question for correlation.
// Raw question text stays out of span attributes and logs.
func QuestionHash(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])[:12]
}

// SearchSpanAttributes builds canonical span attributes for a search request.
func SearchSpanAttributes(question string, attempts, bindings int, status string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("search.question.hash", QuestionHash(question)),
		attribute.Int("search.repair.attempts", attempts),
		attribute.Int("search.bindings.count", bindings),
		attribute.String("search.status", status),
	}
}

// SearchLogFields builds canonical structured log fields for a search request.
func SearchLogFields(ctx context.Context, question string, attempts int, status string) []any {
	fields := []any{
		slog.String("question_hash", QuestionHash(question)),
		slog.Int("attempts", attempts),
		slog.String("status", status),
	}

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}

	return fields
}
