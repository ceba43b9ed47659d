package nl2cypher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// ValidationKind classifies why a draft failed validation. The kind steers
// the repair prompt toward the right class of fix.
type ValidationKind string

const (
	ValidationSyntax          ValidationKind = "syntax"
	ValidationUnknownLabel    ValidationKind = "unknown_label"
	ValidationUnknownProperty ValidationKind = "unknown_property"
	ValidationUnknownFunction ValidationKind = "unknown_function"
	ValidationTypeMismatch    ValidationKind = "type_mismatch"
	ValidationOther           ValidationKind = "other"
)

// ValidationError is a structured validation failure.
type ValidationError struct {
	Kind    ValidationKind `json:"kind"`
	Message string         `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// GenerationError means the model produced no usable draft. Fatal; there is
// nothing to repair.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Message, e.Cause)
	}
	return "generation failed: " + e.Message
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// RepairExhaustedError is the terminal failure after the repair budget is
// spent. It carries the last draft and the error that killed it so callers
// can surface both.
type RepairExhaustedError struct {
	Attempts int
	Cypher   string
	Last     *ValidationError
}

func (e *RepairExhaustedError) Error() string {
	return fmt.Sprintf("query still invalid after %d repair attempts: %s", e.Attempts, e.Last.Message)
}

func (e *RepairExhaustedError) Unwrap() error { return e.Last }

// ExecutionError means a validated query failed at execution time.
type ExecutionError struct {
	Cypher string
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// ErrorKind returns the taxonomy name for a pipeline error, for failure
// responses and metrics labels.
func ErrorKind(err error) string {
	var genErr *GenerationError
	var exhausted *RepairExhaustedError
	var execErr *ExecutionError
	var valErr *ValidationError
	switch {
	case errors.As(err, &genErr):
		return "generation_failure"
	case errors.As(err, &exhausted):
		return "repair_exhausted"
	case errors.As(err, &execErr):
		return "execution_error"
	case errors.As(err, &valErr):
		return "validation_error"
	default:
		return "internal"
	}
}

// classifyGraphError maps a driver error from EXPLAIN into the taxonomy.
func classifyGraphError(err error) *ValidationError {
	message := err.Error()
	kind := ValidationOther

	var neoErr *db.Neo4jError
	if errors.As(err, &neoErr) {
		message = neoErr.Msg
		switch {
		case strings.HasSuffix(neoErr.Code, "SyntaxError"):
			kind = ValidationSyntax
		case strings.HasSuffix(neoErr.Code, "TypeError"):
			kind = ValidationTypeMismatch
		}
	}

	// The engine reports some semantic failures only through the message text.
	lower := strings.ToLower(message)
	switch {
	case kind != ValidationOther:
	case strings.Contains(lower, "unknown function"):
		kind = ValidationUnknownFunction
	case strings.Contains(lower, "type mismatch"):
		kind = ValidationTypeMismatch
	case strings.Contains(lower, "invalid input"), strings.Contains(lower, "unexpected"):
		kind = ValidationSyntax
	}

	return &ValidationError{Kind: kind, Message: message}
}
