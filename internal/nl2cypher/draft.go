// Package nl2cypher turns natural-language questions into validated read-only
// Cypher queries. A model translates the question, the result is dry-run
// validated against the live graph, and validation failures are fed back to
// the model for a bounded number of repair attempts.
package nl2cypher

// Status tracks a draft through the validation/repair state machine.
type Status string

const (
	// StatusUnvalidated is a freshly generated draft.
	StatusUnvalidated Status = "unvalidated"
	// StatusValidating is a draft currently under the dry run.
	StatusValidating Status = "validating"
	// StatusValid is a draft that passed validation and may execute.
	StatusValid Status = "valid"
	// StatusInvalid is a draft that failed validation and awaits repair.
	StatusInvalid Status = "invalid"
	// StatusFailed is terminal: the repair budget is spent.
	StatusFailed Status = "failed"
)

// Draft is one candidate Cypher query moving through the loop.
type Draft struct {
	Cypher  string           `json:"cypher"`
	Status  Status           `json:"status"`
	Attempt int              `json:"attempt"`
	LastErr *ValidationError `json:"last_error,omitempty"`
}
