package nl2cypher

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"medgraph-search/internal/entity"
)

// Translator is the model behind the pipeline. Implementations are stateless;
// every call carries its full context.
type Translator interface {
	// Extract pulls typed entity mentions out of the question.
	Extract(ctx context.Context, question string) (entity.Mentions, error)
	// Translate turns the question into a Cypher draft. Resolved bindings are
	// presented to the model as placeholders, never as raw identifiers.
	Translate(ctx context.Context, question, schemaBlock string, bindings map[string]entity.Ref) (string, error)
	// Repair produces a corrected draft from a validation failure.
	Repair(ctx context.Context, question, cypher string, cause *ValidationError) (string, error)
}

// Placeholder returns the token the model writes where a bound entity's
// identifier belongs, e.g. $entity:John Doe$.
func Placeholder(name string) string {
	return "$entity:" + name + "$"
}

// SubstituteBindings replaces entity placeholders in a draft with the quoted
// resolved identifiers. Identifier choice is never left to the model: even if
// it echoes a uuid from the prompt, the placeholder pass is what binds.
func SubstituteBindings(cypher string, bindings map[string]entity.Ref) string {
	if len(bindings) == 0 {
		return cypher
	}
	// Longest names first so overlapping mentions cannot partially rewrite
	// each other.
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		ref := bindings[name]
		if ref.ID == "" {
			continue
		}
		cypher = strings.ReplaceAll(cypher, Placeholder(name), fmt.Sprintf("'%s'", ref.ID))
	}
	return cypher
}
