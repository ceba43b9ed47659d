package graphdb

import (
	"fmt"
	"regexp"
	"strings"
)

// Clauses that mutate the graph. This subsystem only ever reads, so drafts
// containing any of these are rejected before they reach the engine.
var forbiddenClauses = []string{
	"CREATE",
	"MERGE",
	"DELETE",
	"DETACH",
	"REMOVE",
	"SET",
	"DROP",
	"LOAD CSV",
}

var forbiddenPattern = buildForbiddenPattern()

func buildForbiddenPattern() *regexp.Regexp {
	alternatives := make([]string, len(forbiddenClauses))
	for i, clause := range forbiddenClauses {
		alternatives[i] = strings.ReplaceAll(clause, " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(alternatives, "|") + `)\b`)
}

// EnsureReadOnly rejects queries containing mutating clauses. The check is
// lexical: string literals can false-positive, which is acceptable for
// generated queries that have no business quoting clause keywords.
func EnsureReadOnly(cypher string) error {
	if match := forbiddenPattern.FindString(cypher); match != "" {
		return fmt.Errorf("query contains forbidden clause %s: only read queries are allowed", strings.ToUpper(normalizeSpaces(match)))
	}
	return nil
}

func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
