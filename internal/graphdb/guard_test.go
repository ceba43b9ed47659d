package graphdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureReadOnly_AllowsReadQueries(t *testing.T) {
	queries := []string{
		"MATCH (p:Patient) RETURN p LIMIT 10",
		"MATCH (p:Patient {uuid: 'abc'})-[:HAS_ENCOUNTER]->(e) RETURN e",
		"MATCH (n) WHERE n.name CONTAINS 'offset' RETURN count(n)",
		"EXPLAIN MATCH (n) RETURN n",
	}
	for _, q := range queries {
		assert.NoError(t, EnsureReadOnly(q), q)
	}
}

func TestEnsureReadOnly_RejectsMutations(t *testing.T) {
	queries := map[string]string{
		"CREATE (n:Patient {name: 'x'})":                  "CREATE",
		"MATCH (n) DETACH DELETE n":                       "DETACH",
		"MATCH (n) SET n.name = 'y' RETURN n":             "SET",
		"merge (n:Disease {code: 'E11'})":                 "MERGE",
		"MATCH (n) REMOVE n.name RETURN n":                "REMOVE",
		"DROP INDEX patient_search":                       "DROP",
		"LOAD    CSV FROM 'file:///x.csv' AS row RETURN row": "LOAD CSV",
	}
	for q, clause := range queries {
		err := EnsureReadOnly(q)
		assert.Error(t, err, q)
		assert.Contains(t, err.Error(), clause)
	}
}

func TestEnsureReadOnly_DoesNotMatchSubstrings(t *testing.T) {
	// Keywords embedded in identifiers or values must not trip the guard.
	queries := []string{
		"MATCH (n:Dataset) RETURN n.offset_created",
		"MATCH (n) WHERE n.category = 'reset' RETURN n",
		"MATCH (n:MergeRequest) RETURN n",
	}
	for _, q := range queries {
		assert.NoError(t, EnsureReadOnly(q), q)
	}
}
