package nl2cypher

import (
	"errors"
	"testing"

	"medgraph-search/internal/entity"
	"medgraph-search/internal/graphschema"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clinicalSchema() *graphschema.Schema {
	return &graphschema.Schema{
		Labels: []graphschema.Label{
			{Name: "Patient", Properties: []graphschema.Property{{Name: "uuid"}, {Name: "name"}}},
			{Name: "Encounter"},
			{Name: "Disease"},
		},
		Relationships: []graphschema.RelationshipPattern{
			{Type: "HAS_ENCOUNTER", From: "Patient", To: "Encounter"},
			{Type: "DIAGNOSED_AS", From: "Encounter", To: "Disease"},
		},
	}
}

func TestValidate_RejectsMutatingDraft(t *testing.T) {
	validator := NewValidator(&fakeExec{}, clinicalSchema)

	verr := validator.Validate(t.Context(), "MATCH (n) DETACH DELETE n")
	require.NotNil(t, verr)
	assert.Equal(t, ValidationOther, verr.Kind)
	assert.Contains(t, verr.Message, "DETACH")
}

func TestValidate_UnknownLabel(t *testing.T) {
	exec := &fakeExec{}
	validator := NewValidator(exec, clinicalSchema)

	verr := validator.Validate(t.Context(), "MATCH (s:Starship) RETURN s")
	require.NotNil(t, verr)
	assert.Equal(t, ValidationUnknownLabel, verr.Kind)
	assert.Contains(t, verr.Message, "Starship")
	// Schema check fails before the dry run reaches the graph.
	assert.Equal(t, 0, exec.explainCalls)
}

func TestValidate_UnknownRelationshipType(t *testing.T) {
	validator := NewValidator(&fakeExec{}, clinicalSchema)

	verr := validator.Validate(t.Context(), "MATCH (p:Patient)-[:PRESCRIBED_BY]->(e:Encounter) RETURN p")
	require.NotNil(t, verr)
	assert.Equal(t, ValidationUnknownLabel, verr.Kind)
	assert.Contains(t, verr.Message, "PRESCRIBED_BY")
}

func TestValidate_KnownReferencesPassToExplain(t *testing.T) {
	exec := &fakeExec{}
	validator := NewValidator(exec, clinicalSchema)

	verr := validator.Validate(t.Context(), "MATCH (p:Patient)-[r:HAS_ENCOUNTER]->(e:Encounter) RETURN p, e")
	assert.Nil(t, verr)
	assert.Equal(t, 1, exec.explainCalls)
}

func TestValidate_UnknownProperty(t *testing.T) {
	exec := &fakeExec{}
	validator := NewValidator(exec, clinicalSchema)

	verr := validator.Validate(t.Context(), "MATCH (p:Patient) RETURN p.birthweight")
	require.NotNil(t, verr)
	assert.Equal(t, ValidationUnknownProperty, verr.Kind)
	assert.Contains(t, verr.Message, "birthweight")
	assert.Equal(t, 0, exec.explainCalls)
}

func TestValidate_KnownPropertiesPass(t *testing.T) {
	exec := &fakeExec{}
	validator := NewValidator(exec, clinicalSchema)

	verr := validator.Validate(t.Context(), "MATCH (p:Patient) WHERE p.name = 'John' RETURN p.uuid")
	assert.Nil(t, verr)
	assert.Equal(t, 1, exec.explainCalls)
}

func TestValidate_PropertyCheckSkipsFunctionCalls(t *testing.T) {
	exec := &fakeExec{}
	validator := NewValidator(exec, clinicalSchema)

	verr := validator.Validate(t.Context(), "MATCH (p:Patient) RETURN duration.between(p.name, p.name)")
	assert.Nil(t, verr)
}

func TestValidate_PropertyCheckIgnoresStringLiterals(t *testing.T) {
	exec := &fakeExec{}
	validator := NewValidator(exec, clinicalSchema)

	verr := validator.Validate(t.Context(), `MATCH (p:Patient) WHERE p.name = "see note.txt" RETURN p`)
	assert.Nil(t, verr)
}

func TestValidate_PropertyCheckSkippedWithoutObservedProperties(t *testing.T) {
	exec := &fakeExec{}
	schema := func() *graphschema.Schema {
		return &graphschema.Schema{Labels: []graphschema.Label{{Name: "Patient"}}}
	}
	validator := NewValidator(exec, schema)

	verr := validator.Validate(t.Context(), "MATCH (p:Patient) RETURN p.anything")
	assert.Nil(t, verr)
	assert.Equal(t, 1, exec.explainCalls)
}

func TestValidate_EmptySchemaSkipsReferenceCheck(t *testing.T) {
	exec := &fakeExec{}
	validator := NewValidator(exec, emptySchema)

	verr := validator.Validate(t.Context(), "MATCH (s:Starship) RETURN s")
	assert.Nil(t, verr)
	assert.Equal(t, 1, exec.explainCalls)
}

func TestClassifyGraphError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind ValidationKind
	}{
		{
			name: "neo4j syntax code",
			err:  &db.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "Invalid input ')'"},
			kind: ValidationSyntax,
		},
		{
			name: "neo4j type code",
			err:  &db.Neo4jError{Code: "Neo.ClientError.Statement.TypeError", Msg: "expected a node"},
			kind: ValidationTypeMismatch,
		},
		{
			name: "unknown function in message",
			err:  errors.New("Unknown function 'apoc.coll.frobnicate'"),
			kind: ValidationUnknownFunction,
		},
		{
			name: "type mismatch in message",
			err:  errors.New("Type mismatch: expected Integer but was String"),
			kind: ValidationTypeMismatch,
		},
		{
			name: "invalid input in message",
			err:  errors.New("Invalid input 'RETRUN'"),
			kind: ValidationSyntax,
		},
		{
			name: "anything else",
			err:  errors.New("connection refused"),
			kind: ValidationOther,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verr := classifyGraphError(tc.err)
			assert.Equal(t, tc.kind, verr.Kind)
			assert.NotEmpty(t, verr.Message)
		})
	}
}

func TestSubstituteBindings_OverlappingNames(t *testing.T) {
	bindings := map[string]entity.Ref{
		"Jo":       {Name: "Jo", ID: "p-2"},
		"John Doe": {Name: "John Doe", ID: "p-1"},
	}
	cypher := "MATCH (a {uuid: $entity:John Doe$}), (b {uuid: $entity:Jo$}) RETURN a, b"

	got := SubstituteBindings(cypher, bindings)
	assert.Equal(t, "MATCH (a {uuid: 'p-1'}), (b {uuid: 'p-2'}) RETURN a, b", got)
}

func TestSubstituteBindings_UnboundPlaceholderLeftAlone(t *testing.T) {
	got := SubstituteBindings("MATCH (a {uuid: $entity:Nobody$}) RETURN a", map[string]entity.Ref{
		"Nobody": {Name: "Nobody"},
	})
	assert.Contains(t, got, "$entity:Nobody$")
}
