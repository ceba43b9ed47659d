package nl2cypher

import (
	"context"
	"fmt"
	"regexp"

	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/graphschema"
)

// Patterns for label and relationship-type references in a draft. Lexical
// extraction is enough here: generated queries use plain MATCH patterns, and
// a false miss only defers the failure to execution.
var (
	nodeLabelPattern = regexp.MustCompile(`\(\s*\w*\s*:\s*` + "`?" + `([A-Za-z_][A-Za-z0-9_]*)` + "`?")
	relTypePattern   = regexp.MustCompile(`\[\s*\w*\s*:\s*` + "`?" + `([A-Za-z_][A-Za-z0-9_]*)` + "`?")
	propertyPattern  = regexp.MustCompile(`\b[A-Za-z_]\w*\.([A-Za-z_][A-Za-z0-9_]*)`)
)

// Validator checks a draft without executing it: read-only guard, schema
// reference check, then an EXPLAIN dry run against the live graph.
type Validator struct {
	exec   graphdb.Executor
	schema func() *graphschema.Schema
}

// NewValidator returns a validator. The schema function is called per
// validation so drafts always check against the current snapshot.
func NewValidator(exec graphdb.Executor, schema func() *graphschema.Schema) *Validator {
	return &Validator{exec: exec, schema: schema}
}

// Validate returns nil when the draft is safe and acceptable to the engine.
func (v *Validator) Validate(ctx context.Context, cypher string) *ValidationError {
	if err := graphdb.EnsureReadOnly(cypher); err != nil {
		return &ValidationError{Kind: ValidationOther, Message: err.Error()}
	}

	if verr := v.checkSchemaReferences(cypher); verr != nil {
		return verr
	}

	if err := v.exec.Explain(ctx, cypher); err != nil {
		return classifyGraphError(err)
	}
	return nil
}

// checkSchemaReferences rejects labels and relationship types absent from the
// schema. EXPLAIN compiles such queries without complaint and they silently
// match nothing, so the check has to happen here.
func (v *Validator) checkSchemaReferences(cypher string) *ValidationError {
	schema := v.schema()
	if schema == nil || len(schema.Labels) == 0 {
		return nil
	}

	for _, match := range nodeLabelPattern.FindAllStringSubmatch(cypher, -1) {
		if label := match[1]; !schema.HasLabel(label) {
			return &ValidationError{
				Kind:    ValidationUnknownLabel,
				Message: fmt.Sprintf("label %s does not exist in the graph", label),
			}
		}
	}
	for _, match := range relTypePattern.FindAllStringSubmatch(cypher, -1) {
		if relType := match[1]; !schema.HasRelationshipType(relType) {
			return &ValidationError{
				Kind:    ValidationUnknownLabel,
				Message: fmt.Sprintf("relationship type %s does not exist in the graph", relType),
			}
		}
	}
	return v.checkPropertyReferences(cypher, schema)
}

// checkPropertyReferences rejects variable.property accesses whose property
// name no label carries. Like unknown labels, these compile under EXPLAIN
// and silently match nothing. The check is lexical: string literals are
// blanked first, and matches continuing with "(" or "." are function calls
// or namespaces, not property accesses.
func (v *Validator) checkPropertyReferences(cypher string, schema *graphschema.Schema) *ValidationError {
	if !schemaHasProperties(schema) {
		return nil
	}

	stripped := blankStringLiterals(cypher)
	for _, match := range propertyPattern.FindAllStringSubmatchIndex(stripped, -1) {
		end := match[1]
		if end < len(stripped) && (stripped[end] == '(' || stripped[end] == '.') {
			continue
		}
		property := stripped[match[2]:match[3]]
		if !schema.HasProperty(property) {
			return &ValidationError{
				Kind:    ValidationUnknownProperty,
				Message: fmt.Sprintf("property %s does not exist on any node type", property),
			}
		}
	}
	return nil
}

// schemaHasProperties reports whether introspection observed any property at
// all. A property-less snapshot would flag every access, so the pass defers
// to EXPLAIN instead.
func schemaHasProperties(schema *graphschema.Schema) bool {
	for _, label := range schema.Labels {
		if len(label.Properties) > 0 {
			return true
		}
	}
	return false
}

// blankStringLiterals replaces quoted literal contents with spaces so lexical
// passes never match text like 'visit to example.com'. Offsets are preserved.
func blankStringLiterals(cypher string) string {
	out := []byte(cypher)
	var quote byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case quote == 0 && (c == '\'' || c == '"'):
			quote = c
		case quote != 0 && c == '\\':
			out[i] = ' '
			if i+1 < len(out) {
				out[i+1] = ' '
			}
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote != 0:
			out[i] = ' '
		}
	}
	return string(out)
}
