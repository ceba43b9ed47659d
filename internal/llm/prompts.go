package llm

import (
	"fmt"
	"sort"
	"strings"

	"medgraph-search/internal/entity"
	"medgraph-search/internal/nl2cypher"
)

func translatePrompt(question, schemaBlock string, bindings map[string]entity.Ref) string {
	var b strings.Builder
	b.WriteString("Convert this natural language query to a Neo4j Cypher query.\n\n")
	b.WriteString(schemaBlock)
	b.WriteString(bindingBlock(bindings))
	b.WriteString(`
## Important:
1. Where a mapped entity's identifier belongs, write its placeholder exactly as given; it will be replaced with the quoted uuid
2. Return only nodes and relationships that exist
3. Use MATCH, not CREATE or MERGE
4. Include relevant properties in RETURN
5. Limit results appropriately (default 50)

`)
	fmt.Fprintf(&b, "Natural Language Query: %s\n\n", question)
	b.WriteString("Return ONLY the Cypher query, no explanation or markdown:")
	return b.String()
}

func bindingBlock(bindings map[string]entity.Ref) string {
	if len(bindings) == 0 {
		return ""
	}
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("\n## Mapped Entities (use these placeholders in the query):\n")
	for _, name := range names {
		ref := bindings[name]
		fmt.Fprintf(&b, "- '%s' -> %s, placeholder: %s\n", name, ref.Type, nl2cypher.Placeholder(name))
	}
	return b.String()
}

func repairPrompt(question, cypher string, cause *nl2cypher.ValidationError) string {
	return fmt.Sprintf(`Fix this Cypher query error.

Original natural language query: %s

Cypher query with error:
%s

Error (%s):
%s

Common fixes:
- Variable naming issues: ensure variables are defined before use
- Property access: use node.property not node['property']
- Relationship syntax: use -[r:TYPE]-> not -[:TYPE]-
- Identifier matching: use WHERE n.uuid = 'value' not WHERE n.uuid = value
- RETURN clause: ensure all used variables are returned or aggregated
- Only use node labels and relationship types from the schema

Return ONLY the fixed Cypher query:`, question, cypher, cause.Kind, cause.Message)
}

func extractPrompt(question string) string {
	return fmt.Sprintf(`Extract medical entities from this query.

Query: %s

Identify and categorize entities into these types:
- patients (names of patients)
- clinicians (names of doctors/nurses)
- diseases (disease names or ICD codes)
- symptoms (symptom descriptions)
- medications (drug names)
- procedures (procedure names)
- tests (test names)

Return as JSON with entity type as key and list of entity names as value.
Example: {"patients": ["John Doe"], "diseases": ["diabetes"]}

Return ONLY valid JSON:`, question)
}
