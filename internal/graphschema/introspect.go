package graphschema

import (
	"context"
	"fmt"

	"medgraph-search/internal/graphdb"
)

// relationshipSampleLimit caps the pattern discovery scan. Distinct label/type
// combinations in a modelled graph number in the dozens, not thousands.
const relationshipSampleLimit = 1000

// Introspect reads the graph's structure through the executor. All queries are
// metadata procedures or bounded scans, safe against large graphs.
func Introspect(ctx context.Context, exec graphdb.Executor) (*Schema, error) {
	schema := &Schema{}

	labels, err := introspectLabels(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect labels: %w", err)
	}
	schema.Labels = labels

	relationships, err := introspectRelationships(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect relationships: %w", err)
	}
	schema.Relationships = relationships

	indexes, err := introspectFullTextIndexes(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect full-text indexes: %w", err)
	}
	schema.FullTextIndexes = indexes

	schema.normalize()
	return schema, nil
}

func introspectLabels(ctx context.Context, exec graphdb.Executor) ([]Label, error) {
	rows, err := exec.Run(ctx, "CALL db.labels() YIELD label RETURN label", nil)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Label, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		name, ok := row["label"].(string)
		if !ok || name == "" {
			continue
		}
		byName[name] = &Label{Name: name}
		order = append(order, name)
	}

	propRows, err := exec.Run(ctx, `
		CALL db.schema.nodeTypeProperties()
		YIELD nodeLabels, propertyName, propertyTypes
		RETURN nodeLabels, propertyName, propertyTypes`, nil)
	if err != nil {
		return nil, err
	}
	for _, row := range propRows {
		propName, ok := row["propertyName"].(string)
		if !ok || propName == "" {
			continue
		}
		prop := Property{Name: propName, Types: stringSlice(row["propertyTypes"])}
		for _, labelName := range stringSlice(row["nodeLabels"]) {
			if label, exists := byName[labelName]; exists {
				label.Properties = append(label.Properties, prop)
			}
		}
	}

	labels := make([]Label, 0, len(order))
	for _, name := range order {
		labels = append(labels, *byName[name])
	}
	return labels, nil
}

func introspectRelationships(ctx context.Context, exec graphdb.Executor) ([]RelationshipPattern, error) {
	rows, err := exec.Run(ctx, fmt.Sprintf(`
		MATCH (a)-[r]->(b)
		WITH labels(a)[0] AS from, type(r) AS type, labels(b)[0] AS to
		RETURN DISTINCT from, type, to
		LIMIT %d`, relationshipSampleLimit), nil)
	if err != nil {
		return nil, err
	}

	patterns := make([]RelationshipPattern, 0, len(rows))
	for _, row := range rows {
		pattern := RelationshipPattern{}
		if v, ok := row["type"].(string); ok {
			pattern.Type = v
		}
		if v, ok := row["from"].(string); ok {
			pattern.From = v
		}
		if v, ok := row["to"].(string); ok {
			pattern.To = v
		}
		if pattern.Type == "" {
			continue
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func introspectFullTextIndexes(ctx context.Context, exec graphdb.Executor) ([]FullTextIndex, error) {
	rows, err := exec.Run(ctx, `
		SHOW FULLTEXT INDEXES
		YIELD name, labelsOrTypes, properties
		RETURN name, labelsOrTypes, properties`, nil)
	if err != nil {
		return nil, err
	}

	indexes := make([]FullTextIndex, 0, len(rows))
	for _, row := range rows {
		index := FullTextIndex{
			Labels:     stringSlice(row["labelsOrTypes"]),
			Properties: stringSlice(row["properties"]),
		}
		if name, ok := row["name"].(string); ok {
			index.Name = name
		}
		if index.Name == "" {
			continue
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
