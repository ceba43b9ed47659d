package api

import (
	"fmt"

	"medgraph-search/internal/graphdb"
)

// GraphShape is the node/edge view of a result set.
type GraphShape struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode is one deduplicated node from the results.
type GraphNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// GraphEdge is one relationship from the results.
type GraphEdge struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// shapeAsGraph walks result rows and collects every flattened node and
// relationship into a deduplicated node/edge list. Scalar columns are
// ignored; rows with no graph values produce an empty shape.
func shapeAsGraph(rows []graphdb.Record) GraphShape {
	shape := GraphShape{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	seen := make(map[string]struct{})

	var walk func(value any)
	walk = func(value any) {
		switch v := value.(type) {
		case map[string]any:
			if node, ok := asGraphNode(v); ok {
				if node.ID == "" {
					node.ID = fmt.Sprintf("anon-%d", len(shape.Nodes))
					shape.Nodes = append(shape.Nodes, node)
					return
				}
				if _, dup := seen[node.ID]; !dup {
					seen[node.ID] = struct{}{}
					shape.Nodes = append(shape.Nodes, node)
				}
				return
			}
			if edge, ok := asGraphEdge(v); ok {
				shape.Edges = append(shape.Edges, edge)
				return
			}
			for _, nested := range v {
				walk(nested)
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}

	for _, row := range rows {
		for _, value := range row {
			walk(value)
		}
	}
	return shape
}

func asGraphNode(value map[string]any) (GraphNode, bool) {
	rawLabels, hasLabels := value["labels"]
	props, hasProps := value["properties"].(map[string]any)
	if !hasLabels || !hasProps {
		return GraphNode{}, false
	}

	var labels []string
	switch typed := rawLabels.(type) {
	case []string:
		labels = typed
	case []any:
		for _, label := range typed {
			if name, ok := label.(string); ok {
				labels = append(labels, name)
			}
		}
	default:
		return GraphNode{}, false
	}

	return GraphNode{ID: nodeIdentity(props), Labels: labels, Properties: props}, true
}

func asGraphEdge(value map[string]any) (GraphEdge, bool) {
	relType, hasType := value["type"].(string)
	props, hasProps := value["properties"].(map[string]any)
	if !hasType || !hasProps {
		return GraphEdge{}, false
	}
	return GraphEdge{Type: relType, Properties: props}, true
}

// nodeIdentity picks the first domain identifier present. Empty means the
// node has none and gets a synthetic id during shaping.
func nodeIdentity(props map[string]any) string {
	for _, key := range []string{"id", "uuid", "code", "name", "assertion_id"} {
		if id, ok := props[key].(string); ok && id != "" {
			return id
		}
	}
	return ""
}
