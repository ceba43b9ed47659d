// Package graphschema introspects the knowledge graph's shape: node labels,
// relationship patterns, properties, and full-text indexes. The resulting
// Schema feeds the translation prompt and the semantic validation of drafts.
package graphschema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Property describes one property observed on a label.
type Property struct {
	Name  string
	Types []string
}

// Label describes a node label and its observed properties.
type Label struct {
	Name       string
	Properties []Property
}

// RelationshipPattern describes one observed (fromLabel)-[type]->(toLabel) edge shape.
type RelationshipPattern struct {
	Type string
	From string
	To   string
}

// FullTextIndex describes a full-text index available for entity resolution.
type FullTextIndex struct {
	Name       string
	Labels     []string
	Properties []string
}

// Schema is an immutable snapshot of the graph's structure.
type Schema struct {
	Labels          []Label
	Relationships   []RelationshipPattern
	FullTextIndexes []FullTextIndex
}

// HasLabel reports whether the label exists in the graph.
func (s *Schema) HasLabel(name string) bool {
	for _, label := range s.Labels {
		if label.Name == name {
			return true
		}
	}
	return false
}

// HasRelationshipType reports whether any relationship of the given type exists.
func (s *Schema) HasRelationshipType(name string) bool {
	for _, rel := range s.Relationships {
		if rel.Type == name {
			return true
		}
	}
	return false
}

// HasProperty reports whether any label carries the given property name.
// Drafts do not always make the bound label explicit, so the check is over
// the union of properties across labels.
func (s *Schema) HasProperty(name string) bool {
	for _, label := range s.Labels {
		for _, prop := range label.Properties {
			if prop.Name == name {
				return true
			}
		}
	}
	return false
}

// IndexForLabel returns the full-text index covering the given label, if any.
func (s *Schema) IndexForLabel(label string) (FullTextIndex, bool) {
	for _, index := range s.FullTextIndexes {
		for _, indexed := range index.Labels {
			if strings.EqualFold(indexed, label) {
				return index, true
			}
		}
	}
	return FullTextIndex{}, false
}

// PromptBlock renders the schema section of the translation prompt.
func (s *Schema) PromptBlock() string {
	var b strings.Builder
	b.WriteString("## Graph Schema:\n### Node Types:\n")
	for _, label := range s.Labels {
		names := make([]string, 0, len(label.Properties))
		for _, prop := range label.Properties {
			names = append(names, prop.Name)
		}
		if len(names) > 0 {
			fmt.Fprintf(&b, "- %s (%s)\n", label.Name, strings.Join(names, ", "))
		} else {
			fmt.Fprintf(&b, "- %s\n", label.Name)
		}
	}
	b.WriteString("\n### Relationship Types:\n")
	for _, rel := range s.Relationships {
		fmt.Fprintf(&b, "- %s: %s -> %s\n", rel.Type, rel.From, rel.To)
	}
	return b.String()
}

// Fingerprint returns a stable hash of the schema contents so the refresh
// loop can detect change without comparing full snapshots.
func (s *Schema) Fingerprint() string {
	hash := sha256.New()
	for _, label := range s.Labels {
		fmt.Fprintf(hash, "label:%s", label.Name)
		for _, prop := range label.Properties {
			fmt.Fprintf(hash, "|%s:%s", prop.Name, strings.Join(prop.Types, ","))
		}
		_, _ = hash.Write([]byte{'\n'})
	}
	for _, rel := range s.Relationships {
		fmt.Fprintf(hash, "rel:%s:%s:%s\n", rel.Type, rel.From, rel.To)
	}
	for _, index := range s.FullTextIndexes {
		fmt.Fprintf(hash, "index:%s:%s:%s\n", index.Name, strings.Join(index.Labels, ","), strings.Join(index.Properties, ","))
	}
	return hex.EncodeToString(hash.Sum(nil))
}

func (s *Schema) normalize() {
	sort.Slice(s.Labels, func(i, j int) bool { return s.Labels[i].Name < s.Labels[j].Name })
	for i := range s.Labels {
		props := s.Labels[i].Properties
		sort.Slice(props, func(a, b int) bool { return props[a].Name < props[b].Name })
	}
	sort.Slice(s.Relationships, func(i, j int) bool {
		a, b := s.Relationships[i], s.Relationships[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	sort.Slice(s.FullTextIndexes, func(i, j int) bool { return s.FullTextIndexes[i].Name < s.FullTextIndexes[j].Name })
}
