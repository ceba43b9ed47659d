// Package entity resolves natural-language entity mentions to graph node
// identifiers through Neo4j full-text indexes, and generates the deterministic
// identifiers those nodes carry.
package entity

// MatchKind records which resolution strategy produced a match.
type MatchKind string

const (
	// MatchExact is a quoted-phrase index hit.
	MatchExact MatchKind = "exact"
	// MatchFuzzy is an edit-distance hit that tolerates typos.
	MatchFuzzy MatchKind = "fuzzy"
	// MatchPartial is a wildcard prefix or contains hit.
	MatchPartial MatchKind = "partial"
)

// Mentions groups extracted entity phrases by entity type, e.g.
// {"disease": ["diabetes"], "patient": ["John Doe"]}.
type Mentions map[string][]string

// Ref binds one extracted phrase to a concrete graph node.
type Ref struct {
	// Name is the phrase as it appeared in the question.
	Name string `json:"name"`
	// Type is the singularized entity type the phrase was resolved under.
	Type string `json:"type"`
	// ID is the matched node's uuid property.
	ID string `json:"id"`
	// Matched holds the matched node's properties.
	Matched map[string]any `json:"matched,omitempty"`
	Score   float64        `json:"score"`
	Kind    MatchKind      `json:"match_kind"`
	// Ambiguous marks a match that tied with another candidate on score.
	// The ID tie-break still picks a deterministic winner; this flag lets
	// callers surface the ambiguity without failing the request.
	Ambiguous bool `json:"ambiguous,omitempty"`
}
