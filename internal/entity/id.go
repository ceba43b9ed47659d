package entity

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// idPrefixes maps entity types to their identifier prefixes. Identifiers are
// content-derived so the same logical entity always resolves to the same node
// regardless of which document introduced it.
var idPrefixes = map[string]string{
	"patient":     "P",
	"encounter":   "E",
	"symptom":     "S",
	"disease":     "D",
	"test":        "T",
	"test_result": "TR",
	"medication":  "M",
	"procedure":   "PR",
	"clinician":   "CL",
	"guideline":   "GL",
	"assertion":   "A",
	"document":    "DOC",
}

// CodedID returns the identifier for an entity carried by a coding system,
// e.g. ("ICD-10", "E11") -> "ICD-10:E11". An empty system yields the bare code.
func CodedID(system, code string) string {
	if system == "" {
		return code
	}
	return system + ":" + code
}

// ConceptID returns the deterministic identifier for a named concept entity
// (symptom, disease, medication, test). The name is lowercased before hashing
// so casing differences collapse to one node.
func ConceptID(entityType, name string) string {
	prefix, ok := idPrefixes[strings.ToLower(entityType)]
	if !ok {
		prefix = "UNK"
	}
	digest := md5.Sum([]byte(strings.ToLower(name)))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(digest[:])[:8])
}

// AssertionID returns the deterministic identifier for an extracted assertion,
// derived from its components so re-extraction never duplicates it.
func AssertionID(predicate, subject, object, sourceID string, chunkID string) string {
	components := []string{predicate, subject, object, sourceID}
	if chunkID != "" {
		components = append(components, chunkID)
	}
	digest := sha256.Sum256([]byte(strings.Join(components, "_")))
	return "A_" + hex.EncodeToString(digest[:])[:12]
}
