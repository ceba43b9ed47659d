package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"medgraph-search/internal/graphdb"
	"medgraph-search/internal/graphschema"
)

const (
	defaultSubgraphDepth = 2
	maxSubgraphDepth     = 4
	defaultPathDepth     = 5
	maxPathDepth         = 10
)

// GraphQueries runs the fixed read-only queries behind the graph endpoints.
// Variable-length patterns cannot take the depth as a parameter, so depth is
// clamped and inlined; labels are checked against the live schema before they
// reach a query string.
type GraphQueries struct {
	exec   graphdb.Executor
	schema func() *graphschema.Schema
}

// NewGraphQueries returns the canned query set.
func NewGraphQueries(exec graphdb.Executor, schema func() *graphschema.Schema) *GraphQueries {
	return &GraphQueries{exec: exec, schema: schema}
}

// PatientSummary collects a patient with their encounters, symptoms,
// diagnoses, medications, and test results in one round trip.
func (g *GraphQueries) PatientSummary(ctx context.Context, patientID string) (graphdb.Record, error) {
	const cypher = `
		MATCH (p:Patient {id: $patient_id})
		OPTIONAL MATCH (p)-[:HAS_ENCOUNTER]->(e:Encounter)
		OPTIONAL MATCH (e)-[:HAS_SYMPTOM]->(s:Symptom)
		OPTIONAL MATCH (e)-[:DIAGNOSED_AS]->(d:Disease)
		OPTIONAL MATCH (e)-[:PRESCRIBED]->(m:Medication)
		OPTIONAL MATCH (e)-[:ORDERED_TEST]->(t:Test)-[:YIELDED]->(tr:TestResult)
		RETURN p AS patient,
		       collect(DISTINCT e) AS encounters,
		       collect(DISTINCT s) AS symptoms,
		       collect(DISTINCT d) AS diseases,
		       collect(DISTINCT m) AS medications,
		       collect(DISTINCT {test: t, result: tr}) AS tests`

	rows, err := g.exec.Run(ctx, cypher, map[string]any{"patient_id": patientID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// EncounterDetails returns one encounter with its relationship properties
// (negation, confidence, dose) preserved alongside the connected nodes.
func (g *GraphQueries) EncounterDetails(ctx context.Context, encounterID string) (graphdb.Record, error) {
	const cypher = `
		MATCH (e:Encounter {id: $encounter_id})
		OPTIONAL MATCH (p:Patient)-[:HAS_ENCOUNTER]->(e)
		OPTIONAL MATCH (e)-[hs:HAS_SYMPTOM]->(s:Symptom)
		OPTIONAL MATCH (e)-[dg:DIAGNOSED_AS]->(d:Disease)
		OPTIONAL MATCH (e)-[pr:PRESCRIBED]->(m:Medication)
		OPTIONAL MATCH (e)-[:ORDERED_TEST]->(t:Test)-[:YIELDED]->(tr:TestResult)
		RETURN e AS encounter,
		       p AS patient,
		       collect(DISTINCT {symptom: s, negation: hs.negation, confidence: hs.confidence, source_id: hs.source_id}) AS symptoms,
		       collect(DISTINCT {disease: d, status: dg.status, confidence: dg.confidence}) AS diagnoses,
		       collect(DISTINCT {medication: m, dose: pr.dose, route: pr.route, frequency: pr.frequency}) AS prescriptions,
		       collect(DISTINCT {test: t, result: tr}) AS test_results`

	rows, err := g.exec.Run(ctx, cypher, map[string]any{"encounter_id": encounterID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Subgraph expands the clinical neighborhood around a node out to the given
// depth using plain variable-length paths.
func (g *GraphQueries) Subgraph(ctx context.Context, label, nodeID string, depth int) (graphdb.Record, error) {
	if !g.schema().HasLabel(label) {
		return nil, fmt.Errorf("unknown node label %q", label)
	}
	depth = clampDepth(depth, defaultSubgraphDepth, maxSubgraphDepth)

	cypher := fmt.Sprintf(`
		MATCH path = (n:%s {id: $node_id})-[*0..%d]-()
		WITH nodes(path) AS pathNodes, relationships(path) AS pathRels
		UNWIND pathNodes AS node
		WITH collect(DISTINCT node) AS nodes, pathRels
		UNWIND pathRels AS rel
		WITH nodes, collect(DISTINCT rel) AS relationships
		RETURN [node IN nodes | {
		           id: coalesce(node.id, node.code, node.name),
		           label: labels(node)[0],
		           properties: properties(node)
		       }] AS nodes,
		       [rel IN relationships | {
		           type: type(rel),
		           from: coalesce(startNode(rel).id, startNode(rel).code, startNode(rel).name),
		           to: coalesce(endNode(rel).id, endNode(rel).code, endNode(rel).name),
		           properties: properties(rel)
		       }] AS relationships`, backtick(label), depth)

	rows, err := g.exec.Run(ctx, cypher, map[string]any{"node_id": nodeID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return graphdb.Record{"nodes": []any{}, "relationships": []any{}}, nil
	}
	return rows[0], nil
}

// ShortestPath finds the shortest path between two nodes by id.
func (g *GraphQueries) ShortestPath(ctx context.Context, startID, endID string, maxDepth int) (graphdb.Record, error) {
	maxDepth = clampDepth(maxDepth, defaultPathDepth, maxPathDepth)

	cypher := fmt.Sprintf(`
		MATCH path = shortestPath((start {id: $start_id})-[*..%d]-(end {id: $end_id}))
		RETURN [node IN nodes(path) | {
		           id: coalesce(node.id, node.code, node.name),
		           label: labels(node)[0],
		           properties: properties(node)
		       }] AS nodes,
		       [rel IN relationships(path) | {
		           type: type(rel),
		           properties: properties(rel)
		       }] AS relationships`, maxDepth)

	rows, err := g.exec.Run(ctx, cypher, map[string]any{"start_id": startID, "end_id": endID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// DiseasesBySymptoms ranks diseases by how many of the given symptoms
// co-occur with them across encounters. Symptoms match by code or name.
func (g *GraphQueries) DiseasesBySymptoms(ctx context.Context, symptoms []string) ([]graphdb.Record, error) {
	const cypher = `
		MATCH (s:Symptom)
		WHERE s.code IN $symptoms OR s.name IN $symptoms
		MATCH (e:Encounter)-[:HAS_SYMPTOM]->(s)
		MATCH (e)-[:DIAGNOSED_AS]->(d:Disease)
		WITH d, count(DISTINCT s) AS symptom_count, collect(DISTINCT s.name) AS matching_symptoms
		RETURN d AS disease, symptom_count, matching_symptoms
		ORDER BY symptom_count DESC`

	return g.exec.Run(ctx, cypher, map[string]any{"symptoms": symptoms})
}

// EvidenceTrail returns the assertion with its source document and the
// subject and object nodes it links.
func (g *GraphQueries) EvidenceTrail(ctx context.Context, assertionID string) (graphdb.Record, error) {
	const cypher = `
		MATCH (a:Assertion {assertion_id: $assertion_id})
		OPTIONAL MATCH (a)-[:EVIDENCED_BY]->(src:SourceDocument)
		OPTIONAL MATCH (a)-[:ABOUT_SUBJECT]->(subj)
		OPTIONAL MATCH (a)-[:ABOUT_OBJECT]->(obj)
		RETURN a AS assertion, src AS source, subj AS subject, obj AS object`

	rows, err := g.exec.Run(ctx, cypher, map[string]any{"assertion_id": assertionID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func clampDepth(depth, fallback, max int) int {
	if depth <= 0 {
		return fallback
	}
	if depth > max {
		return max
	}
	return depth
}

func backtick(label string) string {
	return "`" + strings.ReplaceAll(label, "`", "") + "`"
}

// PatientSummary serves GET /v1/patients/{id}/summary.
func (h *Handlers) PatientSummary(w http.ResponseWriter, r *http.Request) {
	h.serveSingleRecord(w, r, func(ctx context.Context) (graphdb.Record, error) {
		return h.graph.PatientSummary(ctx, r.PathValue("id"))
	})
}

// EncounterDetails serves GET /v1/encounters/{id}.
func (h *Handlers) EncounterDetails(w http.ResponseWriter, r *http.Request) {
	h.serveSingleRecord(w, r, func(ctx context.Context) (graphdb.Record, error) {
		return h.graph.EncounterDetails(ctx, r.PathValue("id"))
	})
}

// Subgraph serves GET /v1/graph/subgraph?label=...&id=...&depth=N.
func (h *Handlers) Subgraph(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	nodeID := r.URL.Query().Get("id")
	if label == "" || nodeID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "label and id are required")
		return
	}
	depth, _ := strconv.Atoi(r.URL.Query().Get("depth"))

	record, err := h.graph.Subgraph(r.Context(), label, nodeID, depth)
	if err != nil {
		if strings.Contains(err.Error(), "unknown node label") {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "execution_error", "subgraph query failed")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ShortestPath serves GET /v1/graph/path?from=...&to=...&max_depth=N.
func (h *Handlers) ShortestPath(w http.ResponseWriter, r *http.Request) {
	startID := r.URL.Query().Get("from")
	endID := r.URL.Query().Get("to")
	if startID == "" || endID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "from and to are required")
		return
	}
	maxDepth, _ := strconv.Atoi(r.URL.Query().Get("max_depth"))

	record, err := h.graph.ShortestPath(r.Context(), startID, endID, maxDepth)
	if err != nil {
		writeError(w, http.StatusBadGateway, "execution_error", "path query failed")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "not_found", "no path found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// DiseasesBySymptoms serves POST /v1/graph/symptoms.
func (h *Handlers) DiseasesBySymptoms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Symptoms) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "symptoms list is required")
		return
	}

	records, err := h.graph.DiseasesBySymptoms(r.Context(), req.Symptoms)
	if err != nil {
		writeError(w, http.StatusBadGateway, "execution_error", "symptom query failed")
		return
	}
	if records == nil {
		records = []graphdb.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": records, "count": len(records)})
}

// EvidenceTrail serves GET /v1/assertions/{id}/evidence.
func (h *Handlers) EvidenceTrail(w http.ResponseWriter, r *http.Request) {
	h.serveSingleRecord(w, r, func(ctx context.Context) (graphdb.Record, error) {
		return h.graph.EvidenceTrail(ctx, r.PathValue("id"))
	})
}

func (h *Handlers) serveSingleRecord(w http.ResponseWriter, r *http.Request, fetch func(context.Context) (graphdb.Record, error)) {
	record, err := fetch(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "execution_error", "graph query failed")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}
