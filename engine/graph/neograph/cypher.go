package neograph

import (
	"fmt"
	"strings"

	"github.com/WessleyAI/journeyplanner/engine/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Statements issued by transactions. Ordering by element id keeps
// relationship order stable across transactions.
const (
	QueryNodeByID         = `MATCH (n) WHERE elementId(n) = $id RETURN n`
	QueryNodesByLabel     = `MATCH (n) WHERE $label IN labels(n) RETURN n ORDER BY elementId(n)`
	QueryStation          = `MATCH (n:STATION {station_id: $stationId}) RETURN n`
	QueryRelationshipByID = `MATCH ()-[r]->() WHERE elementId(r) = $id RETURN r`
	QueryOutgoing         = `MATCH (n)-[r]->() WHERE elementId(n) = $id AND (size($types) = 0 OR type(r) IN $types) RETURN r ORDER BY elementId(r)`
	QueryIncoming         = `MATCH (n)<-[r]-() WHERE elementId(n) = $id AND (size($types) = 0 OR type(r) IN $types) RETURN r ORDER BY elementId(r)`
	QueryBoth             = `MATCH (n)-[r]-() WHERE elementId(n) = $id AND (size($types) = 0 OR type(r) IN $types) RETURN DISTINCT r ORDER BY elementId(r)`
	QuerySetRelProperty   = `MATCH ()-[r]->() WHERE elementId(r) = $id SET r += $props RETURN r`
)

// Statements behind Database.Counts. Each returns key and count columns.
const (
	QueryNodeTotal      = `MATCH (n) RETURN 'nodes' AS key, count(n) AS count`
	QueryLabelCounts    = `MATCH (n) UNWIND labels(n) AS key RETURN key, count(*) AS count`
	QueryRelationCounts = `MATCH ()-[r]->() RETURN type(r) AS key, count(*) AS count`
)

func relationshipQuery(dir graph.Direction) string {
	switch dir {
	case graph.Outgoing:
		return QueryOutgoing
	case graph.Incoming:
		return QueryIncoming
	default:
		return QueryBoth
	}
}

// createNodeStatement builds a CREATE for the given labels. Labels cannot be
// parameterised in Cypher so they are sanitised into identifiers.
func createNodeStatement(labels graph.LabelSet) string {
	parts := make([]string, 0, len(labels))
	for _, l := range labels.Slice() {
		parts = append(parts, sanitizeIdentifier(string(l), "NODE"))
	}
	return fmt.Sprintf(`CREATE (n:%s) SET n = $props RETURN n`, strings.Join(parts, ":"))
}

func createRelationshipStatement(typ graph.RelType) string {
	return fmt.Sprintf(
		`MATCH (a), (b) WHERE elementId(a) = $from AND elementId(b) = $to CREATE (a)-[r:%s]->(b) SET r = $props RETURN r`,
		sanitizeIdentifier(string(typ), "RELATED_TO"),
	)
}

// sanitizeIdentifier keeps only characters valid in an unquoted Cypher
// identifier and upper-cases them, as Neo4j conventions expect.
func sanitizeIdentifier(s, fallback string) string {
	safe := make([]byte, 0, len(s))
	for i := range s {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
			safe = append(safe, c-32)
		case (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_':
			safe = append(safe, c)
		}
	}
	if len(safe) == 0 {
		return fallback
	}
	return string(safe)
}

func typeParam(types []graph.RelType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func nodeFromRecord(rec *neo4j.Record, key string) (*graph.PropertyNode, error) {
	n, isNil, err := neo4j.GetRecordValue[dbtype.Node](rec, key)
	if err != nil {
		return nil, graph.NewStructuralError("neo4j record", key, err.Error())
	}
	if isNil {
		return nil, graph.NewStructuralError("neo4j record", key, "null node")
	}
	return nodeFromDB(n)
}

func nodeFromDB(n dbtype.Node) (*graph.PropertyNode, error) {
	labels := make([]graph.Label, len(n.Labels))
	for i, l := range n.Labels {
		labels[i] = graph.Label(l)
	}
	props, err := graph.NormalizeProps(n.Props)
	if err != nil {
		return nil, graph.NewStructuralError(fmt.Sprintf("node %s", n.ElementId), "", err.Error())
	}
	return graph.NewNode(graph.NodeID(n.ElementId), graph.NewLabelSet(labels...), props), nil
}

func relationshipFromRecord(rec *neo4j.Record, key string) (*graph.PropertyRelationship, error) {
	r, isNil, err := neo4j.GetRecordValue[dbtype.Relationship](rec, key)
	if err != nil {
		return nil, graph.NewStructuralError("neo4j record", key, err.Error())
	}
	if isNil {
		return nil, graph.NewStructuralError("neo4j record", key, "null relationship")
	}
	props, err := graph.NormalizeProps(r.Props)
	if err != nil {
		return nil, graph.NewStructuralError(fmt.Sprintf("relationship %s", r.ElementId), "", err.Error())
	}
	return graph.NewRelationship(
		graph.RelationshipID(r.ElementId),
		graph.RelType(r.Type),
		graph.NodeID(r.StartElementId),
		graph.NodeID(r.EndElementId),
		props,
	), nil
}
