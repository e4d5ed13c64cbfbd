// Package neotest provides an in-process stand-in for a Neo4j server that
// understands the statements issued by neograph.
package neotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/WessleyAI/journeyplanner/engine/graph/neograph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ErrUnknownStatement is returned for Cypher the fake does not understand.
var ErrUnknownStatement = errors.New("neotest: unknown statement")

type store struct {
	nodes map[string]dbtype.Node
	rels  map[string]dbtype.Relationship
}

func (s *store) clone() *store {
	c := &store{
		nodes: make(map[string]dbtype.Node, len(s.nodes)),
		rels:  make(map[string]dbtype.Relationship, len(s.rels)),
	}
	for k, v := range s.nodes {
		c.nodes[k] = v
	}
	for k, v := range s.rels {
		c.rels[k] = v
	}
	return c
}

// Server is a fake graph server. Write transactions work on a copy of the
// store that replaces it on commit.
type Server struct {
	mu    sync.Mutex
	data  *store
	seq   int
	stats Stats

	// BeginErr, when set, fails every BeginTx.
	BeginErr error
	// RunErr, when set, is returned by every Run.
	RunErr error
}

// Stats counts server activity.
type Stats struct {
	Begun      int
	Committed  int
	RolledBack int
	Closed     int
	Statements map[string]int
}

// NewServer creates an empty Server.
func NewServer() *Server {
	return &Server{
		data:  &store{nodes: map[string]dbtype.Node{}, rels: map[string]dbtype.Relationship{}},
		stats: Stats{Statements: map[string]int{}},
	}
}

// Stats returns a copy of the server counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Statements = make(map[string]int, len(s.stats.Statements))
	for k, v := range s.stats.Statements {
		out.Statements[k] = v
	}
	return out
}

// NodeCount reports committed nodes.
func (s *Server) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.nodes)
}

func (s *Server) nextID() string {
	s.seq++
	return fmt.Sprintf("4:fake:%06d", s.seq)
}

// BeginTx implements neograph.TxOpener.
func (s *Server) BeginTx(ctx context.Context, write bool, _ []func(*neo4j.TransactionConfig)) (neograph.CypherTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BeginErr != nil {
		return nil, s.BeginErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.stats.Begun++
	t := &fakeTx{srv: s, write: write, view: s.data}
	if write {
		t.view = s.data.clone()
	}
	return t, nil
}

type fakeTx struct {
	srv   *Server
	write bool
	view  *store
	done  bool
}

func (t *fakeTx) Commit(context.Context) error {
	t.srv.mu.Lock()
	defer t.srv.mu.Unlock()
	if t.done {
		return errors.New("neotest: transaction already finished")
	}
	t.done = true
	if t.write {
		t.srv.data = t.view
	}
	t.srv.stats.Committed++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.srv.mu.Lock()
	defer t.srv.mu.Unlock()
	if !t.done {
		t.done = true
		t.srv.stats.RolledBack++
	}
	return nil
}

func (t *fakeTx) Close(context.Context) error {
	t.srv.mu.Lock()
	defer t.srv.mu.Unlock()
	t.srv.stats.Closed++
	return nil
}

func (t *fakeTx) Run(ctx context.Context, cypher string, params map[string]any) (neograph.CypherResult, error) {
	t.srv.mu.Lock()
	defer t.srv.mu.Unlock()
	if t.srv.RunErr != nil {
		return nil, t.srv.RunErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.srv.stats.Statements[statementName(cypher)]++
	if recs, ok := t.counts(cypher); ok {
		return &result{recs: recs}, nil
	}
	vals, key, err := t.dispatch(cypher, params)
	if err != nil {
		return nil, err
	}
	recs := make([]*neo4j.Record, len(vals))
	for i, v := range vals {
		recs[i] = &neo4j.Record{Keys: []string{key}, Values: []any{v}}
	}
	return &result{recs: recs}, nil
}

func statementName(cypher string) string {
	switch {
	case strings.HasPrefix(cypher, "CREATE (n:"):
		return "create-node"
	case strings.Contains(cypher, "CREATE (a)-[r:"):
		return "create-relationship"
	}
	switch cypher {
	case neograph.QueryNodeByID:
		return "node-by-id"
	case neograph.QueryNodesByLabel:
		return "nodes-by-label"
	case neograph.QueryStation:
		return "station"
	case neograph.QueryRelationshipByID:
		return "relationship-by-id"
	case neograph.QueryOutgoing, neograph.QueryIncoming, neograph.QueryBoth:
		return "relationships"
	case neograph.QuerySetRelProperty:
		return "set-property"
	case neograph.QueryNodeTotal, neograph.QueryLabelCounts, neograph.QueryRelationCounts:
		return "counts"
	}
	return "unknown"
}

// counts answers the key/count statements, sorted by key.
func (t *fakeTx) counts(cypher string) ([]*neo4j.Record, bool) {
	v := t.view
	by := make(map[string]int64)
	switch cypher {
	case neograph.QueryNodeTotal:
		by["nodes"] = int64(len(v.nodes))
	case neograph.QueryLabelCounts:
		for _, n := range v.nodes {
			for _, l := range n.Labels {
				by[l]++
			}
		}
	case neograph.QueryRelationCounts:
		for _, r := range v.rels {
			by[r.Type]++
		}
	default:
		return nil, false
	}
	keys := make([]string, 0, len(by))
	for k := range by {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	recs := make([]*neo4j.Record, len(keys))
	for i, k := range keys {
		recs[i] = &neo4j.Record{Keys: []string{"key", "count"}, Values: []any{k, by[k]}}
	}
	return recs, true
}

func (t *fakeTx) dispatch(cypher string, params map[string]any) ([]any, string, error) {
	v := t.view
	switch {
	case strings.HasPrefix(cypher, "CREATE (n:"):
		labels, err := between(cypher, "CREATE (n:", ")")
		if err != nil {
			return nil, "", err
		}
		n := dbtype.Node{
			ElementId: t.srv.nextID(),
			Labels:    strings.Split(labels, ":"),
			Props:     copyProps(params["props"]),
		}
		v.nodes[n.ElementId] = n
		return []any{n}, "n", nil

	case strings.Contains(cypher, "CREATE (a)-[r:"):
		typ, err := between(cypher, "CREATE (a)-[r:", "]")
		if err != nil {
			return nil, "", err
		}
		from, _ := params["from"].(string)
		to, _ := params["to"].(string)
		_, okFrom := v.nodes[from]
		_, okTo := v.nodes[to]
		if !okFrom || !okTo {
			return nil, "r", nil
		}
		r := dbtype.Relationship{
			ElementId:      t.srv.nextID(),
			StartElementId: from,
			EndElementId:   to,
			Type:           typ,
			Props:          copyProps(params["props"]),
		}
		v.rels[r.ElementId] = r
		return []any{r}, "r", nil
	}

	switch cypher {
	case neograph.QueryNodeByID:
		if n, ok := v.nodes[params["id"].(string)]; ok {
			return []any{n}, "n", nil
		}
		return nil, "n", nil

	case neograph.QueryNodesByLabel:
		label := params["label"].(string)
		var out []dbtype.Node
		for _, n := range v.nodes {
			for _, l := range n.Labels {
				if l == label {
					out = append(out, n)
					break
				}
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ElementId < out[j].ElementId })
		return nodeValues(out), "n", nil

	case neograph.QueryStation:
		sid := params["stationId"]
		var out []dbtype.Node
		for _, n := range v.nodes {
			if hasLabel(n, "STATION") && n.Props["station_id"] == sid {
				out = append(out, n)
			}
		}
		return nodeValues(out), "n", nil

	case neograph.QueryRelationshipByID:
		if r, ok := v.rels[params["id"].(string)]; ok {
			return []any{r}, "r", nil
		}
		return nil, "r", nil

	case neograph.QueryOutgoing, neograph.QueryIncoming, neograph.QueryBoth:
		id := params["id"].(string)
		types, _ := params["types"].([]string)
		var out []dbtype.Relationship
		for _, r := range v.rels {
			isOut := r.StartElementId == id
			in := r.EndElementId == id
			var match bool
			switch cypher {
			case neograph.QueryOutgoing:
				match = isOut
			case neograph.QueryIncoming:
				match = in
			default:
				match = isOut || in
			}
			if match && typeAllowed(r.Type, types) {
				out = append(out, r)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ElementId < out[j].ElementId })
		vals := make([]any, len(out))
		for i, r := range out {
			vals[i] = r
		}
		return vals, "r", nil

	case neograph.QuerySetRelProperty:
		r, ok := v.rels[params["id"].(string)]
		if !ok {
			return nil, "r", nil
		}
		props := copyProps(r.Props)
		for k, val := range copyProps(params["props"]) {
			props[k] = val
		}
		r.Props = props
		v.rels[r.ElementId] = r
		return []any{r}, "r", nil
	}
	return nil, "", fmt.Errorf("%w: %s", ErrUnknownStatement, cypher)
}

func between(s, start, end string) (string, error) {
	_, rest, ok := strings.Cut(s, start)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStatement, s)
	}
	v, _, ok := strings.Cut(rest, end)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownStatement, s)
	}
	return v, nil
}

func copyProps(v any) map[string]any {
	src, _ := v.(map[string]any)
	out := make(map[string]any, len(src))
	for k, val := range src {
		out[k] = val
	}
	return out
}

func hasLabel(n dbtype.Node, label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func typeAllowed(t string, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

func nodeValues(ns []dbtype.Node) []any {
	out := make([]any, len(ns))
	for i, n := range ns {
		out[i] = n
	}
	return out
}

type result struct {
	recs []*neo4j.Record
	cur  *neo4j.Record
}

func (r *result) Next(context.Context) bool {
	if len(r.recs) == 0 {
		r.cur = nil
		return false
	}
	r.cur, r.recs = r.recs[0], r.recs[1:]
	return true
}

func (r *result) Record() *neo4j.Record { return r.cur }
func (r *result) Err() error            { return nil }

var _ neograph.TxOpener = (*Server)(nil)
