package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// NodeSpec describes a node to create. Key is local to the snapshot and is
// used by RelSpec to reference endpoints.
type NodeSpec struct {
	Key    string         `json:"key"`
	Labels []Label        `json:"labels"`
	Props  map[string]any `json:"props"`
}

// RelSpec describes a relationship to create between two NodeSpec keys.
type RelSpec struct {
	Key   string         `json:"key,omitempty"`
	From  string         `json:"from"`
	To    string         `json:"to"`
	Type  RelType        `json:"type"`
	Props map[string]any `json:"props"`
}

// Snapshot is a serialisable description of a whole graph, the hand-off
// format between graph construction and the backing stores.
type Snapshot struct {
	Nodes         []NodeSpec `json:"nodes"`
	Relationships []RelSpec  `json:"relationships"`
}

// LoadResult maps snapshot keys to the identities assigned by the store.
type LoadResult struct {
	Nodes         map[string]NodeID
	Relationships map[string]RelationshipID
}

// ReadSnapshot decodes a JSON snapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, s.Validate()
}

// ParseSnapshot decodes a JSON snapshot from b.
func ParseSnapshot(b []byte) (Snapshot, error) {
	return ReadSnapshot(bytes.NewReader(b))
}

// Validate checks keys are unique and every relationship references known nodes.
func (s Snapshot) Validate() error {
	keys := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.Key == "" {
			return NewStructuralError(fmt.Sprintf("snapshot node %d", i), "key", "missing")
		}
		if keys[n.Key] {
			return NewStructuralError(fmt.Sprintf("snapshot node %s", n.Key), "key", "duplicate")
		}
		if len(n.Labels) == 0 {
			return NewStructuralError(fmt.Sprintf("snapshot node %s", n.Key), "labels", "missing")
		}
		keys[n.Key] = true
	}
	relKeys := make(map[string]bool, len(s.Relationships))
	for i, r := range s.Relationships {
		entity := fmt.Sprintf("snapshot relationship %d", i)
		if !keys[r.From] {
			return NewStructuralError(entity, "from", fmt.Sprintf("unknown node %q", r.From))
		}
		if !keys[r.To] {
			return NewStructuralError(entity, "to", fmt.Sprintf("unknown node %q", r.To))
		}
		if r.Type == "" {
			return NewStructuralError(entity, "type", "missing")
		}
		if r.Key != "" {
			if relKeys[r.Key] {
				return NewStructuralError(entity, "key", "duplicate")
			}
			relKeys[r.Key] = true
		}
	}
	return nil
}

// Load writes the snapshot into db inside one write transaction.
func Load(ctx context.Context, db Database, s Snapshot) (LoadResult, error) {
	if err := s.Validate(); err != nil {
		return LoadResult{}, err
	}
	tx, err := db.Begin(ctx, WithWrite())
	if err != nil {
		return LoadResult{}, fmt.Errorf("begin load: %w", err)
	}
	defer tx.Close(ctx)

	res := LoadResult{
		Nodes:         make(map[string]NodeID, len(s.Nodes)),
		Relationships: make(map[string]RelationshipID, len(s.Relationships)),
	}
	for _, spec := range s.Nodes {
		n, err := tx.CreateNode(ctx, NewLabelSet(spec.Labels...), spec.Props)
		if err != nil {
			return LoadResult{}, fmt.Errorf("create node %s: %w", spec.Key, err)
		}
		res.Nodes[spec.Key] = n.ID()
	}
	for i, spec := range s.Relationships {
		r, err := tx.CreateRelationship(ctx, res.Nodes[spec.From], res.Nodes[spec.To], spec.Type, spec.Props)
		if err != nil {
			return LoadResult{}, fmt.Errorf("create relationship %d %s: %w", i, spec.Type, err)
		}
		if spec.Key != "" {
			res.Relationships[spec.Key] = r.ID()
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return LoadResult{}, fmt.Errorf("commit load: %w", err)
	}
	return res, nil
}
