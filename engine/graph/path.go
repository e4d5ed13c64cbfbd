package graph

import (
	"fmt"
	"strings"
	"time"
)

// Path is an append-only sequence of nodes and the relationships between
// them. Appending returns a new Path sharing the prefix, so branches of a
// search never observe each other's extensions.
type Path struct {
	parent *Path
	rel    Relationship
	node   Node
	cost   time.Duration
	length int
}

// NewPath starts a path at node.
func NewPath(start Node) *Path {
	return &Path{node: start}
}

// Append extends the path over rel to node.
func (p *Path) Append(rel Relationship, node Node) (*Path, error) {
	if rel.StartNodeID() != p.node.ID() && rel.EndNodeID() != p.node.ID() {
		return nil, NewStructuralError(fmt.Sprintf("relationship %s", rel.ID()), "", fmt.Sprintf("does not touch path end %s", p.node.ID()))
	}
	cost, err := rel.Cost()
	if err != nil {
		return nil, err
	}
	return &Path{parent: p, rel: rel, node: node, cost: p.cost + cost, length: p.length + 1}, nil
}

// End returns the last node.
func (p *Path) End() Node { return p.node }

// Last returns the most recently appended relationship, or nil for a path of
// length zero.
func (p *Path) Last() Relationship { return p.rel }

// Prev returns the path without its last relationship, or nil.
func (p *Path) Prev() *Path { return p.parent }

// Cost is the sum of the costs of the relationships traversed.
func (p *Path) Cost() time.Duration { return p.cost }

// Len returns the number of relationships.
func (p *Path) Len() int { return p.length }

// Start returns the first node.
func (p *Path) Start() Node {
	for p.parent != nil {
		p = p.parent
	}
	return p.node
}

// Nodes returns the nodes in traversal order.
func (p *Path) Nodes() []Node {
	out := make([]Node, p.length+1)
	for cur, i := p, p.length; cur != nil; cur, i = cur.parent, i-1 {
		out[i] = cur.node
	}
	return out
}

// Relationships returns the relationships in traversal order.
func (p *Path) Relationships() []Relationship {
	out := make([]Relationship, p.length)
	for cur, i := p, p.length-1; cur.parent != nil; cur, i = cur.parent, i-1 {
		out[i] = cur.rel
	}
	return out
}

// Signature identifies the path by its relationship ids.
func (p *Path) Signature() string {
	rels := p.Relationships()
	parts := make([]string, len(rels))
	for i, r := range rels {
		parts[i] = string(r.ID())
	}
	return string(p.Start().ID()) + ">" + strings.Join(parts, ",")
}

func (p *Path) String() string {
	var b strings.Builder
	nodes := p.Nodes()
	rels := p.Relationships()
	for i, n := range nodes {
		if i > 0 {
			fmt.Fprintf(&b, "-[%s]->", rels[i-1].Type())
		}
		fmt.Fprintf(&b, "(%s)", n.ID())
	}
	fmt.Fprintf(&b, " cost=%s", p.cost)
	return b.String()
}
