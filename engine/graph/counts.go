package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Counts summarises the committed contents of a store.
type Counts struct {
	Nodes         int64
	Relationships int64
	ByLabel       map[Label]int64
	ByType        map[RelType]int64
}

// NewCounts returns empty Counts.
func NewCounts() Counts {
	return Counts{ByLabel: make(map[Label]int64), ByType: make(map[RelType]int64)}
}

// Counter is implemented by stores that can summarise themselves.
type Counter interface {
	Counts(ctx context.Context) (Counts, error)
}

// String renders totals followed by per-label and per-type counts, sorted.
func (c Counts) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d nodes, %d relationships\n", c.Nodes, c.Relationships)
	labels := make([]string, 0, len(c.ByLabel))
	for l := range c.ByLabel {
		labels = append(labels, string(l))
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(&b, "  :%-20s %d\n", l, c.ByLabel[Label(l)])
	}
	types := make([]string, 0, len(c.ByType))
	for t := range c.ByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(&b, "  -[:%s]- %d\n", t, c.ByType[RelType(t)])
	}
	return b.String()
}
