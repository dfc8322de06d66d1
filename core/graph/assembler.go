package graph

import (
	"errors"
	"fmt"

	"github.com/siherrmann/homegraph/model"
)

// ErrInvalidEdge is returned for an edge whose relationship type cannot
// connect its endpoint kinds.
var ErrInvalidEdge = errors.New("invalid edge")

type edgeKey struct {
	from, to string
	t        model.RelationshipType
}

// Assembler accumulates detected edges. Duplicates of the same
// (from, to, type) are merged into the first occurrence.
type Assembler struct {
	edges    []model.Edge
	index    map[edgeKey]int
	outgoing map[string][]int
	incoming map[string][]int
}

// NewAssembler creates an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{
		index:    map[edgeKey]int{},
		outgoing: map[string][]int{},
		incoming: map[string][]int{},
	}
}

// Add adds e. Self edges are ignored. It reports whether e was new.
func (a *Assembler) Add(e model.Edge) (bool, error) {
	if e.FromID == e.ToID {
		return false, nil
	}

	fromKind, _, err := model.ParseNodeID(e.FromID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEdge, err)
	}
	toKind, _, err := model.ParseNodeID(e.ToID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEdge, err)
	}
	if !e.Type.Allows(fromKind, toKind) {
		return false, fmt.Errorf("%w: %s cannot connect %s to %s", ErrInvalidEdge, e.Type, fromKind, toKind)
	}

	key := edgeKey{from: e.FromID, to: e.ToID, t: e.Type}
	if i, ok := a.index[key]; ok {
		a.edges[i].MergeLabel(e.Label)
		return false, nil
	}

	i := len(a.edges)
	a.edges = append(a.edges, e)
	a.index[key] = i
	a.outgoing[e.FromID] = append(a.outgoing[e.FromID], i)
	a.incoming[e.ToID] = append(a.incoming[e.ToID], i)
	return true, nil
}

// Outgoing returns the edges starting at id in insertion order.
func (a *Assembler) Outgoing(id string) []model.Edge {
	return a.collect(a.outgoing[id])
}

// Incoming returns the edges ending at id in insertion order.
func (a *Assembler) Incoming(id string) []model.Edge {
	return a.collect(a.incoming[id])
}

// Edges returns all edges in insertion order.
func (a *Assembler) Edges() []model.Edge {
	out := make([]model.Edge, len(a.edges))
	copy(out, a.edges)
	return out
}

// Len returns the number of distinct edges.
func (a *Assembler) Len() int {
	return len(a.edges)
}

func (a *Assembler) collect(indexes []int) []model.Edge {
	out := make([]model.Edge, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, a.edges[i])
	}
	return out
}
