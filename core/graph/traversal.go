package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/siherrmann/homegraph/core/detect"
	"github.com/siherrmann/homegraph/helper"
	"github.com/siherrmann/homegraph/model"
)

// ErrFocusNotFound is returned when the focus id resolves to no node.
var ErrFocusNotFound = errors.New("focus node not found")

var detectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "homegraph_detector_failures_total",
	Help: "Detector invocations that failed and contributed no edges.",
}, []string{"detector"})

// NodeLookup resolves node ids to nodes.
type NodeLookup interface {
	Lookup(id string) (model.Node, error)
}

// Neighborhood is the subgraph around a focus node.
type Neighborhood struct {
	Focus model.Node
	// Nodes in discovery order, the focus first.
	Nodes []model.Node
	// Edges in insertion order. Both endpoints of every edge are in Nodes.
	Edges []model.Edge
	// Filtered counts nodes and edges suppressed by the filters.
	Filtered int
	// Depth is the number of rounds that discovered new nodes.
	Depth int
}

// Engine expands neighborhoods breadth first using detectors.
type Engine struct {
	nodes     NodeLookup
	detectors []detect.Detector
	log       *slog.Logger
}

// NewEngine creates a new traversal engine. Detectors run in the given order.
func NewEngine(nodes NodeLookup, detectors []detect.Detector, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{nodes: nodes, detectors: detectors, log: logger}
}

// Neighborhood returns the nodes reachable from focusID within maxDepth
// rounds and the edges between them. maxDepth is clamped to the allowed range.
func (e *Engine) Neighborhood(ctx context.Context, focusID string, maxDepth int, filters model.Filters) (*Neighborhood, error) {
	focus, err := e.nodes.Lookup(focusID)
	if err != nil {
		return nil, helper.NewError("lookup focus", fmt.Errorf("%w: %v", ErrFocusNotFound, err))
	}
	maxDepth = model.ClampDepth(maxDepth)

	t := &traversal{
		engine:   e,
		ctx:      ctx,
		scope:    detect.NewScope(),
		filters:  filters,
		edges:    NewAssembler(),
		visited:  map[string]bool{focus.ID: true},
		rejected: map[string]bool{},
		result:   &Neighborhood{Focus: focus, Nodes: []model.Node{focus}},
	}

	frontier := []model.Node{focus}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, helper.NewError("expand neighborhood", err)
		}

		var next []model.Node
		for _, n := range frontier {
			discovered, err := t.expand(n)
			if err != nil {
				return nil, helper.NewError("expand neighborhood", err)
			}
			next = append(next, discovered...)
		}
		if len(next) > 0 {
			t.result.Depth = depth + 1
		}
		frontier = next
	}

	t.result.Edges = t.edges.Edges()
	return t.result, nil
}

// traversal is the state of one neighborhood query.
type traversal struct {
	engine   *Engine
	ctx      context.Context
	scope    *detect.Scope
	filters  model.Filters
	edges    *Assembler
	visited  map[string]bool
	rejected map[string]bool
	result   *Neighborhood
}

// expand runs every detector on n and returns the nodes seen for the first time.
func (t *traversal) expand(n model.Node) ([]model.Node, error) {
	var discovered []model.Node

	for _, d := range t.engine.detectors {
		if !d.Supports(n) {
			continue
		}

		edges, err := t.engine.detect(t.ctx, d, t.scope, n)
		if err != nil {
			if ctxErr := t.ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			t.engine.log.Warn("Detector failed",
				slog.String("detector", d.Name()),
				slog.String("node_id", n.ID),
				slog.String("error", err.Error()),
			)
			detectorFailures.WithLabelValues(d.Name()).Inc()
			continue
		}

		for _, edge := range edges {
			if !edge.Touches(n.ID) {
				continue
			}
			if !t.filters.AllowsEdge(edge) {
				t.result.Filtered++
				continue
			}

			other := edge.Other(n.ID)
			if !t.visited[other] {
				node, ok := t.admit(other)
				if !ok {
					continue
				}
				discovered = append(discovered, node)
			}

			if _, err := t.edges.Add(edge); err != nil {
				return nil, err
			}
		}
	}

	return discovered, nil
}

// admit resolves and filters a newly seen node id.
func (t *traversal) admit(id string) (model.Node, bool) {
	if t.rejected[id] {
		return model.Node{}, false
	}

	node, err := t.engine.nodes.Lookup(id)
	if err != nil {
		t.engine.log.Debug("Dropping edge to unknown node", slog.String("node_id", id))
		t.rejected[id] = true
		return model.Node{}, false
	}
	if !t.filters.AllowsNode(node) {
		t.result.Filtered++
		t.rejected[id] = true
		return model.Node{}, false
	}

	t.visited[id] = true
	t.result.Nodes = append(t.result.Nodes, node)
	return node, true
}

// detect isolates a detector so a panic counts as a failure of that detector.
func (e *Engine) detect(ctx context.Context, d detect.Detector, scope *detect.Scope, n model.Node) (edges []model.Edge, err error) {
	defer func() {
		if p := recover(); p != nil {
			edges = nil
			err = fmt.Errorf("detector panicked: %v", p)
		}
	}()
	return d.Detect(ctx, scope, n)
}
