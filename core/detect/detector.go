package detect

import (
	"context"
	"errors"

	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/model"
)

// ErrMalformedConfiguration is returned for configurations of an
// unexpected shape.
var ErrMalformedConfiguration = errors.New("malformed configuration")

// Detector discovers the edges touching a node. A detector reporting an
// error contributes no edges for that node.
type Detector interface {
	Name() string
	Supports(node model.Node) bool
	Detect(ctx context.Context, scope *Scope, node model.Node) ([]model.Edge, error)
}

// Registry is the part of the registry adapter the detectors read.
type Registry interface {
	EntitiesOfDevice(deviceID string) []string
	DeviceOf(entityID string) (string, bool)
	DevicesOfArea(areaID string) []string
	AreaOfDevice(deviceID string) (string, bool)
	EntitiesOfArea(areaID string) []string
	AreaOfEntity(entityID string) (string, bool)
	EntitiesInZone(zoneID string) []string
	ZonesOf(entityID string) []string
	MembersOfGroup(groupID string) []string
	GroupsOf(nodeID string) []string
	MembersOfLabel(labelID string) []string
	LabelsOf(nodeID string) []string
}

// Scope holds memoized work of one query. It is not shared between queries.
type Scope struct {
	references map[string]referenceResult
	templates  map[string][]string
}

type referenceResult struct {
	refs []Reference
	err  error
}

// NewScope creates an empty query scope.
func NewScope() *Scope {
	return &Scope{
		references: map[string]referenceResult{},
		templates:  map[string][]string{},
	}
}

func (s *Scope) referencesOf(def automation.Definition) ([]Reference, error) {
	if s == nil {
		return ExtractReferences(def)
	}
	if cached, ok := s.references[def.EntityID]; ok {
		return cached.refs, cached.err
	}
	refs, err := ExtractReferences(def)
	s.references[def.EntityID] = referenceResult{refs: refs, err: err}
	return refs, err
}

func (s *Scope) templateDependencies(def automation.Definition, resolve func(automation.Definition) []string) []string {
	if s == nil {
		return resolve(def)
	}
	if cached, ok := s.templates[def.EntityID]; ok {
		return cached
	}
	deps := resolve(def)
	s.templates[def.EntityID] = deps
	return deps
}

// emitter collects edges, dropping self-edges and edges whose endpoint
// kinds the relationship type does not allow.
type emitter struct {
	edges []model.Edge
}

func (e *emitter) add(from, to string, t model.RelationshipType) {
	if from == to {
		return
	}
	fromKind, _, err := model.ParseNodeID(from)
	if err != nil {
		return
	}
	toKind, _, err := model.ParseNodeID(to)
	if err != nil {
		return
	}
	if !t.Allows(fromKind, toKind) {
		return
	}
	e.edges = append(e.edges, model.NewEdge(from, to, t))
}

// pair emits a relationship in both directions.
func (e *emitter) pair(container, member string, down, up model.RelationshipType) {
	e.add(container, member, down)
	e.add(member, container, up)
}
