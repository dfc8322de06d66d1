package detect

import (
	"context"

	"github.com/siherrmann/homegraph/model"
)

// MembershipDetector emits group and label edges.
type MembershipDetector struct {
	registry Registry
}

// NewMembershipDetector creates a new group and label detector
func NewMembershipDetector(registry Registry) *MembershipDetector {
	return &MembershipDetector{registry: registry}
}

func (d *MembershipDetector) Name() string { return "membership" }

// Supports reports whether n can carry groups or labels.
func (d *MembershipDetector) Supports(n model.Node) bool {
	return n.Kind != model.NodeKindZone
}

// Detect emits membership edges of n in both directions.
func (d *MembershipDetector) Detect(ctx context.Context, scope *Scope, n model.Node) ([]model.Edge, error) {
	e := &emitter{}

	switch n.Kind {
	case model.NodeKindGroup:
		for _, member := range d.registry.MembersOfGroup(n.ID) {
			e.pair(n.ID, member, model.RelGroupContains, model.RelMemberOfGroup)
		}
	case model.NodeKindLabel:
		for _, member := range d.registry.MembersOfLabel(n.ID) {
			e.pair(n.ID, member, model.RelLabelAppliedTo, model.RelHasLabel)
		}
	}

	for _, group := range d.registry.GroupsOf(n.ID) {
		e.pair(group, n.ID, model.RelGroupContains, model.RelMemberOfGroup)
	}
	for _, label := range d.registry.LabelsOf(n.ID) {
		e.pair(label, n.ID, model.RelLabelAppliedTo, model.RelHasLabel)
	}

	return e.edges, nil
}
