package detect

import (
	"context"

	"github.com/siherrmann/homegraph/model"
)

// ContainmentDetector emits device, area and zone containment edges.
type ContainmentDetector struct {
	registry Registry
}

// NewContainmentDetector creates a new containment detector
func NewContainmentDetector(registry Registry) *ContainmentDetector {
	return &ContainmentDetector{registry: registry}
}

func (d *ContainmentDetector) Name() string { return "containment" }

// Supports reports whether n can take part in containment.
func (d *ContainmentDetector) Supports(n model.Node) bool {
	switch n.Kind {
	case model.NodeKindEntity, model.NodeKindGroup, model.NodeKindDevice, model.NodeKindArea, model.NodeKindZone:
		return true
	}
	return false
}

// Detect emits containment edges of n in both directions.
func (d *ContainmentDetector) Detect(ctx context.Context, scope *Scope, n model.Node) ([]model.Edge, error) {
	e := &emitter{}

	switch n.Kind {
	case model.NodeKindDevice:
		for _, entity := range d.registry.EntitiesOfDevice(n.ID) {
			e.pair(n.ID, entity, model.RelDeviceContains, model.RelBelongsToDevice)
		}
		if area, ok := d.registry.AreaOfDevice(n.ID); ok {
			e.pair(area, n.ID, model.RelAreaContainsDevice, model.RelDeviceInArea)
		}
	case model.NodeKindArea:
		for _, device := range d.registry.DevicesOfArea(n.ID) {
			e.pair(n.ID, device, model.RelAreaContainsDevice, model.RelDeviceInArea)
		}
		for _, entity := range d.registry.EntitiesOfArea(n.ID) {
			e.pair(n.ID, entity, model.RelAreaContains, model.RelEntityInArea)
		}
	case model.NodeKindZone:
		for _, entity := range d.registry.EntitiesInZone(n.ID) {
			e.pair(n.ID, entity, model.RelZoneContains, model.RelEntityInZone)
		}
	case model.NodeKindEntity, model.NodeKindGroup:
		if device, ok := d.registry.DeviceOf(n.ID); ok {
			e.pair(device, n.ID, model.RelDeviceContains, model.RelBelongsToDevice)
		}
		if area, ok := d.registry.AreaOfEntity(n.ID); ok {
			e.pair(area, n.ID, model.RelAreaContains, model.RelEntityInArea)
		}
		for _, zone := range d.registry.ZonesOf(n.ID) {
			e.pair(zone, n.ID, model.RelZoneContains, model.RelEntityInZone)
		}
	}

	return e.edges, nil
}
