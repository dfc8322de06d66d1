package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/siherrmann/homegraph/model"
)

// ErrNotFound is returned when an id resolves to no registry record.
var ErrNotFound = errors.New("node not found")

var defaultIcons = map[model.NodeKind]string{
	model.NodeKindDevice: "mdi:devices",
	model.NodeKindArea:   "mdi:texture-box",
	model.NodeKindZone:   "mdi:map-marker-radius",
	model.NodeKindLabel:  "mdi:label",
	model.NodeKindGroup:  "mdi:google-circles-communities",
}

var domainIcons = map[string]string{
	"automation":     "mdi:robot",
	"binary_sensor":  "mdi:checkbox-blank-circle-outline",
	"climate":        "mdi:thermostat",
	"cover":          "mdi:window-shutter",
	"device_tracker": "mdi:crosshairs-gps",
	"fan":            "mdi:fan",
	"input_boolean":  "mdi:toggle-switch-outline",
	"input_select":   "mdi:format-list-bulleted",
	"light":          "mdi:lightbulb",
	"lock":           "mdi:lock",
	"media_player":   "mdi:cast",
	"person":         "mdi:account",
	"scene":          "mdi:palette",
	"script":         "mdi:script-text",
	"select":         "mdi:format-list-bulleted",
	"sensor":         "mdi:eye",
	"sun":            "mdi:white-balance-sunny",
	"switch":         "mdi:toggle-switch",
}

// Adapter resolves node ids against a Source and answers the reverse
// lookups the detectors need. All methods take and return node ids.
type Adapter struct {
	current atomic.Pointer[view]
	log     *slog.Logger
}

type view struct {
	source Source

	entityIDs        []string
	entitiesByDevice map[string][]string
	devicesByArea    map[string][]string
	entitiesByArea   map[string][]string
	groupsByMember   map[string][]string
	labelMembers     map[string][]string
	labelsByNode     map[string][]string
	byUniqueID       map[uniqueKey]string
}

type uniqueKey struct {
	domain, uniqueID string
}

// NewAdapter creates a new Adapter over source.
func NewAdapter(source Source, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{log: logger}
	a.Swap(source)
	return a
}

// Swap replaces the source. Every method reads the view current at its own
// call, so queries that must see one registry work on a Pin.
func (a *Adapter) Swap(source Source) {
	v := buildView(source)
	a.current.Store(v)
	a.log.Info("Indexed registry",
		slog.Int("entities", len(v.entityIDs)),
		slog.Int("devices", len(source.Devices())),
		slog.Int("areas", len(source.Areas())),
	)
}

// Pin returns an adapter fixed to the view served right now. Later swaps
// on a do not reach it.
func (a *Adapter) Pin() *Adapter {
	p := &Adapter{log: a.log}
	p.current.Store(a.current.Load())
	return p
}

// Source returns the source currently served.
func (a *Adapter) Source() Source {
	return a.current.Load().source
}

func buildView(source Source) *view {
	v := &view{
		source:           source,
		entitiesByDevice: map[string][]string{},
		devicesByArea:    map[string][]string{},
		entitiesByArea:   map[string][]string{},
		groupsByMember:   map[string][]string{},
		labelMembers:     map[string][]string{},
		labelsByNode:     map[string][]string{},
		byUniqueID:       map[uniqueKey]string{},
	}

	seen := map[string]bool{}
	for _, e := range source.Entities() {
		seen[e.EntityID] = true
		v.entityIDs = append(v.entityIDs, e.EntityID)
		if e.UniqueID != "" {
			key := uniqueKey{domain: model.SplitDomain(e.EntityID), uniqueID: e.UniqueID}
			if _, ok := v.byUniqueID[key]; !ok {
				v.byUniqueID[key] = e.EntityID
			}
		}
		if strings.HasPrefix(e.EntityID, "zone.") {
			continue
		}

		nodeID := model.NormalizeNodeID(e.EntityID)
		if e.DeviceID != "" {
			v.entitiesByDevice[e.DeviceID] = append(v.entitiesByDevice[e.DeviceID], nodeID)
		}
		if e.AreaID != "" {
			v.entitiesByArea[e.AreaID] = append(v.entitiesByArea[e.AreaID], nodeID)
		}
		v.addLabels(nodeID, e.Labels)
	}
	for _, st := range source.States() {
		if !seen[st.EntityID] {
			seen[st.EntityID] = true
			v.entityIDs = append(v.entityIDs, st.EntityID)
		}
	}
	for _, d := range source.Devices() {
		nodeID := model.DeviceNodeID(d.ID)
		if d.AreaID != "" {
			v.devicesByArea[d.AreaID] = append(v.devicesByArea[d.AreaID], nodeID)
		}
		v.addLabels(nodeID, d.Labels)
	}
	for _, ar := range source.Areas() {
		v.addLabels(model.AreaNodeID(ar.ID), ar.Labels)
	}
	for _, g := range source.Groups() {
		groupID := model.GroupNodeID(g.EntityID)
		for _, member := range g.Members {
			memberID := model.NormalizeNodeID(member)
			v.groupsByMember[memberID] = appendUnique(v.groupsByMember[memberID], groupID)
		}
	}

	return v
}

func (v *view) addLabels(nodeID string, labels []string) {
	for _, l := range labels {
		v.labelMembers[l] = appendUnique(v.labelMembers[l], nodeID)
		v.labelsByNode[nodeID] = appendUnique(v.labelsByNode[nodeID], model.LabelNodeID(l))
	}
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Lookup resolves a node id into a node with its presentation fields.
func (a *Adapter) Lookup(id string) (model.Node, error) {
	v := a.current.Load()

	kind, key, err := model.ParseNodeID(id)
	if err != nil {
		return model.Node{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	switch kind {
	case model.NodeKindEntity:
		return v.entityNode(id, key)
	case model.NodeKindDevice:
		d, ok := v.source.Device(key)
		if !ok {
			return model.Node{}, notFound(id)
		}
		n := model.Node{ID: id, Kind: kind, Name: d.Name, Icon: defaultIcons[kind]}
		if area, ok := v.source.Area(d.AreaID); ok {
			n.AreaName = area.Name
		}
		return n, nil
	case model.NodeKindArea:
		ar, ok := v.source.Area(key)
		if !ok {
			return model.Node{}, notFound(id)
		}
		return model.Node{ID: id, Kind: kind, Name: ar.Name, Icon: firstNonEmpty(ar.Icon, defaultIcons[kind])}, nil
	case model.NodeKindZone:
		z, ok := v.source.Zone(key)
		if !ok {
			return model.Node{}, notFound(id)
		}
		n := model.Node{ID: id, Kind: kind, Domain: "zone", Name: z.Name, Icon: firstNonEmpty(z.Icon, defaultIcons[kind])}
		if st, ok := v.source.State("zone." + key); ok {
			n.State = st.State
		}
		return n, nil
	case model.NodeKindLabel:
		l, ok := v.source.Label(key)
		if !ok {
			return model.Node{}, notFound(id)
		}
		return model.Node{ID: id, Kind: kind, Name: l.Name, Icon: firstNonEmpty(l.Icon, defaultIcons[kind])}, nil
	case model.NodeKindGroup:
		g, ok := v.source.Group(key)
		if !ok {
			return model.Node{}, notFound(id)
		}
		n := model.Node{ID: id, Kind: kind, Domain: model.SplitDomain(key), Name: g.Name, Icon: firstNonEmpty(g.Icon, defaultIcons[kind])}
		if st, ok := v.source.State(key); ok {
			n.State = st.State
			n.Name = firstNonEmpty(n.Name, st.FriendlyName())
		}
		if e, ok := v.source.Entity(key); ok {
			n.AreaName = v.areaName(e)
		}
		return n, nil
	}

	return model.Node{}, notFound(id)
}

func (v *view) entityNode(id, entityID string) (model.Node, error) {
	e, inRegistry := v.source.Entity(entityID)
	st, hasState := v.source.State(entityID)
	if !inRegistry && !hasState {
		return model.Node{}, notFound(id)
	}

	domain := model.SplitDomain(entityID)
	n := model.Node{
		ID:       id,
		Kind:     model.NodeKindEntity,
		Domain:   domain,
		Name:     firstNonEmpty(e.Name, st.FriendlyName()),
		Icon:     firstNonEmpty(e.Icon, st.Attributes.String("icon"), domainIcons[domain], "mdi:help-circle"),
		State:    st.State,
		DeviceID: e.DeviceID,
	}
	if inRegistry {
		n.AreaName = v.areaName(e)
	}
	return n, nil
}

// areaName returns the direct area of an entity or the area of its device.
func (v *view) areaName(e Entity) string {
	areaID := e.AreaID
	if areaID == "" && e.DeviceID != "" {
		if d, ok := v.source.Device(e.DeviceID); ok {
			areaID = d.AreaID
		}
	}
	if ar, ok := v.source.Area(areaID); ok {
		return ar.Name
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}

// entityKey returns the entity id behind an entity or group node id.
func entityKey(nodeID string) (string, bool) {
	kind, key, err := model.ParseNodeID(nodeID)
	if err != nil {
		return "", false
	}
	switch kind {
	case model.NodeKindEntity, model.NodeKindGroup:
		return key, true
	case model.NodeKindZone:
		return "zone." + key, true
	}
	return "", false
}

func keyOf(nodeID string, kind model.NodeKind) string {
	k, key, err := model.ParseNodeID(nodeID)
	if err != nil || k != kind {
		return ""
	}
	return key
}

// EntitiesOfDevice returns the entities registered to a device.
func (a *Adapter) EntitiesOfDevice(deviceID string) []string {
	return a.current.Load().entitiesByDevice[keyOf(deviceID, model.NodeKindDevice)]
}

// DeviceOf returns the device an entity belongs to.
func (a *Adapter) DeviceOf(entityID string) (string, bool) {
	v := a.current.Load()
	key, ok := entityKey(entityID)
	if !ok {
		return "", false
	}
	e, ok := v.source.Entity(key)
	if !ok || e.DeviceID == "" {
		return "", false
	}
	if _, ok := v.source.Device(e.DeviceID); !ok {
		return "", false
	}
	return model.DeviceNodeID(e.DeviceID), true
}

// DevicesOfArea returns the devices assigned to an area.
func (a *Adapter) DevicesOfArea(areaID string) []string {
	return a.current.Load().devicesByArea[keyOf(areaID, model.NodeKindArea)]
}

// AreaOfDevice returns the area a device is assigned to.
func (a *Adapter) AreaOfDevice(deviceID string) (string, bool) {
	v := a.current.Load()
	d, ok := v.source.Device(keyOf(deviceID, model.NodeKindDevice))
	if !ok || d.AreaID == "" {
		return "", false
	}
	return model.AreaNodeID(d.AreaID), true
}

// EntitiesOfArea returns the entities directly assigned to an area.
// Entities inheriting the area from their device are reached through the device.
func (a *Adapter) EntitiesOfArea(areaID string) []string {
	return a.current.Load().entitiesByArea[keyOf(areaID, model.NodeKindArea)]
}

// AreaOfEntity returns the area an entity is directly assigned to.
func (a *Adapter) AreaOfEntity(entityID string) (string, bool) {
	v := a.current.Load()
	key, ok := entityKey(entityID)
	if !ok {
		return "", false
	}
	e, ok := v.source.Entity(key)
	if !ok || e.AreaID == "" {
		return "", false
	}
	return model.AreaNodeID(e.AreaID), true
}

// EntitiesInZone returns the located entities inside a zone.
func (a *Adapter) EntitiesInZone(zoneID string) []string {
	v := a.current.Load()
	z, ok := v.source.Zone(keyOf(zoneID, model.NodeKindZone))
	if !ok {
		return nil
	}

	var members []string
	for _, st := range v.source.States() {
		if !zoneCandidate(st.EntityID) {
			continue
		}
		if z.Contains(st) {
			members = append(members, model.NormalizeNodeID(st.EntityID))
		}
	}
	return members
}

// ZonesOf returns the zones an entity is currently located in.
func (a *Adapter) ZonesOf(entityID string) []string {
	v := a.current.Load()
	if keyOf(entityID, model.NodeKindEntity) == "" {
		return nil
	}
	key, _ := entityKey(entityID)
	if !zoneCandidate(key) {
		return nil
	}
	st, ok := v.source.State(key)
	if !ok {
		return nil
	}

	var zones []string
	for _, z := range v.source.Zones() {
		if z.Contains(st) {
			zones = append(zones, model.ZoneNodeID(z.ID))
		}
	}
	return zones
}

func zoneCandidate(entityID string) bool {
	return !strings.HasPrefix(entityID, "zone.") && !strings.HasPrefix(entityID, "group.")
}

// MembersOfGroup returns the members of a group.
func (a *Adapter) MembersOfGroup(groupID string) []string {
	v := a.current.Load()
	g, ok := v.source.Group(keyOf(groupID, model.NodeKindGroup))
	if !ok {
		return nil
	}
	members := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		members = appendUnique(members, model.NormalizeNodeID(m))
	}
	return members
}

// GroupsOf returns the groups a node is a member of.
func (a *Adapter) GroupsOf(nodeID string) []string {
	return a.current.Load().groupsByMember[nodeID]
}

// MembersOfLabel returns the entities, devices and areas carrying a label.
func (a *Adapter) MembersOfLabel(labelID string) []string {
	return a.current.Load().labelMembers[keyOf(labelID, model.NodeKindLabel)]
}

// LabelsOf returns the labels applied to a node.
func (a *Adapter) LabelsOf(nodeID string) []string {
	return a.current.Load().labelsByNode[nodeID]
}

// Attributes returns the state attributes of an entity node.
func (a *Adapter) Attributes(entityID string) model.Attributes {
	key, ok := entityKey(entityID)
	if !ok {
		return nil
	}
	st, ok := a.current.Load().source.State(key)
	if !ok {
		return nil
	}
	return st.Attributes
}

// EntityByUniqueID returns the entity id registered for the unique id of
// an entity of domain.
func (a *Adapter) EntityByUniqueID(domain, uniqueID string) (string, bool) {
	id, ok := a.current.Load().byUniqueID[uniqueKey{domain: domain, uniqueID: uniqueID}]
	return id, ok
}

// EntityIDs returns every known entity id, registry entries first.
func (a *Adapter) EntityIDs() []string {
	return a.current.Load().entityIDs
}

// Search returns nodes whose id or name contains fragment, entities first.
func (a *Adapter) Search(fragment string, limit int) []model.Node {
	if limit <= 0 {
		limit = model.DefaultSearchLimit
	}
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if needle == "" {
		return []model.Node{}
	}

	v := a.current.Load()
	results := []model.Node{}
	match := func(id string) bool {
		n, err := a.Lookup(id)
		if err != nil {
			return false
		}
		if strings.Contains(strings.ToLower(n.Key()), needle) || strings.Contains(strings.ToLower(n.Name), needle) {
			results = append(results, n)
		}
		return len(results) >= limit
	}

	for _, id := range v.entityIDs {
		if match(model.NormalizeNodeID(id)) {
			return results
		}
	}
	for _, d := range v.source.Devices() {
		if match(model.DeviceNodeID(d.ID)) {
			return results
		}
	}
	for _, ar := range v.source.Areas() {
		if match(model.AreaNodeID(ar.ID)) {
			return results
		}
	}
	for _, l := range v.source.Labels() {
		if match(model.LabelNodeID(l.ID)) {
			return results
		}
	}
	return results
}

// Counts returns the number of nodes per kind and entities per domain.
func (a *Adapter) Counts() (map[model.NodeKind]int, map[string]int) {
	v := a.current.Load()
	kinds := map[model.NodeKind]int{}
	domains := map[string]int{}

	for _, id := range v.entityIDs {
		kind, _, err := model.ParseNodeID(model.NormalizeNodeID(id))
		if err != nil {
			continue
		}
		if kind == model.NodeKindEntity {
			kinds[kind]++
			domains[model.SplitDomain(id)]++
		}
	}
	kinds[model.NodeKindDevice] = len(v.source.Devices())
	kinds[model.NodeKindArea] = len(v.source.Areas())
	kinds[model.NodeKindZone] = len(v.source.Zones())
	kinds[model.NodeKindLabel] = len(v.source.Labels())
	kinds[model.NodeKindGroup] = len(v.source.Groups())
	return kinds, domains
}
