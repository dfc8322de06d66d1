package model

// NodeView is the presentation record of a node in a query result.
type NodeView struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Domain   string   `json:"domain,omitempty"`
	Label    string   `json:"label"`
	Icon     string   `json:"icon,omitempty"`
	State    string   `json:"state,omitempty"`
	Area     string   `json:"area,omitempty"`
	DeviceID string   `json:"device_id,omitempty"`
}

// EdgeView is the presentation record of an edge in a query result.
type EdgeView struct {
	From             string           `json:"from_node"`
	To               string           `json:"to_node"`
	RelationshipType RelationshipType `json:"relationship_type"`
	Label            string           `json:"label"`
}

// NeighborhoodResult is the answer to a neighborhood query.
type NeighborhoodResult struct {
	Nodes         []NodeView `json:"nodes"`
	Edges         []EdgeView `json:"edges"`
	FocusID       string     `json:"focus_id"`
	FilteredCount int        `json:"filtered_count,omitempty"`
}

// EmptyNeighborhood returns a well-formed result without nodes or edges.
func EmptyNeighborhood(focusID string) NeighborhoodResult {
	return NeighborhoodResult{
		Nodes:   []NodeView{},
		Edges:   []EdgeView{},
		FocusID: focusID,
	}
}

// NewNodeView converts a node into its presentation record.
func NewNodeView(n Node) NodeView {
	label := n.Name
	if label == "" {
		label = n.Key()
	}
	return NodeView{
		ID:       n.ID,
		Kind:     n.Kind,
		Domain:   n.Domain,
		Label:    label,
		Icon:     n.Icon,
		State:    n.State,
		Area:     n.AreaName,
		DeviceID: n.DeviceID,
	}
}

// NewEdgeView converts an edge into its presentation record.
func NewEdgeView(e Edge) EdgeView {
	return EdgeView{
		From:             e.FromID,
		To:               e.ToID,
		RelationshipType: e.Type,
		Label:            e.Label,
	}
}

// SearchResult is a node matching a search fragment.
type SearchResult struct {
	ID     string   `json:"id"`
	Kind   NodeKind `json:"kind"`
	Label  string   `json:"label"`
	Domain string   `json:"domain,omitempty"`
	Icon   string   `json:"icon,omitempty"`
	State  string   `json:"state,omitempty"`
}

// GraphStatistics summarizes the registry and configuration sources.
type GraphStatistics struct {
	Nodes         map[NodeKind]int `json:"nodes"`
	Domains       map[string]int   `json:"domains"`
	Definitions   map[string]int   `json:"definitions"`
	TotalNodes    int              `json:"total_nodes"`
	TemplateNodes int              `json:"template_nodes"`
}

// NewGraphStatistics returns statistics with initialized maps.
func NewGraphStatistics() GraphStatistics {
	return GraphStatistics{
		Nodes:       map[NodeKind]int{},
		Domains:     map[string]int{},
		Definitions: map[string]int{},
	}
}
