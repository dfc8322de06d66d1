package model

const (
	// MinDepth and MaxDepth bound the traversal depth of a neighborhood query.
	MinDepth = 1
	MaxDepth = 5
	// DefaultDepth is used by transports when a request carries no depth.
	DefaultDepth = 2
	// DefaultSearchLimit caps search results when no limit is given.
	DefaultSearchLimit = 20
)

// ClampDepth bounds depth to [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	if depth < MinDepth {
		return MinDepth
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}

// Filters restricts which nodes and edges a neighborhood query traverses.
// Suppressed nodes are neither returned nor traversed through.
type Filters struct {
	ShowAreas         bool               `json:"show_areas"`
	ShowZones         bool               `json:"show_zones"`
	ShowLabels        bool               `json:"show_labels"`
	Domains           []string           `json:"domain_filter,omitempty"`
	RelationshipTypes []RelationshipType `json:"relationship_filter,omitempty"`
}

// DefaultFilters shows every kind and relationship.
func DefaultFilters() Filters {
	return Filters{
		ShowAreas:  true,
		ShowZones:  true,
		ShowLabels: true,
	}
}

// AllowsNode reports whether n passes the kind and domain filters.
func (f Filters) AllowsNode(n Node) bool {
	switch n.Kind {
	case NodeKindArea:
		return f.ShowAreas
	case NodeKindZone:
		return f.ShowZones
	case NodeKindLabel:
		return f.ShowLabels
	case NodeKindEntity:
		if len(f.Domains) == 0 {
			return true
		}
		for _, d := range f.Domains {
			if d == n.Domain {
				return true
			}
		}
		return false
	}
	return true
}

// AllowsEdge reports whether e passes the category and type filters.
func (f Filters) AllowsEdge(e Edge) bool {
	switch e.Type.Category() {
	case CategoryArea:
		if !f.ShowAreas {
			return false
		}
	case CategoryZone:
		if !f.ShowZones {
			return false
		}
	case CategoryLabel:
		if !f.ShowLabels {
			return false
		}
	}
	if len(f.RelationshipTypes) == 0 {
		return true
	}
	for _, t := range f.RelationshipTypes {
		if t == e.Type {
			return true
		}
	}
	return false
}

// IsDefault reports whether f filters nothing.
func (f Filters) IsDefault() bool {
	return f.ShowAreas && f.ShowZones && f.ShowLabels && len(f.Domains) == 0 && len(f.RelationshipTypes) == 0
}
