package automation

import (
	"sort"

	"github.com/siherrmann/homegraph/model"
)

// Definition is the configuration of one configured entity, e.g. an
// automation, a script, a scene or a template entity.
type Definition struct {
	EntityID string `json:"entity_id"`
	Domain   string `json:"domain"`
	// UniqueID is the id the entity registry knows the entity by.
	UniqueID string      `json:"unique_id,omitempty"`
	Source   string      `json:"source,omitempty"`
	Config   model.Value `json:"config"`
}

// Store is the configuration boundary. Implementations must be safe
// for concurrent reads.
type Store interface {
	Definition(entityID string) (Definition, bool)
	Definitions(domains ...string) []Definition
}

// Catalog is an immutable set of definitions in load order.
type Catalog struct {
	order []string
	byID  map[string]Definition
}

// NewCatalog creates a catalog. A later definition of the same entity
// replaces the earlier one but keeps its position.
func NewCatalog(definitions ...Definition) *Catalog {
	c := &Catalog{byID: make(map[string]Definition, len(definitions))}
	for _, d := range definitions {
		if d.Domain == "" {
			d.Domain = model.SplitDomain(d.EntityID)
		}
		if _, ok := c.byID[d.EntityID]; !ok {
			c.order = append(c.order, d.EntityID)
		}
		c.byID[d.EntityID] = d
	}
	return c
}

// Definition returns the definition of an entity.
func (c *Catalog) Definition(entityID string) (Definition, bool) {
	d, ok := c.byID[entityID]
	return d, ok
}

// Definitions returns the definitions of the given domains, all if none given.
func (c *Catalog) Definitions(domains ...string) []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, id := range c.order {
		d := c.byID[id]
		if len(domains) == 0 || containsString(domains, d.Domain) {
			out = append(out, d)
		}
	}
	return out
}

// Counts returns the number of definitions per domain.
func (c *Catalog) Counts() map[string]int {
	counts := map[string]int{}
	for _, d := range c.byID {
		counts[d.Domain]++
	}
	return counts
}

// Domains returns the domains present in the catalog, sorted.
func (c *Catalog) Domains() []string {
	counts := c.Counts()
	domains := make([]string, 0, len(counts))
	for d := range counts {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
