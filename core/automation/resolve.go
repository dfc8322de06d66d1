package automation

// UniqueIDResolver maps the unique id of a configured entity to the entity
// id the registry assigned to it.
type UniqueIDResolver interface {
	EntityByUniqueID(domain, uniqueID string) (string, bool)
}

// Resolve returns a catalog of the definitions of store keyed by the entity
// ids the registry knows them by. A definition whose unique id is not
// registered keeps the id derived from its configuration.
func Resolve(store Store, resolver UniqueIDResolver) *Catalog {
	definitions := store.Definitions()
	for i, d := range definitions {
		if d.UniqueID == "" {
			continue
		}
		if entityID, ok := resolver.EntityByUniqueID(d.Domain, d.UniqueID); ok {
			definitions[i].EntityID = entityID
		}
	}
	return NewCatalog(definitions...)
}
