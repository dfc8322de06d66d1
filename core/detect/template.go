package detect

import (
	"context"
	"log/slog"

	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/core/template"
	"github.com/siherrmann/homegraph/model"
)

// TemplateDetector emits template_depends_on edges from configured
// entities to the entities their expressions read.
type TemplateDetector struct {
	store    automation.Store
	resolver *template.Resolver
	log      *slog.Logger
}

// NewTemplateDetector creates a new template dependency detector. A nil
// resolver uses the default analyzer with the regex fallback.
func NewTemplateDetector(store automation.Store, resolver *template.Resolver, logger *slog.Logger) *TemplateDetector {
	if logger == nil {
		logger = slog.Default()
	}
	if resolver == nil {
		resolver = template.NewResolver(nil, logger)
	}
	return &TemplateDetector{store: store, resolver: resolver, log: logger}
}

func (d *TemplateDetector) Name() string { return "template" }

// Supports reports whether n can depend on or be read by a template.
func (d *TemplateDetector) Supports(n model.Node) bool {
	if d.store == nil {
		return false
	}
	switch n.Kind {
	case model.NodeKindEntity, model.NodeKindDevice, model.NodeKindZone, model.NodeKindGroup:
		return true
	}
	return false
}

// Detect emits the dependencies of the definition of n and the edges of
// every definition whose expressions read n.
func (d *TemplateDetector) Detect(ctx context.Context, scope *Scope, n model.Node) ([]model.Edge, error) {
	e := &emitter{}

	if n.Kind == model.NodeKindEntity {
		if def, ok := d.store.Definition(n.Key()); ok {
			for _, dep := range scope.templateDependencies(def, d.dependencies) {
				e.add(n.ID, dep, model.RelTemplateDependsOn)
			}
		}
	}

	for _, def := range d.store.Definitions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		defID := model.NormalizeNodeID(def.EntityID)
		if defID == n.ID {
			continue
		}
		for _, dep := range scope.templateDependencies(def, d.dependencies) {
			if dep == n.ID {
				e.add(defID, n.ID, model.RelTemplateDependsOn)
				break
			}
		}
	}

	return e.edges, nil
}

// dependencies resolves every expression of a definition and returns the
// node ids read, in order of appearance.
func (d *TemplateDetector) dependencies(def automation.Definition) []string {
	var deps []string
	seen := map[string]bool{}

	Walk(def.Config, func(path []string, v model.Value) bool {
		s, ok := v.Str()
		if !ok || !template.IsExpression(s) {
			return true
		}
		res := d.resolver.Resolve(s)
		if res.Strategy != "" && res.Strategy != "compiler" {
			d.log.Debug("Resolved template with fallback",
				slog.String("entity_id", def.EntityID),
				slog.String("strategy", res.Strategy),
			)
		}
		for _, dep := range res.Dependencies {
			id := model.NormalizeNodeID(dep)
			if !seen[id] {
				seen[id] = true
				deps = append(deps, id)
			}
		}
		return true
	})

	return deps
}
