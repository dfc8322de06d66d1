package detect

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/model"
)

// ConfigurationDetector emits trigger, condition and control edges read
// from automation, script, scene and template definitions.
type ConfigurationDetector struct {
	store automation.Store
	log   *slog.Logger
}

// NewConfigurationDetector creates a new configuration detector
func NewConfigurationDetector(store automation.Store, logger *slog.Logger) *ConfigurationDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigurationDetector{store: store, log: logger}
}

func (d *ConfigurationDetector) Name() string { return "configuration" }

// Supports reports whether n can be referenced from a configuration.
// Every node kind can be.
func (d *ConfigurationDetector) Supports(n model.Node) bool {
	return d.store != nil
}

// Detect emits the edges of the definition of n and the edges of every
// other definition referencing n.
func (d *ConfigurationDetector) Detect(ctx context.Context, scope *Scope, n model.Node) ([]model.Edge, error) {
	e := &emitter{}

	if n.Kind == model.NodeKindEntity {
		if def, ok := d.store.Definition(n.Key()); ok {
			refs, err := scope.referencesOf(def)
			if err != nil {
				d.log.Warn("Skipping malformed configuration",
					slog.String("entity_id", def.EntityID),
					slog.String("source", def.Source),
					slog.String("error", err.Error()),
				)
			}
			for _, ref := range refs {
				emitReference(e, n.ID, ref)
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
		refs, err := scope.referencesOf(def)
		if errors.Is(err, ErrMalformedConfiguration) {
			continue
		}
		for _, ref := range refs {
			if ref.NodeID == n.ID {
				emitReference(e, defID, ref)
			}
		}
	}

	return e.edges, nil
}

func emitReference(e *emitter, definitionID string, ref Reference) {
	t, ok := ref.Role.Relationship()
	if !ok {
		return
	}
	if t == model.RelControls {
		e.add(definitionID, ref.NodeID, t)
		return
	}
	e.add(ref.NodeID, definitionID, t)
}
