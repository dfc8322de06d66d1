package detect

import (
	"log/slog"

	"github.com/siherrmann/homegraph/core/automation"
	"github.com/siherrmann/homegraph/core/template"
)

// Default returns the detectors in registration order. A nil store
// disables the configuration and template detectors.
func Default(registry Registry, store automation.Store, resolver *template.Resolver, logger *slog.Logger) []Detector {
	return []Detector{
		NewContainmentDetector(registry),
		NewConfigurationDetector(store, logger),
		NewTemplateDetector(store, resolver, logger),
		NewMembershipDetector(registry),
	}
}
