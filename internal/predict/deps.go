package predict

import (
	"netcode-csp/internal/scene"
	"netcode-csp/internal/telemetry"
	"netcode-csp/logging"
)

// Deps carries the ambient collaborators shared by Client and Server. Zero
// fields fall back to no-ops.
type Deps struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Registry  *scene.Registry
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.Multi()
	}
	return d
}
