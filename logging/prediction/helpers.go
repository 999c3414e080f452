package prediction

import (
	"context"

	"netcode-csp/logging"
)

const (
	// EventProtocolError is emitted when a message fails to decode or apply.
	// The message is discarded and no state changes.
	EventProtocolError logging.EventType = "prediction.protocol_error"
	// EventStaleSnapshot is emitted when a snapshot does not acknowledge a newer input.
	EventStaleSnapshot logging.EventType = "prediction.stale_snapshot"
	// EventDesync is emitted when a snapshot names objects the client does not have.
	EventDesync logging.EventType = "prediction.desync"
	// EventReconciled is emitted after rollback and replay complete.
	EventReconciled logging.EventType = "prediction.reconciled"
	// EventInputIgnored is emitted when a connection resends an already applied id.
	EventInputIgnored logging.EventType = "prediction.input_ignored"
	// EventInputRateLimited is emitted when a connection exceeds its input budget.
	EventInputRateLimited logging.EventType = "prediction.input_rate_limited"
	// EventConnectionDropped is emitted when a connection leaves the server.
	EventConnectionDropped logging.EventType = "network.connection_dropped"
	// EventStoreFailed is emitted when a snapshot could not be persisted.
	EventStoreFailed logging.EventType = "snapshot.store_failed"
)

// ProtocolErrorPayload describes a rejected message.
type ProtocolErrorPayload struct {
	Message string `json:"message"`
	Size    int    `json:"size"`
	Reason  string `json:"reason"`
}

// StaleSnapshotPayload captures an ignored snapshot.
type StaleSnapshotPayload struct {
	ServerID uint32 `json:"serverId"`
	Received uint32 `json:"received"`
}

// DesyncPayload lists the snapshot ids without local counterparts.
type DesyncPayload struct {
	ServerID          uint32   `json:"serverId"`
	MissingEntities   []uint32 `json:"missingEntities,omitempty"`
	MissingComponents []uint32 `json:"missingComponents,omitempty"`
	Rebuilt           bool     `json:"rebuilt"`
}

// ReconciledPayload summarizes one reconciliation.
type ReconciledPayload struct {
	ServerID uint32 `json:"serverId"`
	Dropped  int    `json:"dropped"`
	Replayed int    `json:"replayed"`
	Removed  int    `json:"removed"`
}

// InputPayload identifies an input relative to the last applied one.
type InputPayload struct {
	Last     uint32 `json:"last"`
	Received uint32 `json:"received"`
}

// ConnectionPayload describes why a connection went away.
type ConnectionPayload struct {
	Scene  string `json:"scene,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func ProtocolError(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, payload ProtocolErrorPayload, extra map[string]any) {
	publish(ctx, pub, EventProtocolError, tick, subject, logging.SeverityWarn, logging.CategoryNetwork, payload, extra)
}

func StaleSnapshot(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, payload StaleSnapshotPayload, extra map[string]any) {
	publish(ctx, pub, EventStaleSnapshot, tick, subject, logging.SeverityDebug, logging.CategoryPrediction, payload, extra)
}

func Desync(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, payload DesyncPayload, extra map[string]any) {
	publish(ctx, pub, EventDesync, tick, subject, logging.SeverityWarn, logging.CategoryPrediction, payload, extra)
}

func Reconciled(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, payload ReconciledPayload, extra map[string]any) {
	publish(ctx, pub, EventReconciled, tick, subject, logging.SeverityDebug, logging.CategoryPrediction, payload, extra)
}

func InputIgnored(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, payload InputPayload, extra map[string]any) {
	publish(ctx, pub, EventInputIgnored, tick, subject, logging.SeverityDebug, logging.CategoryPrediction, payload, extra)
}

func InputRateLimited(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, payload InputPayload, extra map[string]any) {
	publish(ctx, pub, EventInputRateLimited, tick, subject, logging.SeverityWarn, logging.CategoryNetwork, payload, extra)
}

func ConnectionDropped(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, payload ConnectionPayload, extra map[string]any) {
	publish(ctx, pub, EventConnectionDropped, tick, subject, logging.SeverityInfo, logging.CategoryNetwork, payload, extra)
}

func StoreFailed(ctx context.Context, pub logging.Publisher, tick uint64, subject logging.SubjectRef, err error) {
	publish(ctx, pub, EventStoreFailed, tick, subject, logging.SeverityWarn, logging.CategorySystem, nil, map[string]any{"error": err.Error()})
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, tick uint64, subject logging.SubjectRef, severity logging.Severity, category string, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Subject:  subject,
		Severity: severity,
		Category: category,
		Payload:  payload,
		Extra:    extra,
	})
}
