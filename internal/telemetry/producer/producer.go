// Package producer streams security events to Kafka for downstream audit consumers.
package producer

import "credential-lifecycle/backend/internal/telemetry"

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
