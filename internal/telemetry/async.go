package telemetry

import (
	"context"
	"log/slog"
	"time"
)

// emitTimeout bounds one detached emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long cmd/server waits, after the HTTP and gRPC servers and the
// completion consumer have stopped, before it shuts the OTel providers down. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync sends event on its own goroutine so logins, logouts and saga steps never wait on the
// event stream. Nil emitter or event is a no-op.
//
// The emit keeps ctx's values (trace and span ids) but not its cancellation: a client hanging up
// after a successful login must not drop the login event.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *Event) {
	if emitter == nil || event == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		emitCtx, cancel := context.WithTimeout(detached, emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			slog.Default().WarnContext(detached, "security event emit failed", "event_type", event.Type, "error", err)
		}
	}()
}
