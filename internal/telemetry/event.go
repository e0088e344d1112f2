package telemetry

import "time"

// Security event types emitted by the auth service.
const (
	EventLoginSucceeded        = "auth.login.succeeded"
	EventLoginFailed           = "auth.login.failed"
	EventLogout                = "auth.logout"
	EventTokenRefreshed        = "auth.token.refreshed"
	EventRegistrationRequested = "registration.requested"
	EventRegistrationFinalized = "registration.finalized"
	EventRegistrationAbandoned = "registration.abandoned"
)

// Event is one security-relevant occurrence. It never carries secrets or raw tokens.
type Event struct {
	Type      string            `json:"event_type"`
	Source    string            `json:"source"`
	Subject   string            `json:"sub,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewEvent returns an Event of type eventType stamped with the current UTC time.
func NewEvent(eventType, source string) *Event {
	return &Event{Type: eventType, Source: source, CreatedAt: time.Now().UTC()}
}
