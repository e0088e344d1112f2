// Package contracts holds the broker message shapes exchanged between the auth service and the
// account service. Both sides import it; field names are the wire contract.
package contracts

import (
	"encoding/json"
	"fmt"
)

// Exchanges. Both are durable topic exchanges.
const (
	ExchangeUserEvents = "user_events"
	ExchangeAuthEvents = "auth_events"
)

// Routing keys.
const (
	// RoutingUserSync carries creation requests from the auth service to the account service.
	RoutingUserSync = "user.sync"
	// RoutingUserCreated carries creation completions back to the auth service.
	RoutingUserCreated       = "user.created"
	RoutingUserUpdated       = "user.updated"
	RoutingUserDeleted       = "user.deleted"
	RoutingUserStatusChanged = "user.status_changed"
	// RoutingCreationAbandoned receives completions the auth service could not finalize because
	// the escrowed secret was gone.
	RoutingCreationAbandoned = "user.creation.abandoned"
	// Dead-letter keys for messages that failed again after one redelivery.
	RoutingUserSyncFailed    = "user.sync.failed"
	RoutingUserCreatedFailed = "user.created.failed"
)

// Queues.
const (
	QueueUserCreation         = "user_creation_queue"
	QueueAuthUserCreation     = "auth_user_creation_queue"
	QueueCreationAbandoned    = "auth_user_creation_abandoned_queue"
	QueueUserCreationDead     = "user_creation_dead_queue"
	QueueAuthUserCreationDead = "auth_user_creation_dead_queue"
)

// Event types carried in Envelope.EventType.
const (
	EventUserCreated           = "user.created"
	EventUserUpdated           = "user.updated"
	EventUserDeleted           = "user.deleted"
	EventUserStatusChanged     = "user.status_changed"
	EventUserCreationAbandoned = "user.creation.abandoned"
)

// Envelope wraps every message body.
type Envelope struct {
	EventType string          `json:"event_type"`
	UserData  json.RawMessage `json:"user_data"`
}

// CreationRequested asks the account service to create a durable account. PasswordKey is the
// escrow key; the password itself never crosses the broker.
type CreationRequested struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	PasswordKey string `json:"password_key"`
}

// CreationCompleted reports the durable account id and echoes the original request.
type CreationCompleted struct {
	ID              string            `json:"id"`
	Username        string            `json:"username"`
	Email           string            `json:"email"`
	OriginalRequest CreationRequested `json:"original_request"`
}

// CreationAbandoned is dead-lettered when a completion arrives after its escrow entry expired.
// The account exists remotely but has no credentials.
type CreationAbandoned struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Reason   string `json:"reason"`
}

// Encode wraps data in an Envelope of eventType and marshals it.
func Encode(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return json.Marshal(Envelope{EventType: eventType, UserData: raw})
}

// Decode unmarshals body as an Envelope and its user_data into out. It returns the event type so
// callers can skip unknown events; out is left untouched when user_data is absent.
func Decode(body []byte, out any) (string, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.UserData) == 0 || string(env.UserData) == "null" {
		return env.EventType, nil
	}
	if err := json.Unmarshal(env.UserData, out); err != nil {
		return env.EventType, fmt.Errorf("decode %s: %w", env.EventType, err)
	}
	return env.EventType, nil
}
