// Package registration coordinates account creation across the auth service and the account
// service. There is no durable saga log: the state of a registration is inferred from whether its
// escrowed secret is still present.
//
//	Request           escrow secret, publish creation request
//	HandleCompleted   escrow present  -> hash, create credential record, delete escrow
//	                  escrow absent   -> abandoned (or replay of a finalized registration)
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"credential-lifecycle/backend/internal/contracts"
	"credential-lifecycle/backend/internal/escrow"
	"credential-lifecycle/backend/internal/identity/domain"
	identityrepo "credential-lifecycle/backend/internal/identity/repository"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/messaging"
	"credential-lifecycle/backend/internal/platform/fault"
	"credential-lifecycle/backend/internal/security"
	"credential-lifecycle/backend/internal/telemetry"
)

const instrumentationName = "credential-lifecycle/backend/internal/registration"

// AbandonedCounterName is the OTel counter incremented for every abandoned registration.
const AbandonedCounterName = "registration.saga.abandoned"

var (
	// ErrIncomplete is returned for a completion missing the remote id or the original request.
	ErrIncomplete = fmt.Errorf("%w: incomplete creation completion", fault.ErrInvalid)
	// ErrForeignKey is returned for a completion whose password key is not an escrow key of the
	// requesting username.
	ErrForeignKey = fmt.Errorf("%w: password key does not belong to the request", fault.ErrInvalid)
	// ErrAbandoned is returned when the escrowed secret was gone before the completion arrived.
	ErrAbandoned = fmt.Errorf("%w: escrowed secret expired", fault.ErrSagaAbandoned)
)

// Outcome is the terminal classification of one completion message.
type Outcome int

const (
	// OutcomeFinalized means the credential record was created and the escrow entry deleted.
	OutcomeFinalized Outcome = iota
	// OutcomeReplayed means the completion was already finalized earlier; nothing was done.
	OutcomeReplayed
	// OutcomeAbandoned means the secret expired; the remote account has no credentials.
	OutcomeAbandoned
	// OutcomeRejected means the message was malformed or conflicts with an existing record.
	OutcomeRejected
	// OutcomeFailed means a local step failed; the escrow entry is kept until its TTL.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinalized:
		return "finalized"
	case OutcomeReplayed:
		return "replayed"
	case OutcomeAbandoned:
		return "abandoned"
	case OutcomeRejected:
		return "rejected"
	default:
		return "failed"
	}
}

// Escrow is the subset of the credential escrow the saga uses.
type Escrow interface {
	Put(ctx context.Context, username, secret string, ttl time.Duration) (string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// IdentityRepo is the minimal credential record repository needed by the saga.
type IdentityRepo interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Identity, error)
	Create(ctx context.Context, i *domain.Identity) error
}

// PasswordHasher hashes the escrowed secret before it is stored.
type PasswordHasher interface {
	Hash(password []byte) (string, error)
}

// Option configures a Saga.
type Option func(*Saga)

// WithEscrowTTL sets how long a secret waits for the account service. Zero keeps the escrow default.
func WithEscrowTTL(ttl time.Duration) Option {
	return func(s *Saga) { s.escrowTTL = ttl }
}

// WithMeter sets the meter the abandonment counter is created from. Default is the global provider.
func WithMeter(m metric.Meter) Option {
	return func(s *Saga) { s.meter = m }
}

// WithEmitter sets the security event emitter.
func WithEmitter(e telemetry.EventEmitter) Option {
	return func(s *Saga) { s.emitter = e }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Saga) { s.log = l }
}

// Saga drives registrations from the auth service side.
type Saga struct {
	escrow     Escrow
	identities IdentityRepo
	hasher     PasswordHasher
	pub        messaging.Publisher
	escrowTTL  time.Duration
	meter      metric.Meter
	abandoned  metric.Int64Counter
	emitter    telemetry.EventEmitter
	log        logging.Logger
	nowF       func() time.Time
}

// New returns a Saga. The abandonment counter is registered on the configured meter.
func New(escrow Escrow, identities IdentityRepo, hasher PasswordHasher, pub messaging.Publisher, opts ...Option) (*Saga, error) {
	s := &Saga{
		escrow:     escrow,
		identities: identities,
		hasher:     hasher,
		pub:        pub,
		nowF:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	s.log = s.log.With("component", "registration")
	if s.meter == nil {
		s.meter = otel.Meter(instrumentationName)
	}
	counter, err := s.meter.Int64Counter(AbandonedCounterName,
		metric.WithDescription("Registrations whose escrowed secret expired before the account service replied"),
		metric.WithUnit("{registration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("registration: abandoned counter: %w", err)
	}
	s.abandoned = counter
	return s, nil
}

// Request escrows password and asks the account service to create the account. It returns the
// escrow key. Nothing durable is written locally. If the request cannot be published the escrow
// entry is removed best-effort and the publish error returned.
func (s *Saga) Request(ctx context.Context, username, email, password string) (string, error) {
	key, err := s.escrow.Put(ctx, username, password, s.escrowTTL)
	if err != nil {
		return "", err
	}
	body, err := contracts.Encode(contracts.EventUserCreated, contracts.CreationRequested{
		Username:    username,
		Email:       email,
		PasswordKey: key,
	})
	if err != nil {
		s.discard(ctx, key)
		return "", err
	}
	if err := s.pub.Publish(ctx, contracts.ExchangeUserEvents, contracts.RoutingUserSync, body); err != nil {
		s.log.Error(ctx, "publish creation request failed", "username", username, "error", err)
		s.discard(ctx, key)
		return "", err
	}
	s.log.Info(ctx, "registration requested", "username", username, "key_fp", security.Fingerprint(key))
	s.emit(ctx, telemetry.EventRegistrationRequested, "", username, nil)
	return key, nil
}

func (s *Saga) discard(ctx context.Context, key string) {
	if _, err := s.escrow.Delete(ctx, key); err != nil {
		s.log.Warn(ctx, "escrow cleanup failed", "key_fp", security.Fingerprint(key), "error", err)
	}
}

// HandleCompleted reconciles a creation completion with the escrowed secret.
//
// The returned error wraps a fault kind: ErrSagaAbandoned for an expired secret, ErrInvalid or
// ErrConflict for rejected messages, and whatever the store reported for failures.
func (s *Saga) HandleCompleted(ctx context.Context, msg contracts.CreationCompleted) (Outcome, error) {
	req := msg.OriginalRequest
	if strings.TrimSpace(msg.ID) == "" || req.Username == "" || req.Email == "" || req.PasswordKey == "" {
		s.log.Error(ctx, "incomplete creation completion", "user_id", msg.ID, "username", req.Username)
		return OutcomeRejected, ErrIncomplete
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		s.log.Error(ctx, "creation completion carries a malformed user id", "user_id", msg.ID)
		return OutcomeRejected, fmt.Errorf("%w: user id: %w", fault.ErrInvalid, err)
	}
	log := s.log.With("user_id", msg.ID, "username", req.Username, "key_fp", security.Fingerprint(req.PasswordKey))
	if !escrow.Owns(req.PasswordKey, req.Username) {
		log.Error(ctx, "creation completion references a key outside the requester's escrow")
		return OutcomeRejected, ErrForeignKey
	}

	password, found, err := s.escrow.Get(ctx, req.PasswordKey)
	if err != nil {
		log.Error(ctx, "escrow read failed", "error", err)
		return OutcomeFailed, err
	}
	if !found {
		return s.abandon(ctx, log, msg)
	}

	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		log.Error(ctx, "hash password failed", "error", err)
		return OutcomeFailed, err
	}
	rec := &domain.Identity{
		ID:           uuid.NewString(),
		UserID:       msg.ID,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    s.nowF().UTC(),
	}
	if err := s.identities.Create(ctx, rec); err != nil {
		if errors.Is(err, identityrepo.ErrDuplicate) {
			log.Warn(ctx, "credential record conflicts with an existing one", "error", err)
			return OutcomeRejected, err
		}
		// Escrow is kept so a redelivery can finish the job before the TTL.
		log.Error(ctx, "create credential record failed", "error", err)
		return OutcomeFailed, err
	}
	if ok, err := s.escrow.Delete(ctx, req.PasswordKey); err != nil || !ok {
		log.Warn(ctx, "escrow delete after finalize failed", "deleted", ok, "error", err)
	}
	log.Info(ctx, "registration finalized", "auth_user_id", rec.ID)
	s.emit(ctx, telemetry.EventRegistrationFinalized, msg.ID, req.Username, map[string]string{"auth_user_id": rec.ID})
	return OutcomeFinalized, nil
}

// abandon classifies a completion whose secret is gone. A completion for a record that already
// exists is a replay and is dropped silently.
func (s *Saga) abandon(ctx context.Context, log logging.Logger, msg contracts.CreationCompleted) (Outcome, error) {
	existing, err := s.identities.GetByUserID(ctx, msg.ID)
	if err != nil {
		log.Error(ctx, "lookup credential record failed", "error", err)
		return OutcomeFailed, err
	}
	if existing != nil {
		log.Debug(ctx, "completion already finalized")
		return OutcomeReplayed, nil
	}

	s.abandoned.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "escrow_expired")))
	log.Warn(ctx, "registration abandoned: escrowed secret expired")
	s.emit(ctx, telemetry.EventRegistrationAbandoned, msg.ID, msg.OriginalRequest.Username, nil)

	body, err := contracts.Encode(contracts.EventUserCreationAbandoned, contracts.CreationAbandoned{
		UserID:   msg.ID,
		Username: msg.OriginalRequest.Username,
		Email:    msg.OriginalRequest.Email,
		Reason:   "escrow_expired",
	})
	if err == nil {
		err = s.pub.Publish(ctx, contracts.ExchangeAuthEvents, contracts.RoutingCreationAbandoned, body)
	}
	if err != nil {
		log.Error(ctx, "dead-letter abandoned registration failed", "error", err)
	}
	return OutcomeAbandoned, ErrAbandoned
}

// Handle is the messaging.Handler for the completion queue. A failed completion is marked
// retryable: the secret is still escrowed, so the broker redelivers it once and dead-letters it
// if it fails again. Every other outcome is acknowledged.
func (s *Saga) Handle(ctx context.Context, body []byte) error {
	var msg contracts.CreationCompleted
	eventType, err := contracts.Decode(body, &msg)
	if err != nil {
		s.log.Error(ctx, "undecodable creation completion", "error", err)
		return nil
	}
	if eventType != contracts.EventUserCreated {
		s.log.Warn(ctx, "unknown event type", "event_type", eventType)
		return nil
	}
	outcome, err := s.HandleCompleted(ctx, msg)
	if outcome == OutcomeFailed {
		return messaging.Retry(err)
	}
	return nil
}

func (s *Saga) emit(ctx context.Context, eventType, userID, username string, meta map[string]string) {
	if s.emitter == nil {
		return
	}
	ev := telemetry.NewEvent(eventType, "auth-service")
	ev.UserID = userID
	ev.Username = username
	ev.Metadata = meta
	telemetry.EmitAsync(s.emitter, ctx, ev)
}
