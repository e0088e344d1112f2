// Package service is the account service side of registration: it turns creation requests into
// durable accounts and reports each one back to the auth service.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"credential-lifecycle/backend/internal/contracts"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/messaging"
	"credential-lifecycle/backend/internal/user/domain"
	userrepo "credential-lifecycle/backend/internal/user/repository"
)

// UserRepo is the minimal user repository needed by the provisioner.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

// Provisioner consumes creation requests. Processing is idempotent: a redelivered request for an
// account that already exists with the same email republishes the completion with the existing id.
type Provisioner struct {
	users UserRepo
	pub   messaging.Publisher
	log   logging.Logger
	nowF  func() time.Time
}

// NewProvisioner returns a Provisioner.
func NewProvisioner(users UserRepo, pub messaging.Publisher, log logging.Logger) *Provisioner {
	if log == nil {
		log = logging.Nop()
	}
	return &Provisioner{users: users, pub: pub, log: log.With("component", "provisioner"), nowF: time.Now}
}

// HandleRequested is the messaging.Handler for the creation request queue. Malformed and
// conflicting requests are dropped (acked) after logging; store and broker failures are retried.
func (p *Provisioner) HandleRequested(ctx context.Context, body []byte) error {
	var req contracts.CreationRequested
	eventType, err := contracts.Decode(body, &req)
	if err != nil {
		p.log.Error(ctx, "undecodable creation request", "error", err)
		return nil
	}
	if eventType != contracts.EventUserCreated {
		p.log.Warn(ctx, "unknown event type", "event_type", eventType)
		return nil
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.PasswordKey == "" {
		p.log.Error(ctx, "incomplete creation request", "username", req.Username)
		return nil
	}

	user, err := p.ensureUser(ctx, req)
	if err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			p.log.Warn(ctx, "creation request conflicts with an existing account", "username", req.Username)
			return nil
		}
		return messaging.Retry(err)
	}

	out, err := contracts.Encode(contracts.EventUserCreated, contracts.CreationCompleted{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		OriginalRequest: req,
	})
	if err != nil {
		return err
	}
	if err := p.pub.Publish(ctx, contracts.ExchangeAuthEvents, contracts.RoutingUserCreated, out); err != nil {
		return messaging.Retry(err)
	}
	p.log.Info(ctx, "account created", "user_id", user.ID, "username", user.Username)
	return nil
}

// ensureUser returns the account for req, creating it if needed. It returns ErrDuplicate when the
// username or email belongs to a different account.
func (p *Provisioner) ensureUser(ctx context.Context, req contracts.CreationRequested) (*domain.User, error) {
	existing, err := p.users.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return sameOrConflict(existing, req)
	}
	now := p.nowF().UTC()
	u := &domain.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = p.users.Create(ctx, u)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, userrepo.ErrDuplicate) {
		return nil, err
	}
	// Lost a race with a concurrent delivery, or the email is taken.
	existing, gerr := p.users.GetByUsername(ctx, req.Username)
	if gerr != nil {
		return nil, gerr
	}
	if existing == nil {
		return nil, err
	}
	return sameOrConflict(existing, req)
}

func sameOrConflict(u *domain.User, req contracts.CreationRequested) (*domain.User, error) {
	if strings.EqualFold(u.Email, req.Email) {
		return u, nil
	}
	return nil, userrepo.ErrDuplicate
}
