// Package service composes the token signer, the revocation registry and the refresh token store
// into the session operations exposed to clients: login, logout, refresh and authenticate.
//
// Logout and refresh mutate two independent keys with no cross-key transaction. The order is
// fixed (refresh token first, then the access token, then issuance) so every partial failure
// leaves a known state.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	identitydomain "credential-lifecycle/backend/internal/identity/domain"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/platform/fault"
	"credential-lifecycle/backend/internal/security"
	"credential-lifecycle/backend/internal/session/domain"
	"credential-lifecycle/backend/internal/telemetry"
)

var (
	// ErrUnauthorized is returned for every failed credential or token check. It never says which
	// input was wrong.
	ErrUnauthorized = fmt.Errorf("%w: invalid credentials", fault.ErrUnauthorized)
	// ErrRefreshNotRevoked is returned by Logout and Refresh when the refresh token was not in the store.
	ErrRefreshNotRevoked = fmt.Errorf("%w: refresh token could not be revoked", fault.ErrInvalid)
	// ErrAccessNotRevoked is returned when the access token could not be deny-listed. The refresh
	// token is already gone at that point.
	ErrAccessNotRevoked = fmt.Errorf("%w: access token could not be revoked", fault.ErrInvalid)
)

// UserRecords loads auth-side credential records.
type UserRecords interface {
	GetByID(ctx context.Context, id string) (*identitydomain.Identity, error)
	GetByUsername(ctx context.Context, username string) (*identitydomain.Identity, error)
}

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Matches(hash, password string) bool
}

// TokenIssuer signs and verifies access tokens.
type TokenIssuer interface {
	Issue(claims security.Claims, ttl time.Duration) (string, *security.AccessClaims, error)
	Verify(token string) (*security.AccessClaims, error)
}

// RevocationOracle deny-lists access tokens and answers whether one is revoked.
type RevocationOracle interface {
	Revoke(ctx context.Context, token string) (bool, error)
	IsRevoked(ctx context.Context, claims *security.AccessClaims) (bool, error)
}

// RefreshTokens is the opaque refresh token store.
type RefreshTokens interface {
	Issue(ctx context.Context, authUserID string) (string, error)
	Verify(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) (bool, error)
}

// Coordinator implements the session operations.
type Coordinator struct {
	users     UserRecords
	passwords PasswordVerifier
	tokens    TokenIssuer
	revoked   RevocationOracle
	refresh   RefreshTokens
	accessTTL time.Duration
	emitter   telemetry.EventEmitter
	log       logging.Logger
}

// NewCoordinator returns a Coordinator issuing access tokens valid for accessTTL.
// emitter and log may be nil.
func NewCoordinator(users UserRecords, passwords PasswordVerifier, tokens TokenIssuer, revoked RevocationOracle, refresh RefreshTokens, accessTTL time.Duration, emitter telemetry.EventEmitter, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		revoked:   revoked,
		refresh:   refresh,
		accessTTL: accessTTL,
		emitter:   emitter,
		log:       log.With("component", "session"),
	}
}

// Login checks username and password and returns a fresh token pair.
func (c *Coordinator) Login(ctx context.Context, username, password string) (*domain.TokenPair, error) {
	rec, err := c.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", fault.ErrUnavailable, err)
	}
	if rec == nil || !c.passwords.Matches(rec.PasswordHash, password) {
		c.log.Warn(ctx, "login failed", "username", username)
		c.emit(ctx, telemetry.EventLoginFailed, nil, username)
		return nil, ErrUnauthorized
	}
	pair, err := c.issuePair(ctx, rec)
	if err != nil {
		return nil, err
	}
	c.log.Info(ctx, "login succeeded", "auth_user_id", rec.ID, "username", rec.Username)
	c.emit(ctx, telemetry.EventLoginSucceeded, rec, rec.Username)
	return pair, nil
}

// Logout revokes the refresh token, then deny-lists the access token. If the refresh token cannot
// be revoked the access token is left untouched. If the access token cannot be deny-listed after
// the refresh token is gone the failure is reported; nothing is rolled back.
func (c *Coordinator) Logout(ctx context.Context, accessToken, refreshToken string) error {
	ok, err := c.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		return err
	}
	if !ok {
		c.log.Warn(ctx, "logout: refresh token not found", "token_fp", security.Fingerprint(refreshToken))
		return ErrRefreshNotRevoked
	}
	ok, err = c.revoked.Revoke(ctx, accessToken)
	if err != nil {
		c.log.Error(ctx, "logout: access token revocation failed after refresh token was revoked", "error", err)
		return err
	}
	if !ok {
		c.log.Warn(ctx, "logout: access token not revocable", "token_fp", security.Fingerprint(accessToken))
		return ErrAccessNotRevoked
	}
	c.log.Info(ctx, "logout completed")
	c.emit(ctx, telemetry.EventLogout, nil, "")
	return nil
}

// Refresh rotates a session: verify the refresh token, load its user, revoke the old refresh token,
// deny-list the old access token, then issue a new pair.
func (c *Coordinator) Refresh(ctx context.Context, accessToken, refreshToken string) (*domain.TokenPair, error) {
	authUserID, err := c.refresh.Verify(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, fault.ErrInvalid) {
			c.log.Warn(ctx, "refresh: token rejected", "token_fp", security.Fingerprint(refreshToken), "error", err)
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	rec, err := c.users.GetByID(ctx, authUserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", fault.ErrUnavailable, err)
	}
	if rec == nil {
		c.log.Warn(ctx, "refresh: user not found", "auth_user_id", authUserID)
		return nil, ErrUnauthorized
	}
	// A verifiable access token must belong to the same user as the refresh token.
	if claims, verr := c.tokens.Verify(accessToken); verr == nil && claims.Subject != authUserID {
		c.log.Warn(ctx, "refresh: access token subject mismatch", "auth_user_id", authUserID, "access_subject", claims.Subject)
		return nil, ErrUnauthorized
	}

	ok, err := c.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with a concurrent refresh or logout of the same token.
		return nil, ErrRefreshNotRevoked
	}
	ok, err = c.revoked.Revoke(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.log.Warn(ctx, "refresh: old access token not revocable", "auth_user_id", rec.ID)
		return nil, ErrAccessNotRevoked
	}

	pair, err := c.issuePair(ctx, rec)
	if err != nil {
		return nil, err
	}
	c.log.Info(ctx, "tokens refreshed", "auth_user_id", rec.ID)
	c.emit(ctx, telemetry.EventTokenRefreshed, rec, rec.Username)
	return pair, nil
}

// Authenticate admits accessToken iff it verifies and is not revoked.
func (c *Coordinator) Authenticate(ctx context.Context, accessToken string) (*security.AccessClaims, error) {
	claims, err := c.tokens.Verify(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	revoked, err := c.revoked.IsRevoked(ctx, claims)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// CurrentUser returns the credential record for the subject of claims.
func (c *Coordinator) CurrentUser(ctx context.Context, claims *security.AccessClaims) (*identitydomain.Identity, error) {
	rec, err := c.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", fault.ErrUnavailable, err)
	}
	if rec == nil {
		return nil, ErrUnauthorized
	}
	return rec, nil
}

func (c *Coordinator) issuePair(ctx context.Context, rec *identitydomain.Identity) (*domain.TokenPair, error) {
	access, _, err := c.tokens.Issue(security.Claims{
		Subject:  rec.ID,
		UserID:   rec.UserID,
		Username: rec.Username,
	}, c.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := c.refresh.Issue(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    domain.TokenType,
		ExpiresIn:    int64(c.accessTTL / time.Second),
	}, nil
}

func (c *Coordinator) emit(ctx context.Context, eventType string, rec *identitydomain.Identity, username string) {
	if c.emitter == nil {
		return
	}
	ev := telemetry.NewEvent(eventType, "auth-service")
	ev.Username = username
	if rec != nil {
		ev.Subject = rec.ID
		ev.UserID = rec.UserID
	}
	telemetry.EmitAsync(c.emitter, ctx, ev)
}
