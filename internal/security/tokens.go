package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"credential-lifecycle/backend/internal/platform/fault"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or its signature does not verify.
	ErrInvalidToken = fmt.Errorf("%w: access token", fault.ErrInvalid)
	// ErrSigningDisabled is returned by Issue on a verifier-only TokenSigner.
	ErrSigningDisabled = errors.New("token signer has no private key")
)

// TokenKind distinguishes tokens that carry a jti (revocable) from legacy tokens that do not.
type TokenKind int

const (
	// CurrentToken carries a jti and can be revoked.
	CurrentToken TokenKind = iota
	// LegacyToken has no jti; it is never revocable and never reported as revoked.
	LegacyToken
)

func (k TokenKind) String() string {
	if k == LegacyToken {
		return "legacy"
	}
	return "current"
}

// Claims is the identity asserted by an access token, before jti and exp are added.
type Claims struct {
	// Subject is the auth-side credential record id (sub).
	Subject string
	// UserID is the durable account id owned by the account service (user_id).
	UserID   string
	Username string
}

// AccessClaims holds the JWT claims of an access token: sub, user_id, username, jti, exp.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Kind reports whether the token is revocable.
func (c *AccessClaims) Kind() TokenKind {
	if c.ID == "" {
		return LegacyToken
	}
	return CurrentToken
}

// RemainingTTL returns the time left before exp at now, rounded up to the millisecond so an entry
// keyed on it never expires before the token does. Zero or negative means expired.
func (c *AccessClaims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Time.Sub(now)
	if d <= 0 {
		return d
	}
	return (d + time.Millisecond - 1).Truncate(time.Millisecond)
}

// SignerOption configures a TokenSigner.
type SignerOption func(*TokenSigner)

// WithClock overrides the time source used for exp on issue and for expiry checks on verify.
func WithClock(now func() time.Time) SignerOption {
	return func(s *TokenSigner) { s.nowF = now }
}

// TokenSigner issues and verifies access tokens with an asymmetric key pair. It is stateless:
// verification never consults revocation, which callers layer on top.
type TokenSigner struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	nowF       func() time.Time
}

// NewTokenSigner returns a TokenSigner that signs with privateKey and verifies with publicKey.
// The algorithm is fixed by the key type (RS256 or ES256) and pinned on verify.
func NewTokenSigner(privateKey crypto.Signer, publicKey crypto.PublicKey, opts ...SignerOption) (*TokenSigner, error) {
	method := SigningMethod(publicKey)
	if method == nil {
		return nil, ErrInvalidKey
	}
	if privateKey != nil {
		pm := SigningMethod(privateKey.Public())
		if pm == nil || pm.Alg() != method.Alg() {
			return nil, ErrInvalidKey
		}
	}
	s := &TokenSigner{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		nowF:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewTokenVerifier returns a verify-only TokenSigner for services that hold just the public key.
func NewTokenVerifier(publicKey crypto.PublicKey, opts ...SignerOption) (*TokenSigner, error) {
	return NewTokenSigner(nil, publicKey, opts...)
}

// Algorithm returns the JWT alg this signer uses.
func (s *TokenSigner) Algorithm() string {
	return s.method.Alg()
}

// Issue signs claims with a fresh jti and exp = now + ttl (second precision).
// Returns the encoded token and the exact claims it carries.
func (s *TokenSigner) Issue(claims Claims, ttl time.Duration) (string, *AccessClaims, error) {
	if s.privateKey == nil {
		return "", nil, ErrSigningDisabled
	}
	jti, err := generateJTI()
	if err != nil {
		return "", nil, err
	}
	expiresAt := s.nowF().UTC().Add(ttl).Truncate(time.Second)
	ac := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   claims.Subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID:   claims.UserID,
		Username: claims.Username,
	}
	token, err := s.sign(ac)
	if err != nil {
		return "", nil, err
	}
	return token, ac, nil
}

func (s *TokenSigner) sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	return t.SignedString(s.privateKey)
}

// Verify checks signature, structure and expiry. Any failure is ErrInvalidToken.
func (s *TokenSigner) Verify(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.publicKey, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowF),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
