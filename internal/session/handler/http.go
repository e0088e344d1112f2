// Package handler exposes registration and the session operations over HTTP.
package handler

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	identitydomain "credential-lifecycle/backend/internal/identity/domain"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/security"
	"credential-lifecycle/backend/internal/server/interceptors"
	"credential-lifecycle/backend/internal/session/domain"
)

// Sessions is the session coordinator as seen by the HTTP layer.
type Sessions interface {
	Login(ctx context.Context, username, password string) (*domain.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*domain.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*security.AccessClaims, error)
	CurrentUser(ctx context.Context, claims *security.AccessClaims) (*identitydomain.Identity, error)
}

// Registrar starts a registration.
type Registrar interface {
	Request(ctx context.Context, username, email, password string) (string, error)
}

// Handler serves /register, /login, /logout, /refresh and /me.
type Handler struct {
	sessions  Sessions
	registrar Registrar
	log       logging.Logger
}

// NewHandler returns a Handler. log may be nil.
func NewHandler(sessions Sessions, registrar Registrar, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{sessions: sessions, registrar: registrar, log: log}
}

// Mount registers the routes on r.
func (h *Handler) Mount(r fiber.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Post("/refresh", h.Refresh)
	r.Get("/me", interceptors.RequireBearer(h.sessions), h.Me)
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate checks field presence and length limits.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.RuneLength(3, 50)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.RuneLength(1, 16)),
	)
}

// LoginRequest is the body of POST /login. Both JSON and form encodings are accepted.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Validate checks that both fields are present.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// TokensRequest is the body of POST /logout and POST /refresh.
type TokensRequest struct {
	AccessToken  string `json:"access_token" form:"access_token"`
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// Validate checks that both tokens are present.
func (r TokensRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccessToken, validation.Required),
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// ownedStrings is implemented by request bodies whose string fields outlive the handler.
type ownedStrings interface {
	own()
}

func (r *RegisterRequest) own() {
	r.Username = utils.CopyString(r.Username)
	r.Email = utils.CopyString(r.Email)
	r.Password = utils.CopyString(r.Password)
}

func (r *LoginRequest) own() {
	r.Username = utils.CopyString(r.Username)
	r.Password = utils.CopyString(r.Password)
}

func (r *TokensRequest) own() {
	r.AccessToken = utils.CopyString(r.AccessToken)
	r.RefreshToken = utils.CopyString(r.RefreshToken)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type userResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Register accepts a registration and answers 202; the account is created asynchronously.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}
	if _, err := h.registrar.Request(c.UserContext(), req.Username, req.Email, req.Password); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":  "registration accepted",
		"username": req.Username,
		"email":    req.Email,
	})
}

// Login exchanges username and password for a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}
	pair, err := h.sessions.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(toTokenResponse(pair))
}

// Logout revokes both tokens of a session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	var req TokensRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}
	if err := h.sessions.Logout(c.UserContext(), req.AccessToken, req.RefreshToken); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"detail": "logged out"})
}

// Refresh rotates a session's token pair.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req TokensRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}
	pair, err := h.sessions.Refresh(c.UserContext(), req.AccessToken, req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(toTokenResponse(pair))
}

// Me returns the credential record of the bearer.
func (h *Handler) Me(c *fiber.Ctx) error {
	claims, ok := interceptors.ClaimsFrom(c.UserContext())
	if !ok {
		return fiber.ErrUnauthorized
	}
	rec, err := h.sessions.CurrentUser(c.UserContext(), claims)
	if err != nil {
		return err
	}
	return c.JSON(userResponse{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Username:  rec.Username,
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
	})
}

// bind parses the body into out. Form values alias fasthttp's reused request buffer, and usernames
// reach goroutines that run after the handler returns (security events), so out gets its own copies.
func bind(c *fiber.Ctx, out ownedStrings) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	out.own()
	return nil
}

func invalid(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"detail": err})
}

func toTokenResponse(p *domain.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}
