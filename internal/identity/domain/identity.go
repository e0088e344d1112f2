package domain

import (
	"errors"
	"strings"
	"time"
)

// Identity is the auth service's credential record for one account. ID is the auth-local id (the
// token subject); UserID is the durable account id assigned by the account service.
type Identity struct {
	ID           string
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Validate validates the identity for persistence. Returns an error describing the first validation failure.
func (i *Identity) Validate() error {
	switch {
	case i.ID == "":
		return errors.New("id is required")
	case i.UserID == "":
		return errors.New("user_id is required")
	case strings.TrimSpace(i.Username) == "":
		return errors.New("username is required")
	case i.Email == "":
		return errors.New("email is required")
	case i.PasswordHash == "":
		return errors.New("password hash is required")
	}
	return nil
}
