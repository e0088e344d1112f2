package security

import "golang.org/x/crypto/bcrypt"

// Hasher is the one-way password function used when a registration is finalized and when a login
// is checked. Plaintext passwords only persist in the short-lived credential escrow.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher using bcrypt at cost. Non-positive cost selects bcrypt.DefaultCost;
// anything else is clamped to [bcrypt.MinCost, bcrypt.MaxCost].
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt hash stored in auth_users.hashed_password.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil if password matches hash, bcrypt.ErrMismatchedHashAndPassword if it does
// not, or a format error for a malformed hash.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}

// Matches reports whether password matches hash. A malformed hash never matches.
func (h *Hasher) Matches(hash, password string) bool {
	return h.Compare(hash, []byte(password)) == nil
}
