package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short, stable SHA-256 prefix of a secret (refresh token, access token,
// escrow key) so log lines can correlate events without carrying the secret itself.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:6])
}
