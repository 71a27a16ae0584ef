// Package signedtoken issues and verifies the signed session_id values
// described in spec §6: "<value>--<base64(HMAC-SHA256(SHA256(salt+secret),
// value))>" with altchars "-_". Ported from
// original_source/lamb/utils/cryptography.py
// (base64_sign_value/validate_base64_signed); the construction itself
// (service-struct wrapping a secret) follows the teacher's jwt_service.go
// shape without the JWT library, since the wire format here isn't a JWT.
package signedtoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
)

const separator = "--"

var encoding = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_").WithPadding(base64.NoPadding)

const (
	// SessionSalt namespaces session_id tokens (spec §6).
	SessionSalt = "session"
	// FlashSalt namespaces flash-message tokens (spec §6).
	FlashSalt = "flash"

	randomValueChars = 22
)

// Signer signs and verifies values under a single HMAC secret.
type Signer struct {
	secret []byte
}

// New creates a Signer over the given application secret.
func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) key(salt string) []byte {
	h := sha256.Sum256(append([]byte(salt), s.secret...))
	return h[:]
}

func (s *Signer) digest(salt, value string) []byte {
	mac := hmac.New(sha256.New, s.key(salt))
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

// Sign returns "value--signature" for the given salt namespace.
func (s *Signer) Sign(salt, value string) string {
	sig := encoding.EncodeToString(s.digest(salt, value))
	return fmt.Sprintf("%s%s%s", value, separator, sig)
}

// Verify checks a signed token and returns its value if valid.
func (s *Signer) Verify(salt, token string) (string, bool) {
	value, sig, found := strings.Cut(token, separator)
	if !found {
		return "", false
	}
	expected := encoding.EncodeToString(s.digest(salt, value))
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", false
	}
	return value, true
}

// NewSessionID mints a fresh signed session id: 22 random chars plus its
// HMAC signature (spec §6: "POST /bot ... mints a fresh session_id").
func (s *Signer) NewSessionID() (string, error) {
	raw := make([]byte, randomValueChars)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	value := encoding.EncodeToString(raw)[:randomValueChars]
	return s.Sign(SessionSalt, value), nil
}
