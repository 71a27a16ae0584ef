// Package userrepo persists users and their bot profiles in Postgres,
// grounded on the teacher's internal/repository/user_repository.go (pgx
// QueryRow/Exec patterns, pgx.ErrNoRows -> nil,nil) and
// workspace_repository.go (JSONB columns for nested structures).
package userrepo

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// HashPasscode format: "algorithm$iterations$salt$base64hash", ported from
// original_source/lamb/utils/cryptography.py hash_passcode (PBKDF2-HMAC-
// SHA256, 600000 iterations, 16-byte salt).
const (
	passcodeAlgorithm  = "pbkdf2_sha256"
	passcodeIterations = 600_000
	passcodeKeyLen     = 32
	passcodeSaltLen    = 16
)

// HashPasscode derives a salted PBKDF2-HMAC-SHA256 hash of a raw passcode.
func HashPasscode(raw string) (string, error) {
	salt := make([]byte, passcodeSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate passcode salt: %w", err)
	}
	return encodePasscode(raw, salt), nil
}

func encodePasscode(raw string, salt []byte) string {
	derived := pbkdf2.Key([]byte(raw), salt, passcodeIterations, passcodeKeyLen, sha256.New)
	return strings.Join([]string{
		passcodeAlgorithm,
		strconv.Itoa(passcodeIterations),
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(derived),
	}, "$")
}

// VerifyPasscode checks a raw passcode against a stored hash produced by
// HashPasscode. Unknown algorithms or malformed hashes always fail closed.
func VerifyPasscode(raw, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != passcodeAlgorithm {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(raw), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
