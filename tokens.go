package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Token lengths fixed by the account lifecycle contracts.
const (
	// VerificationTokenLength is the exact length of a pending email
	// verification token. Consumption rejects anything else outright.
	VerificationTokenLength = 64

	// ResetSecretLength is the length of the single-use password reset
	// secret that temporarily replaces the user's password.
	ResetSecretLength = 32
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomString returns a cryptographically random alphanumeric
// string of length n.
func GenerateRandomString(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(out), nil
}

// GenerateVerificationToken returns a fresh 64-character verification token.
func GenerateVerificationToken() (string, error) {
	return GenerateRandomString(VerificationTokenLength)
}

// GenerateResetSecret returns a fresh 32-character password reset secret.
func GenerateResetSecret() (string, error) {
	return GenerateRandomString(ResetSecretLength)
}

// GenerateOpaqueToken returns a 40-character hex token for the static
// per-user federated-login scheme.
func GenerateOpaqueToken() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ResetDigest returns the SHA-256 hex digest used to index an outstanding
// reset secret. It is a lookup key only; authentication still goes through
// the bcrypt hash.
func ResetDigest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
