package accounts

import (
	"context"
	"errors"
)

// ResetManager implements the password reset flow. Request overwrites the
// user's live password with a fresh 32-character secret, so the secret
// authenticates as the password until Confirm replaces it with the user's
// chosen one. The secret has no expiry of its own; it dies when Confirm
// runs or when another Request replaces it.
type ResetManager struct {
	Users CredentialStore
}

// Request generates the reset secret for the given email and installs it as
// the account's password. The previous password stops authenticating
// immediately. Unknown emails surface ErrUserNotFound.
func (m *ResetManager) Request(ctx context.Context, email string) (*User, string, error) {
	user, err := m.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	secret, err := GenerateResetSecret()
	if err != nil {
		return nil, "", err
	}
	if err := m.Users.SetResetSecret(ctx, user.ID, secret); err != nil {
		return nil, "", err
	}
	return user, secret, nil
}

// Confirm replaces the reset secret with newPassword. It fails with
// ErrInvalidToken unless some user currently authenticates with token as
// their password: the digest lookup narrows to one candidate and the bcrypt
// comparison confirms the secret is still live. The final write goes
// through CompleteReset, which swaps the password only while the digest
// still matches; of two racing confirmations of the same secret exactly
// one succeeds and the other observes ErrInvalidToken.
func (m *ResetManager) Confirm(ctx context.Context, token, newPassword string) (*User, error) {
	digest := ResetDigest(token)
	user, err := m.Users.GetByResetDigest(ctx, digest)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !m.Users.VerifyPassword(user, token) {
		return nil, ErrInvalidToken
	}
	if err := m.Users.CompleteReset(ctx, user.ID, digest, newPassword); err != nil {
		return nil, err
	}
	return user, nil
}
