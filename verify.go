package accounts

import (
	"context"
	"errors"
	"fmt"
)

// VerificationManager drives the per-user email verification state machine:
//
//	UNVERIFIED --Generate--> PENDING --Consume--> VERIFIED
//
// VERIFIED is terminal. Generating a new token while one is pending replaces
// it; the old token is invalid the instant the new one is written.
type VerificationManager struct {
	Users CredentialStore
}

// Generate mints a fresh verification token and persists it on the user,
// overwriting any prior pending token. A store-wide collision fails the
// write rather than silently stealing another user's token.
func (m *VerificationManager) Generate(ctx context.Context, user *User) (string, error) {
	if user.EmailVerified {
		return "", ErrAlreadyVerified
	}
	token, err := GenerateVerificationToken()
	if err != nil {
		return "", err
	}
	if err := m.Users.SetVerificationToken(ctx, user.ID, token); err != nil {
		return "", fmt.Errorf("failed to store verification token: %w", err)
	}
	return token, nil
}

// Consume transitions the token's holder to VERIFIED and clears the token,
// both atomically. Replays fail with ErrInvalidToken: the first consumer
// wins and the token stops resolving the moment it does.
func (m *VerificationManager) Consume(ctx context.Context, token string) (*User, error) {
	if len(token) != VerificationTokenLength {
		return nil, ErrInvalidToken
	}

	user, err := m.Users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if err := m.Users.MarkVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.EmailVerified = true
	user.EmailVerificationToken = nil
	return user, nil
}

// Resend regenerates the token for the given email. Unknown emails surface
// ErrUserNotFound (404); already-verified users surface ErrAlreadyVerified
// (400) so callers can avoid blocking active accounts.
func (m *VerificationManager) Resend(ctx context.Context, email string) (*User, string, error) {
	user, err := m.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	token, err := m.Generate(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
