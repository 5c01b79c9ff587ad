package accounts

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// User is the primary entity of the credential store. The password hash is
// owned exclusively by the store and is never serialized outward.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// PasswordHash is the bcrypt hash of the current password. During a
	// pending password reset this is the hash of the reset secret instead:
	// the secret IS the password until the reset is confirmed.
	PasswordHash string `json:"-"`

	// EmailVerified and EmailVerificationToken track the verification state
	// machine. A pending token is exactly 64 characters and unique across
	// all users; it is cleared the moment the user becomes verified.
	EmailVerified          bool    `json:"email_verified"`
	EmailVerificationToken *string `json:"-"`

	// ResetDigest holds the SHA-256 hex of an outstanding reset secret so
	// the confirm step can find the user without scanning bcrypt hashes.
	// Cleared whenever the password is set through the normal path.
	ResetDigest *string `json:"-"`

	// MicrosoftToken is the token payload returned by the Microsoft token
	// endpoint. Only the Microsoft path stores provider token material.
	MicrosoftToken datatypes.JSON `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserFields carries the fields required to create a user. Federated
// signups leave Password empty (no local password is set).
type NewUserFields struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string

	// Verified marks the account as email-verified at creation time.
	// Federated signups set it because the provider already owns the
	// address; password signups leave it false.
	Verified bool
}

// UserPreferences is the per-user scheduling preferences entity. It shares
// the user's lifecycle (cascade delete) but is created lazily on first
// access, never at registration time.
type UserPreferences struct {
	UserID                   string    `json:"-"`
	WorkingHoursStart        string    `json:"working_hours_start"`
	WorkingHoursEnd          string    `json:"working_hours_end"`
	WorkDays                 []string  `json:"work_days"`
	PreferredMeetingDuration int       `json:"preferred_meeting_duration"`
	HasCompletedOnboarding   bool      `json:"has_completed_onboarding"`
	CreatedAt                time.Time `json:"-"`
	UpdatedAt                time.Time `json:"-"`
}

// DefaultPreferences returns a fresh preferences row for a user. Defaults
// live here rather than in store literals so every backend agrees on them.
func DefaultPreferences(userID string) *UserPreferences {
	return &UserPreferences{
		UserID:                   userID,
		WorkingHoursStart:        "09:00",
		WorkingHoursEnd:          "17:00",
		WorkDays:                 []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		PreferredMeetingDuration: 30,
		HasCompletedOnboarding:   false,
	}
}

// PreferencesUpdate carries a partial update. Nil fields are left untouched.
type PreferencesUpdate struct {
	WorkingHoursStart        *string  `json:"working_hours_start"`
	WorkingHoursEnd          *string  `json:"working_hours_end"`
	WorkDays                 []string `json:"work_days"`
	PreferredMeetingDuration *int     `json:"preferred_meeting_duration"`
}

// CredentialStore manages persisted user records. All mutations are atomic
// per user: a concurrent reader never observes a half-applied change.
type CredentialStore interface {
	// Create creates a user from the given fields. The password is hashed
	// before storage; an empty password produces an account that no
	// password authenticates. Returns ErrDuplicateEmail if the email is
	// already taken.
	Create(ctx context.Context, fields NewUserFields) (*User, error)

	// GetOrCreate resolves a user by email, creating one from defaults if
	// missing. Concurrent calls for the same new email resolve to exactly
	// one created row; losers observe the winner's row.
	GetOrCreate(ctx context.Context, email string, defaults NewUserFields) (user *User, created bool, err error)

	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// VerifyPassword compares plaintext against the stored hash.
	VerifyPassword(user *User, plaintext string) bool

	// SetPassword re-hashes and persists, clearing any pending reset digest.
	SetPassword(ctx context.Context, userID, plaintext string) error

	// SetResetSecret overwrites the password hash with the hash of secret
	// and records its lookup digest. The secret authenticates as the
	// password until SetPassword replaces it.
	SetResetSecret(ctx context.Context, userID, secret string) error

	// GetByResetDigest finds the user holding an outstanding reset secret
	// with the given SHA-256 hex digest.
	GetByResetDigest(ctx context.Context, digest string) (*User, error)

	// CompleteReset re-hashes newPassword and persists it, clearing the
	// digest, only while the stored reset digest still equals digest. The
	// check and the write are one atomic step: of two racing confirmations
	// of the same secret exactly one succeeds, the other gets
	// ErrInvalidToken.
	CompleteReset(ctx context.Context, userID, digest, newPassword string) error

	// SetVerificationToken persists a pending verification token, replacing
	// any prior one. The token is unique across the store; a collision
	// fails the write rather than overwriting another user's token.
	SetVerificationToken(ctx context.Context, userID, token string) error

	// GetByVerificationToken finds the unverified holder of token. Verified
	// users never match: their token has been cleared.
	GetByVerificationToken(ctx context.Context, token string) (*User, error)

	// MarkVerified sets email_verified=true and clears the token, both in
	// the same write. Of two concurrent consumers of the same pending token
	// exactly one transitions the user; the other gets ErrInvalidToken.
	MarkVerified(ctx context.Context, userID string) error

	// SetMicrosoftToken stores the provider token payload for the user.
	SetMicrosoftToken(ctx context.Context, userID string, token datatypes.JSON) error

	// Delete removes the user and cascades to preferences and tokens. Used
	// to roll back a registration whose verification email failed to send.
	Delete(ctx context.Context, userID string) error
}

// PreferencesStore manages the one-to-one preferences entity.
type PreferencesStore interface {
	// Get returns the user's preferences without creating them, or
	// ErrUserNotFound if none exist yet.
	Get(ctx context.Context, userID string) (*UserPreferences, error)

	// GetOrCreate returns the user's preferences, creating the default row
	// on first access.
	GetOrCreate(ctx context.Context, userID string) (*UserPreferences, error)

	// Update applies a partial update and returns the stored row.
	Update(ctx context.Context, userID string, update PreferencesUpdate) (*UserPreferences, error)

	// CompleteOnboarding sets the onboarding flag, creating the row if
	// needed.
	CompleteOnboarding(ctx context.Context, userID string) error
}

// OpaqueTokenStore manages the static per-user tokens issued to federated
// logins. One token per user, no expiry, no revocation.
type OpaqueTokenStore interface {
	// GetOrCreate returns the user's opaque token, minting one on first use.
	GetOrCreate(ctx context.Context, userID string) (string, error)

	// GetUserID resolves a token back to its owner, or ErrInvalidToken.
	GetUserID(ctx context.Context, token string) (string, error)
}

// TokenBlacklist records revoked refresh tokens by their JWT ID. Entries
// only need to survive until the underlying token would have expired.
type TokenBlacklist interface {
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
