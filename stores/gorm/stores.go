//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	accounts "github.com/sunilsingh2019/meeting-assistant-accounts"
)

// AutoMigrate runs database migrations for all accounts tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&PreferencesModel{},
		&OpaqueTokenModel{},
		&RevokedTokenModel{},
	)
}

// =============================================================================
// CredentialStore
// =============================================================================

// CredentialStore implements accounts.CredentialStore using GORM
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) Create(ctx context.Context, fields accounts.NewUserFields) (*accounts.User, error) {
	model := &UserModel{
		ID:            uuid.NewString(),
		Email:         fields.Email,
		Username:      fields.Username,
		FirstName:     fields.FirstName,
		LastName:      fields.LastName,
		EmailVerified: fields.Verified,
	}
	if fields.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(fields.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		model.PasswordHash = string(hash)
	}
	err := s.db.WithContext(ctx).Create(model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, accounts.ErrDuplicateEmail
		}
		return nil, err
	}
	return model.toUser(), nil
}

// GetOrCreate inserts with ON CONFLICT DO NOTHING and refetches, so two
// concurrent calls for the same new email resolve to the same row.
func (s *CredentialStore) GetOrCreate(ctx context.Context, email string, defaults accounts.NewUserFields) (*accounts.User, bool, error) {
	var existing UserModel
	err := s.db.WithContext(ctx).First(&existing, "email = ?", email).Error
	if err == nil {
		return existing.toUser(), false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	model := &UserModel{
		ID:            uuid.NewString(),
		Email:         defaults.Email,
		Username:      defaults.Username,
		FirstName:     defaults.FirstName,
		LastName:      defaults.LastName,
		EmailVerified: defaults.Verified,
	}
	if defaults.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(defaults.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, false, err
		}
		model.PasswordHash = string(hash)
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(model)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race; the winner's row is there now.
		if err := s.db.WithContext(ctx).First(&existing, "email = ?", email).Error; err != nil {
			return nil, false, err
		}
		return existing.toUser(), false, nil
	}
	return model.toUser(), true, nil
}

func (s *CredentialStore) GetByID(ctx context.Context, id string) (*accounts.User, error) {
	return s.getBy(ctx, "id = ?", id)
}

func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (*accounts.User, error) {
	return s.getBy(ctx, "email = ?", email)
}

func (s *CredentialStore) getBy(ctx context.Context, query string, args ...any) (*accounts.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).First(&model, append([]any{query}, args...)...).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounts.ErrUserNotFound
		}
		return nil, err
	}
	return model.toUser(), nil
}

func (s *CredentialStore) VerifyPassword(user *accounts.User, plaintext string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}

func (s *CredentialStore) SetPassword(ctx context.Context, userID, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.updateUser(ctx, userID, map[string]any{
		"password_hash": string(hash),
		"reset_digest":  nil,
	})
}

func (s *CredentialStore) SetResetSecret(ctx context.Context, userID, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.updateUser(ctx, userID, map[string]any{
		"password_hash": string(hash),
		"reset_digest":  accounts.ResetDigest(secret),
	})
}

func (s *CredentialStore) GetByResetDigest(ctx context.Context, digest string) (*accounts.User, error) {
	return s.getBy(ctx, "reset_digest = ?", digest)
}

// CompleteReset swaps the password and clears the digest in one UPDATE
// guarded on reset_digest still matching, so only one of two racing
// confirmations of the same secret wins.
func (s *CredentialStore) CompleteReset(ctx context.Context, userID, digest, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ? AND reset_digest = ?", userID, digest).
		Updates(map[string]any{
			"password_hash": string(hash),
			"reset_digest":  nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return accounts.ErrInvalidToken
	}
	return nil
}

func (s *CredentialStore) SetVerificationToken(ctx context.Context, userID, token string) error {
	err := s.updateUser(ctx, userID, map[string]any{
		"email_verification_token": token,
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return accounts.ErrInvalidToken
	}
	return err
}

func (s *CredentialStore) GetByVerificationToken(ctx context.Context, token string) (*accounts.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).
		First(&model, "email_verification_token = ? AND email_verified = ?", token, false).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounts.ErrInvalidToken
		}
		return nil, err
	}
	return model.toUser(), nil
}

// MarkVerified flips the flag and clears the token in one UPDATE guarded
// on email_verified = false, so only one of two racing consumers wins.
func (s *CredentialStore) MarkVerified(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ? AND email_verified = ?", userID, false).
		Updates(map[string]any{
			"email_verified":           true,
			"email_verification_token": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return accounts.ErrInvalidToken
	}
	return nil
}

func (s *CredentialStore) SetMicrosoftToken(ctx context.Context, userID string, token datatypes.JSON) error {
	return s.updateUser(ctx, userID, map[string]any{"microsoft_token": token})
}

func (s *CredentialStore) Delete(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Delete(&UserModel{}, "id = ?", userID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return accounts.ErrUserNotFound
	}
	return nil
}

func (s *CredentialStore) updateUser(ctx context.Context, userID string, values map[string]any) error {
	res := s.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", userID).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return accounts.ErrUserNotFound
	}
	return nil
}

// =============================================================================
// PreferencesStore
// =============================================================================

// PreferencesStore implements accounts.PreferencesStore using GORM
type PreferencesStore struct {
	db *gorm.DB
}

func NewPreferencesStore(db *gorm.DB) *PreferencesStore {
	return &PreferencesStore{db: db}
}

func (s *PreferencesStore) Get(ctx context.Context, userID string) (*accounts.UserPreferences, error) {
	var model PreferencesModel
	err := s.db.WithContext(ctx).First(&model, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, accounts.ErrUserNotFound
		}
		return nil, err
	}
	return model.toPreferences(), nil
}

func (s *PreferencesStore) GetOrCreate(ctx context.Context, userID string) (*accounts.UserPreferences, error) {
	prefs, err := s.Get(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if !errors.Is(err, accounts.ErrUserNotFound) {
		return nil, err
	}
	model := preferencesModelFrom(accounts.DefaultPreferences(userID))
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(model)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return s.Get(ctx, userID)
	}
	return model.toPreferences(), nil
}

func (s *PreferencesStore) Update(ctx context.Context, userID string, update accounts.PreferencesUpdate) (*accounts.UserPreferences, error) {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	values := map[string]any{}
	if update.WorkingHoursStart != nil {
		values["working_hours_start"] = *update.WorkingHoursStart
	}
	if update.WorkingHoursEnd != nil {
		values["working_hours_end"] = *update.WorkingHoursEnd
	}
	if update.WorkDays != nil {
		values["work_days"] = StringSlice(update.WorkDays)
	}
	if update.PreferredMeetingDuration != nil {
		values["preferred_meeting_duration"] = *update.PreferredMeetingDuration
	}
	if len(values) > 0 {
		err := s.db.WithContext(ctx).Model(&PreferencesModel{}).
			Where("user_id = ?", userID).Updates(values).Error
		if err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, userID)
}

func (s *PreferencesStore) CompleteOnboarding(ctx context.Context, userID string) error {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&PreferencesModel{}).
		Where("user_id = ?", userID).
		Update("has_completed_onboarding", true).Error
}

// =============================================================================
// OpaqueTokenStore
// =============================================================================

// OpaqueTokenStore implements accounts.OpaqueTokenStore using GORM
type OpaqueTokenStore struct {
	db *gorm.DB
}

func NewOpaqueTokenStore(db *gorm.DB) *OpaqueTokenStore {
	return &OpaqueTokenStore{db: db}
}

func (s *OpaqueTokenStore) GetOrCreate(ctx context.Context, userID string) (string, error) {
	var existing OpaqueTokenModel
	err := s.db.WithContext(ctx).First(&existing, "user_id = ?", userID).Error
	if err == nil {
		return existing.Token, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	token, err := accounts.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	model := &OpaqueTokenModel{Token: token, UserID: userID}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(model)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		if err := s.db.WithContext(ctx).First(&existing, "user_id = ?", userID).Error; err != nil {
			return "", err
		}
		return existing.Token, nil
	}
	return token, nil
}

func (s *OpaqueTokenStore) GetUserID(ctx context.Context, token string) (string, error) {
	var model OpaqueTokenModel
	err := s.db.WithContext(ctx).First(&model, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", accounts.ErrInvalidToken
		}
		return "", err
	}
	return model.UserID, nil
}

// =============================================================================
// TokenBlacklist
// =============================================================================

// TokenBlacklist implements accounts.TokenBlacklist using GORM
type TokenBlacklist struct {
	db *gorm.DB
}

func NewTokenBlacklist(db *gorm.DB) *TokenBlacklist {
	return &TokenBlacklist{db: db}
}

func (s *TokenBlacklist) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	model := &RevokedTokenModel{
		JTI:       jti,
		UserID:    userID,
		ExpiresAt: expiresAt,
		RevokedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "jti"}}, DoNothing: true}).
		Create(model).Error
}

func (s *TokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RevokedTokenModel{}).
		Where("jti = ?", jti).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeExpired removes blacklist entries whose tokens have expired.
// Intended to run periodically from the server process.
func (s *TokenBlacklist) PurgeExpired(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Delete(&RevokedTokenModel{}, "expires_at < ?", time.Now().UTC()).Error
}
