//go:build !wasm
// +build !wasm

package gorm

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	accounts "github.com/sunilsingh2019/meeting-assistant-accounts"
)

// StringSlice is a helper type for storing string slices in GORM
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, sok := value.(string); sok {
			bytes = []byte(str)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, s)
}

// UserModel is the users table
type UserModel struct {
	ID                     string `gorm:"primaryKey"`
	Email                  string `gorm:"uniqueIndex;not null"`
	Username               string `gorm:"not null"`
	FirstName              string
	LastName               string
	PasswordHash           string
	EmailVerified          bool    `gorm:"not null;default:false"`
	EmailVerificationToken *string `gorm:"uniqueIndex"`
	ResetDigest            *string `gorm:"index"`
	MicrosoftToken         datatypes.JSON
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) toUser() *accounts.User {
	return &accounts.User{
		ID:                     m.ID,
		Email:                  m.Email,
		Username:               m.Username,
		FirstName:              m.FirstName,
		LastName:               m.LastName,
		PasswordHash:           m.PasswordHash,
		EmailVerified:          m.EmailVerified,
		EmailVerificationToken: m.EmailVerificationToken,
		ResetDigest:            m.ResetDigest,
		MicrosoftToken:         m.MicrosoftToken,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// PreferencesModel is the user_preferences table
type PreferencesModel struct {
	UserID                   string      `gorm:"primaryKey"`
	WorkingHoursStart        string      `gorm:"not null"`
	WorkingHoursEnd          string      `gorm:"not null"`
	WorkDays                 StringSlice `gorm:"type:jsonb"`
	PreferredMeetingDuration int         `gorm:"not null"`
	HasCompletedOnboarding   bool        `gorm:"not null;default:false"`
	CreatedAt                time.Time
	UpdatedAt                time.Time

	User UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (PreferencesModel) TableName() string { return "user_preferences" }

func (m *PreferencesModel) toPreferences() *accounts.UserPreferences {
	return &accounts.UserPreferences{
		UserID:                   m.UserID,
		WorkingHoursStart:        m.WorkingHoursStart,
		WorkingHoursEnd:          m.WorkingHoursEnd,
		WorkDays:                 []string(m.WorkDays),
		PreferredMeetingDuration: m.PreferredMeetingDuration,
		HasCompletedOnboarding:   m.HasCompletedOnboarding,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
	}
}

func preferencesModelFrom(p *accounts.UserPreferences) *PreferencesModel {
	return &PreferencesModel{
		UserID:                   p.UserID,
		WorkingHoursStart:        p.WorkingHoursStart,
		WorkingHoursEnd:          p.WorkingHoursEnd,
		WorkDays:                 StringSlice(p.WorkDays),
		PreferredMeetingDuration: p.PreferredMeetingDuration,
		HasCompletedOnboarding:   p.HasCompletedOnboarding,
	}
}

// OpaqueTokenModel is the opaque_tokens table
type OpaqueTokenModel struct {
	Token     string `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time

	User UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (OpaqueTokenModel) TableName() string { return "opaque_tokens" }

// RevokedTokenModel is the revoked_tokens table
type RevokedTokenModel struct {
	JTI       string    `gorm:"primaryKey;column:jti"`
	UserID    string    `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index"`
	RevokedAt time.Time
}

func (RevokedTokenModel) TableName() string { return "revoked_tokens" }
