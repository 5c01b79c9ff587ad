// Package stores provides in-memory implementations of the accounts
// store interfaces. They are safe for concurrent use and back the test
// suite and local development; production deployments use stores/gorm.
package stores

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	accounts "github.com/sunilsingh2019/meeting-assistant-accounts"
)

// MemCredentialStore keeps users in a map keyed by ID with secondary
// indexes for the lookups the service performs.
type MemCredentialStore struct {
	mu      sync.Mutex
	users   map[string]*userRecord
	byEmail map[string]string
}

type userRecord struct {
	user accounts.User
}

func NewMemCredentialStore() *MemCredentialStore {
	return &MemCredentialStore{
		users:   map[string]*userRecord{},
		byEmail: map[string]string{},
	}
}

func (s *MemCredentialStore) Create(ctx context.Context, fields accounts.NewUserFields) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(fields)
}

func (s *MemCredentialStore) createLocked(fields accounts.NewUserFields) (*accounts.User, error) {
	if _, exists := s.byEmail[fields.Email]; exists {
		return nil, accounts.ErrDuplicateEmail
	}
	now := time.Now().UTC()
	user := accounts.User{
		ID:            uuid.NewString(),
		Email:         fields.Email,
		Username:      fields.Username,
		FirstName:     fields.FirstName,
		LastName:      fields.LastName,
		EmailVerified: fields.Verified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if fields.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(fields.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	s.users[user.ID] = &userRecord{user: user}
	s.byEmail[user.Email] = user.ID
	out := user
	return &out, nil
}

func (s *MemCredentialStore) GetOrCreate(ctx context.Context, email string, defaults accounts.NewUserFields) (*accounts.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEmail[email]; ok {
		out := s.users[id].user
		return &out, false, nil
	}
	user, err := s.createLocked(defaults)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *MemCredentialStore) GetByID(ctx context.Context, id string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, accounts.ErrUserNotFound
	}
	out := rec.user
	return &out, nil
}

func (s *MemCredentialStore) GetByEmail(ctx context.Context, email string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, accounts.ErrUserNotFound
	}
	out := s.users[id].user
	return &out, nil
}

func (s *MemCredentialStore) VerifyPassword(user *accounts.User, plaintext string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}

func (s *MemCredentialStore) SetPassword(ctx context.Context, userID, plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	rec.user.PasswordHash = string(hash)
	rec.user.ResetDigest = nil
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemCredentialStore) SetResetSecret(ctx context.Context, userID, secret string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	digest := accounts.ResetDigest(secret)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	rec.user.PasswordHash = string(hash)
	rec.user.ResetDigest = &digest
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemCredentialStore) GetByResetDigest(ctx context.Context, digest string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if rec.user.ResetDigest != nil && *rec.user.ResetDigest == digest {
			out := rec.user
			return &out, nil
		}
	}
	return nil, accounts.ErrUserNotFound
}

func (s *MemCredentialStore) CompleteReset(ctx context.Context, userID, digest, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	if rec.user.ResetDigest == nil || *rec.user.ResetDigest != digest {
		return accounts.ErrInvalidToken
	}
	rec.user.PasswordHash = string(hash)
	rec.user.ResetDigest = nil
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemCredentialStore) SetVerificationToken(ctx context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.users {
		if id != userID && rec.user.EmailVerificationToken != nil && *rec.user.EmailVerificationToken == token {
			return accounts.ErrInvalidToken
		}
	}
	rec, ok := s.users[userID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	rec.user.EmailVerificationToken = &token
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemCredentialStore) GetByVerificationToken(ctx context.Context, token string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.users {
		if rec.user.EmailVerificationToken != nil && *rec.user.EmailVerificationToken == token && !rec.user.EmailVerified {
			out := rec.user
			return &out, nil
		}
	}
	return nil, accounts.ErrInvalidToken
}

func (s *MemCredentialStore) MarkVerified(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	if rec.user.EmailVerified {
		return accounts.ErrInvalidToken
	}
	rec.user.EmailVerified = true
	rec.user.EmailVerificationToken = nil
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemCredentialStore) SetMicrosoftToken(ctx context.Context, userID string, token datatypes.JSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	rec.user.MicrosoftToken = token
	rec.user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemCredentialStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return accounts.ErrUserNotFound
	}
	delete(s.byEmail, rec.user.Email)
	delete(s.users, userID)
	return nil
}

// MemPreferencesStore keeps the one-to-one preferences rows in a map.
type MemPreferencesStore struct {
	mu    sync.Mutex
	prefs map[string]*accounts.UserPreferences
}

func NewMemPreferencesStore() *MemPreferencesStore {
	return &MemPreferencesStore{prefs: map[string]*accounts.UserPreferences{}}
}

func (s *MemPreferencesStore) Get(ctx context.Context, userID string) (*accounts.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, accounts.ErrUserNotFound
	}
	out := *p
	return &out, nil
}

func (s *MemPreferencesStore) GetOrCreate(ctx context.Context, userID string) (*accounts.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := *s.getOrCreateLocked(userID)
	return &out, nil
}

func (s *MemPreferencesStore) getOrCreateLocked(userID string) *accounts.UserPreferences {
	if p, ok := s.prefs[userID]; ok {
		return p
	}
	p := accounts.DefaultPreferences(userID)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.prefs[userID] = p
	return p
}

func (s *MemPreferencesStore) Update(ctx context.Context, userID string, update accounts.PreferencesUpdate) (*accounts.UserPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(userID)
	if update.WorkingHoursStart != nil {
		p.WorkingHoursStart = *update.WorkingHoursStart
	}
	if update.WorkingHoursEnd != nil {
		p.WorkingHoursEnd = *update.WorkingHoursEnd
	}
	if update.WorkDays != nil {
		p.WorkDays = append([]string(nil), update.WorkDays...)
	}
	if update.PreferredMeetingDuration != nil {
		p.PreferredMeetingDuration = *update.PreferredMeetingDuration
	}
	p.UpdatedAt = time.Now().UTC()
	out := *p
	return &out, nil
}

func (s *MemPreferencesStore) CompleteOnboarding(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.getOrCreateLocked(userID)
	p.HasCompletedOnboarding = true
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MemOpaqueTokenStore maps users to their static tokens and back.
type MemOpaqueTokenStore struct {
	mu      sync.Mutex
	byUser  map[string]string
	byToken map[string]string
}

func NewMemOpaqueTokenStore() *MemOpaqueTokenStore {
	return &MemOpaqueTokenStore{
		byUser:  map[string]string{},
		byToken: map[string]string{},
	}
}

func (s *MemOpaqueTokenStore) GetOrCreate(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.byUser[userID]; ok {
		return token, nil
	}
	token, err := accounts.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	s.byUser[userID] = token
	s.byToken[token] = userID
	return token, nil
}

func (s *MemOpaqueTokenStore) GetUserID(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byToken[token]
	if !ok {
		return "", accounts.ErrInvalidToken
	}
	return userID, nil
}

// MemTokenBlacklist records revoked refresh token IDs until they would
// have expired anyway.
type MemTokenBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewMemTokenBlacklist() *MemTokenBlacklist {
	return &MemTokenBlacklist{revoked: map[string]time.Time{}}
}

func (s *MemTokenBlacklist) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiresAt) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}
