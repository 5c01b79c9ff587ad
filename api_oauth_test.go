package accounts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/datatypes"

	authbroker "github.com/sunilsingh2019/meeting-assistant-accounts/oauth2"
)

// fakeUsers implements just the credential store surface the federated
// flow touches.
type fakeUsers struct {
	CredentialStore
	byEmail map[string]*User
	tokens  map[string]datatypes.JSON
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*User{}, tokens: map[string]datatypes.JSON{}}
}

func (f *fakeUsers) GetOrCreate(ctx context.Context, email string, defaults NewUserFields) (*User, bool, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, false, nil
	}
	u := &User{
		ID:            "user-" + email,
		Email:         defaults.Email,
		Username:      defaults.Username,
		FirstName:     defaults.FirstName,
		LastName:      defaults.LastName,
		EmailVerified: defaults.Verified,
		CreatedAt:     time.Now(),
	}
	f.byEmail[email] = u
	return u, true, nil
}

func (f *fakeUsers) SetMicrosoftToken(ctx context.Context, userID string, token datatypes.JSON) error {
	f.tokens[userID] = token
	return nil
}

type fakePrefs struct {
	PreferencesStore
}

func (f *fakePrefs) Get(ctx context.Context, userID string) (*UserPreferences, error) {
	return nil, ErrUserNotFound
}

type fakeOpaqueStore struct {
	byUser map[string]string
}

func (f *fakeOpaqueStore) GetOrCreate(ctx context.Context, userID string) (string, error) {
	if token, ok := f.byUser[userID]; ok {
		return token, nil
	}
	token, err := GenerateOpaqueToken()
	if err != nil {
		return "", err
	}
	f.byUser[userID] = token
	return token, nil
}

func (f *fakeOpaqueStore) GetUserID(ctx context.Context, token string) (string, error) {
	for userID, t := range f.byUser {
		if t == token {
			return userID, nil
		}
	}
	return "", ErrInvalidToken
}

type welcomeRecorder struct {
	ConsoleEmailSender
	sent chan string
}

func (w *welcomeRecorder) SendWelcomeEmail(to, firstName string) error {
	w.sent <- to
	return nil
}

func federatedTestService() (*Service, *fakeUsers, *welcomeRecorder) {
	users := newFakeUsers()
	sender := &welcomeRecorder{sent: make(chan string, 4)}
	svc := &Service{
		Users:       users,
		Prefs:       &fakePrefs{},
		Opaque:      &OpaqueIssuer{Store: &fakeOpaqueStore{byUser: map[string]string{}}},
		EmailSender: sender,
	}
	return svc, users, sender
}

func runFederatedLogin(t *testing.T, svc *Service, profile *authbroker.Profile, microsoftToken datatypes.JSON) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/accounts/google", nil)
	svc.finishFederatedLogin(w, r, profile, microsoftToken)
	if w.Code != http.StatusOK {
		t.Fatalf("federated login returned %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	return body
}

// TestFederatedLoginCreatesThenReuses checks that the same provider
// email maps to one account and that is_new_user is only set once.
func TestFederatedLoginCreatesThenReuses(t *testing.T) {
	svc, users, sender := federatedTestService()
	profile := &authbroker.Profile{Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"}

	first := runFederatedLogin(t, svc, profile, nil)
	if isNew, _ := first["is_new_user"].(bool); !isNew {
		t.Error("first login should report is_new_user")
	}
	token1, _ := first["token"].(string)
	if len(token1) != 40 {
		t.Errorf("expected 40 char opaque token, got %q", token1)
	}
	user := first["user"].(map[string]any)
	if user["username"] != "alice" {
		t.Errorf("username should come from the email local part, got %v", user["username"])
	}
	if !users.byEmail["alice@example.com"].EmailVerified {
		t.Error("federated accounts should be created verified")
	}

	select {
	case to := <-sender.sent:
		if to != "alice@example.com" {
			t.Errorf("welcome email to wrong address: %s", to)
		}
	case <-time.After(time.Second):
		t.Error("expected a welcome email on first login")
	}

	// Second login with different name parts reuses the account and
	// does not overwrite the stored names.
	second := runFederatedLogin(t, svc, &authbroker.Profile{Email: "alice@example.com", FirstName: "Different"}, nil)
	if isNew, _ := second["is_new_user"].(bool); isNew {
		t.Error("second login should not report is_new_user")
	}
	if token2, _ := second["token"].(string); token2 != token1 {
		t.Error("opaque token should be stable across logins")
	}
	if users.byEmail["alice@example.com"].FirstName != "Alice" {
		t.Error("existing profile fields should not be overwritten")
	}
	select {
	case <-sender.sent:
		t.Error("no welcome email on repeat login")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFederatedLoginStoresMicrosoftToken(t *testing.T) {
	svc, users, _ := federatedTestService()
	profile := &authbroker.Profile{Email: "bob@example.com"}
	tokenJSON := datatypes.JSON(`{"access_token":"abc"}`)

	runFederatedLogin(t, svc, profile, tokenJSON)

	stored := users.tokens["user-bob@example.com"]
	if string(stored) != `{"access_token":"abc"}` {
		t.Errorf("microsoft token not stored: %s", stored)
	}
}

func TestFederatedLoginRejectsMissingEmail(t *testing.T) {
	svc, _, _ := federatedTestService()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/accounts/google", nil)
	svc.finishFederatedLogin(w, r, &authbroker.Profile{}, nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for providers withholding email, got %d", w.Code)
	}
}

// TestOpaqueTokenAuthenticates checks that the token handed to federated
// logins passes the bearer middleware.
func TestOpaqueTokenAuthenticates(t *testing.T) {
	svc, _, _ := federatedTestService()
	body := runFederatedLogin(t, svc, &authbroker.Profile{Email: "carol@example.com"}, nil)
	token := body["token"].(string)

	svc.JWT = &JWTIssuer{SecretKey: "test-secret"}
	svc.EnsureDefaults()

	called := false
	handler := svc.Middleware.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if got := GetUserIDFromContext(r.Context()); got != "user-carol@example.com" {
			t.Errorf("wrong user in context: %s", got)
		}
		if GetAuthTypeFromContext(r.Context()) != "opaque" {
			t.Errorf("expected opaque auth type")
		}
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/accounts/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(w, r)
	if !called {
		t.Fatalf("middleware rejected opaque token: %d %s", w.Code, w.Body.String())
	}
}
