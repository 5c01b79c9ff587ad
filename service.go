package accounts

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	authbroker "github.com/sunilsingh2019/meeting-assistant-accounts/oauth2"
)

// Service wires the account stores, token issuers and managers behind the
// HTTP surface. Construct one, fill in the stores, then mount Handler().
type Service struct {
	Users CredentialStore
	Prefs PreferencesStore

	JWT    *JWTIssuer
	Opaque *OpaqueIssuer

	Verifier *VerificationManager
	Resets   *ResetManager

	EmailSender EmailSender

	// Google and Microsoft are the federated identity brokers. Either may be
	// nil, which disables its endpoint with a configuration error.
	Google    *authbroker.GoogleBroker
	Microsoft *authbroker.MicrosoftBroker

	// FrontendURL is the base URL verification/reset links point at.
	FrontendURL string

	Middleware *Middleware
}

// NewService assembles a service from its stores. The JWT secret falls back
// to the ACCOUNTS_JWT_SECRET_KEY env var.
func NewService(users CredentialStore, prefs PreferencesStore, opaque OpaqueTokenStore, blacklist TokenBlacklist, sender EmailSender) *Service {
	s := &Service{
		Users:       users,
		Prefs:       prefs,
		JWT:         &JWTIssuer{Blacklist: blacklist, Issuer: "meeting-assistant"},
		Opaque:      &OpaqueIssuer{Store: opaque},
		EmailSender: sender,
	}
	s.Verifier = &VerificationManager{Users: users}
	s.Resets = &ResetManager{Users: users}
	return s.EnsureDefaults()
}

// EnsureDefaults fills in reasonable defaults for anything left unset.
func (s *Service) EnsureDefaults() *Service {
	if s.JWT.SecretKey == "" {
		s.JWT.SecretKey = strings.TrimSpace(os.Getenv("ACCOUNTS_JWT_SECRET_KEY"))
		if s.JWT.SecretKey == "" {
			s.JWT.SecretKey = "MyTestJWTSecretKey123456"
		}
	}
	if s.FrontendURL == "" {
		s.FrontendURL = os.Getenv("FRONTEND_URL")
		if s.FrontendURL == "" {
			s.FrontendURL = "http://localhost:3001"
		}
	}
	if s.EmailSender == nil {
		s.EmailSender = &ConsoleEmailSender{}
	}
	if s.Middleware == nil {
		s.Middleware = &Middleware{JWT: s.JWT, Opaque: s.Opaque}
	}
	return s
}

// Handler returns the account API router, mounted under /api/accounts.
func (s *Service) Handler() http.Handler {
	s.EnsureDefaults()
	r := mux.NewRouter()
	api := r.PathPrefix("/api/accounts").Subrouter()

	api.HandleFunc("/register", s.recovered(s.handleRegister)).Methods(http.MethodPost)
	api.HandleFunc("/verify-email/{token}", s.recovered(s.handleVerifyEmail)).Methods(http.MethodGet)
	api.HandleFunc("/resend-verification-email", s.recovered(s.handleResendVerification)).Methods(http.MethodPost)
	api.HandleFunc("/login", s.recovered(s.handleLogin)).Methods(http.MethodPost)
	api.HandleFunc("/token-refresh", s.recovered(s.handleTokenRefresh)).Methods(http.MethodPost)
	api.HandleFunc("/reset-password", s.recovered(s.handleResetRequest)).Methods(http.MethodPost)
	api.HandleFunc("/reset-password-confirm", s.recovered(s.handleResetConfirm)).Methods(http.MethodPost)
	api.HandleFunc("/google", s.recovered(s.handleGoogleAuth)).Methods(http.MethodPost)
	api.HandleFunc("/microsoft", s.recovered(s.handleMicrosoftAuth)).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.Middleware.RequireUser)
	protected.HandleFunc("/logout", s.recovered(s.handleLogout)).Methods(http.MethodPost)
	protected.HandleFunc("/me", s.recovered(s.handleMe)).Methods(http.MethodGet)
	protected.HandleFunc("/change-password", s.recovered(s.handleChangePassword)).Methods(http.MethodPut)
	protected.HandleFunc("/preferences", s.recovered(s.handleGetPreferences)).Methods(http.MethodGet)
	protected.HandleFunc("/preferences", s.recovered(s.handleUpdatePreferences)).Methods(http.MethodPut)
	protected.HandleFunc("/complete-onboarding", s.recovered(s.handleCompleteOnboarding)).Methods(http.MethodPost)

	return r
}

// recovered converts handler panics into a safe 500. No stack trace ever
// reaches the caller.
func (s *Service) recovered(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic in %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "An unexpected error occurred", "")
			}
		}()
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message, field string) {
	writeJSON(w, status, NewAuthError(code, message, field))
}

func decodeJSON(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return fmt.Errorf("invalid request body")
	}
	return nil
}

// userResponse is the user object embedded in login and federated responses.
// Preferences are only peeked at, never created here; a user who has not
// touched /preferences yet simply reads as not onboarded.
func (s *Service) userResponse(r *http.Request, user *User) map[string]any {
	onboarded := false
	if prefs, err := s.Prefs.Get(r.Context(), user.ID); err == nil {
		onboarded = prefs.HasCompletedOnboarding
	}
	return map[string]any{
		"id":                       user.ID,
		"email":                    user.Email,
		"username":                 user.Username,
		"first_name":               user.FirstName,
		"last_name":                user.LastName,
		"has_completed_onboarding": onboarded,
	}
}
