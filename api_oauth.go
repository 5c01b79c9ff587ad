package accounts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	xoauth2 "golang.org/x/oauth2"
	"gorm.io/datatypes"

	authbroker "github.com/sunilsingh2019/meeting-assistant-accounts/oauth2"
)

type googleAuthRequest struct {
	Code string `json:"code"`
}

type microsoftAuthRequest struct {
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
}

// handleGoogleAuth exchanges a Google authorization code posted by the
// frontend and signs the account in, creating it on first contact.
func (s *Service) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", "")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "Authorization code is required", "code")
		return
	}
	if s.Google == nil || !s.Google.Configured() {
		writeError(w, http.StatusInternalServerError, ErrCodeMisconfiguration, "Google sign-in is not configured", "")
		return
	}

	profile, err := s.Google.Exchange(r.Context(), req.Code)
	if err != nil {
		s.writeProviderError(w, "google", err)
		return
	}
	s.finishFederatedLogin(w, r, profile, nil)
}

// handleMicrosoftAuth is the Microsoft counterpart.  It additionally
// requires the PKCE verifier and persists the provider token set so
// calendar access can be refreshed later.
func (s *Service) handleMicrosoftAuth(w http.ResponseWriter, r *http.Request) {
	var req microsoftAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", "")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "Authorization code is required", "code")
		return
	}
	if req.CodeVerifier == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "code_verifier is required", "code_verifier")
		return
	}
	if s.Microsoft == nil || !s.Microsoft.Configured() {
		writeError(w, http.StatusInternalServerError, ErrCodeMisconfiguration, "Microsoft sign-in is not configured", "")
		return
	}

	profile, err := s.Microsoft.Exchange(r.Context(), req.Code, req.CodeVerifier)
	if err != nil {
		s.writeProviderError(w, "microsoft", err)
		return
	}

	tokenJSON, err := marshalProviderToken(profile.Token)
	if err != nil {
		log.Printf("microsoft auth: marshal token: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Authentication failed", "")
		return
	}
	s.finishFederatedLogin(w, r, profile, tokenJSON)
}

// finishFederatedLogin resolves the provider profile to a local account
// and responds with an opaque token.  The account is keyed by email, so
// a user who registered with a password and later signs in with Google
// lands on the same account.  Provider sign-ins skip email verification
// because the provider already proved address ownership.
func (s *Service) finishFederatedLogin(w http.ResponseWriter, r *http.Request, profile *authbroker.Profile, microsoftToken datatypes.JSON) {
	if profile.Email == "" {
		writeError(w, http.StatusBadGateway, ErrCodeExternalAuth, "Provider did not supply an email address", "")
		return
	}

	defaults := NewUserFields{
		Email:     profile.Email,
		Username:  usernameFromEmail(profile.Email),
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Verified:  true,
	}
	user, created, err := s.Users.GetOrCreate(r.Context(), profile.Email, defaults)
	if err != nil {
		log.Printf("federated login: get or create %s: %v", profile.Email, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Authentication failed", "")
		return
	}

	if microsoftToken != nil {
		if err := s.Users.SetMicrosoftToken(r.Context(), user.ID, microsoftToken); err != nil {
			log.Printf("federated login: store microsoft token for %s: %v", user.ID, err)
		}
	}

	token, err := s.Opaque.GetOrCreate(r.Context(), user)
	if err != nil {
		log.Printf("federated login: issue token for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Authentication failed", "")
		return
	}

	if created && s.EmailSender != nil {
		// Welcome mail failures never block the login.
		go func(to, firstName string) {
			if err := s.EmailSender.SendWelcomeEmail(to, firstName); err != nil {
				log.Printf("welcome email to %s failed: %v", to, err)
			}
		}(user.Email, user.FirstName)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":       token,
		"user":        s.userResponse(r, user),
		"is_new_user": created,
	})
}

// marshalProviderToken flattens a provider token set for storage on the
// user row. Expiry is kept as RFC 3339 so callers can tell when a
// refresh is due without parsing provider-specific fields.
func marshalProviderToken(token *xoauth2.Token) (datatypes.JSON, error) {
	if token == nil {
		return nil, nil
	}
	raw := map[string]any{
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"token_type":    token.TokenType,
		"expires_at":    token.Expiry,
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// writeProviderError maps broker failures onto the wire.  Provider
// rejections carry the provider's own payload through so the frontend
// can show the real reason (expired code, redirect mismatch).
func (s *Service) writeProviderError(w http.ResponseWriter, provider string, err error) {
	switch {
	case errors.Is(err, authbroker.ErrMissingCode):
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "Authorization code is required", "code")
	case errors.Is(err, authbroker.ErrMissingVerifier):
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "code_verifier is required", "code_verifier")
	case errors.Is(err, authbroker.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, ErrCodeMisconfiguration, "Sign-in with this provider is not configured", "")
	default:
		var perr *authbroker.ProviderError
		if errors.As(err, &perr) {
			log.Printf("%s exchange rejected: %v", provider, perr)
			body := map[string]any{
				"code":  ErrCodeExternalAuth,
				"error": "Authentication with " + provider + " failed",
			}
			if perr.Payload != nil {
				body["details"] = perr.Payload
			}
			writeJSON(w, http.StatusBadRequest, body)
			return
		}
		log.Printf("%s exchange failed: %v", provider, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Authentication failed", "")
	}
}
