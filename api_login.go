package accounts

import (
	"errors"
	"log"
	"net/http"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// handleLogin authenticates an email/password pair and issues the JWT
// access/refresh pair. Only verified accounts may log in; an unverified
// account gets a distinguishable 401 so the frontend can offer a resend.
func (s *Service) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", "")
		return
	}
	if req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "Email and password are required", "")
		return
	}

	user, err := s.Users.GetByEmail(r.Context(), req.Login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, ErrCodeInvalidCreds, "No account found with this email address", "login")
			return
		}
		log.Printf("error looking up user: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "An error occurred during login. Please try again.", "")
		return
	}

	if !s.Users.VerifyPassword(user, req.Password) {
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCreds, "Invalid password", "password")
		return
	}

	if !user.EmailVerified {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"code":                  ErrCodeNotVerified,
			"error":                 "Please verify your email address before signing in.",
			"email":                 user.Email,
			"requires_verification": true,
		})
		return
	}

	pair, err := s.JWT.Issue(user)
	if err != nil {
		log.Printf("error issuing tokens for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to create session", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":   pair.AccessToken,
		"refresh": pair.RefreshToken,
		"user":    s.userResponse(r, user),
	})
}

// handleLogout revokes the presented refresh token. Revoking a malformed or
// already-revoked token is a 400, not a crash.
func (s *Service) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Refresh == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Refresh token required", "refresh")
		return
	}

	if err := s.JWT.Revoke(r.Context(), req.Refresh); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Invalid token", "refresh")
			return
		}
		log.Printf("error revoking token: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to log out", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Successfully logged out"})
}

// handleTokenRefresh exchanges a live refresh token for a new access token.
func (s *Service) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Refresh == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Refresh token required", "refresh")
		return
	}

	access, err := s.JWT.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, ErrCodeInvalidToken, "Invalid or expired refresh token", "refresh")
			return
		}
		log.Printf("error refreshing token: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to refresh token", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"token": access})
}

// handleMe returns the authenticated user's profile.
func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserIDFromContext(r.Context())
	user, err := s.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCreds, "User not found", "")
		return
	}
	writeJSON(w, http.StatusOK, s.userResponse(r, user))
}

type changePasswordRequest struct {
	OldPassword  string `json:"old_password"`
	NewPassword  string `json:"new_password"`
	NewPassword2 string `json:"new_password2"`
}

func (s *Service) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", "")
		return
	}
	if req.NewPassword != req.NewPassword2 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Password fields didn't match.", "new_password")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeError(w, http.StatusBadRequest, ErrCodeWeakPassword, "Password must be at least 8 characters", "new_password")
		return
	}

	userID := GetUserIDFromContext(r.Context())
	user, err := s.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCreds, "User not found", "")
		return
	}
	if !s.Users.VerifyPassword(user, req.OldPassword) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Wrong password.", "old_password")
		return
	}
	if err := s.Users.SetPassword(r.Context(), user.ID, req.NewPassword); err != nil {
		log.Printf("error updating password for %s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to update password", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Password updated successfully"})
}
