package accounts

import (
	"errors"
	"fmt"
	"log"
	"net/http"
)

// handleResetRequest starts the password reset flow. The generated secret
// replaces the user's live password immediately; the emailed link carries it
// back for the confirm step.
func (s *Service) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "Email is required", "email")
		return
	}

	user, secret, err := s.Resets.Request(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "User with this email does not exist", "email")
			return
		}
		log.Printf("error requesting password reset: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to start password reset", "")
		return
	}

	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.FrontendURL, secret)
	if err := s.EmailSender.SendPasswordResetEmail(user.Email, resetLink); err != nil {
		log.Printf("error sending reset email to %s: %v", user.Email, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to send password reset email", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Password reset email sent successfully"})
}

type resetConfirmRequest struct {
	Token     string `json:"token"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (s *Service) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", "")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "Token is required", "token")
		return
	}
	if req.Password != req.Password2 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Password fields didn't match.", "password")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, ErrCodeWeakPassword, "Password must be at least 8 characters", "password")
		return
	}

	if _, err := s.Resets.Confirm(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Invalid token", "token")
			return
		}
		log.Printf("error confirming password reset: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to reset password", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Password has been reset successfully"})
}
