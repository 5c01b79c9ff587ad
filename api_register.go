package accounts

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const minPasswordLength = 8

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (req *registerRequest) validate() *AuthError {
	if req.Email == "" {
		return NewAuthError(ErrCodeMissingField, "Email is required", "email")
	}
	if !emailRegex.MatchString(req.Email) {
		return NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email")
	}
	if req.FirstName == "" {
		return NewAuthError(ErrCodeMissingField, "First name is required", "first_name")
	}
	if req.LastName == "" {
		return NewAuthError(ErrCodeMissingField, "Last name is required", "last_name")
	}
	if len(req.Password) < minPasswordLength {
		return NewAuthError(ErrCodeWeakPassword,
			fmt.Sprintf("Password must be at least %d characters", minPasswordLength), "password")
	}
	return nil
}

// handleRegister creates an unverified user and sends the verification
// email. If the email cannot be sent the user is deleted again: an account
// that can never verify is worse than no account.
func (s *Service) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", "")
		return
	}
	if authErr := req.validate(); authErr != nil {
		writeJSON(w, http.StatusBadRequest, authErr)
		return
	}

	user, err := s.Users.Create(r.Context(), NewUserFields{
		Email:     req.Email,
		Username:  usernameFromEmail(req.Email),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, ErrCodeEmailExists, "A user with this email already exists.", "email")
			return
		}
		log.Printf("error creating user: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to create user", "")
		return
	}

	token, err := s.Verifier.Generate(r.Context(), user)
	if err != nil {
		log.Printf("error creating verification token: %v", err)
		s.rollbackRegistration(r, user)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to create verification token", "")
		return
	}

	verificationLink := fmt.Sprintf("%s/auth/verify-email/%s", s.FrontendURL, token)
	if err := s.EmailSender.SendVerificationEmail(user.Email, verificationLink); err != nil {
		log.Printf("error sending verification email to %s: %v", user.Email, err)
		s.rollbackRegistration(r, user)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal,
			"Failed to send verification email. Please try again.", "")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful. Please check your email to verify your account.",
		"email":   user.Email,
	})
}

func (s *Service) rollbackRegistration(r *http.Request, user *User) {
	if err := s.Users.Delete(r.Context(), user.ID); err != nil {
		log.Printf("error rolling back user %s: %v", user.ID, err)
	}
}

// handleVerifyEmail consumes a verification token from the URL path.
func (s *Service) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if len(token) != VerificationTokenLength {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Invalid verification token format", "")
		return
	}

	if _, err := s.Verifier.Consume(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			writeError(w, http.StatusBadRequest, ErrCodeInvalidToken, "Invalid or expired verification token", "")
		default:
			log.Printf("error verifying email: %v", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "An error occurred while verifying your email", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Email successfully verified"})
}

func (s *Service) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, ErrCodeMissingField, "Email is required", "email")
		return
	}

	user, token, err := s.Verifier.Resend(r.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "No user found with this email address", "email")
		case errors.Is(err, ErrAlreadyVerified):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "Email already verified", "")
		default:
			log.Printf("error resending verification: %v", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to resend verification email", "")
		}
		return
	}

	verificationLink := fmt.Sprintf("%s/auth/verify-email/%s", s.FrontendURL, token)
	if err := s.EmailSender.SendVerificationEmail(user.Email, verificationLink); err != nil {
		log.Printf("error sending verification email to %s: %v", user.Email, err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to send verification email", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "Verification email sent"})
}

// usernameFromEmail derives the display username from the email local part
func usernameFromEmail(email string) string {
	if idx := strings.Index(email, "@"); idx > 0 {
		return email[:idx]
	}
	return email
}
