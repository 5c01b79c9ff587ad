package accounts

import "errors"

// Sentinel errors surfaced by the stores and managers. Handlers map these to
// HTTP status codes; anything unmatched becomes a generic 500.
var (
	ErrDuplicateEmail  = errors.New("a user with this email already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidToken    = errors.New("invalid token")
	ErrAlreadyVerified = errors.New("email already verified")
)

// Error codes used in JSON error bodies
const (
	ErrCodeValidation       = "validation_error"
	ErrCodeMissingField     = "missing_field"
	ErrCodeInvalidEmail     = "invalid_email"
	ErrCodeWeakPassword     = "weak_password"
	ErrCodeEmailExists      = "email_exists"
	ErrCodeInvalidCreds     = "invalid_credentials"
	ErrCodeNotVerified      = "requires_verification"
	ErrCodeInvalidToken     = "invalid_token"
	ErrCodeNotFound         = "not_found"
	ErrCodeExternalAuth     = "external_auth_failure"
	ErrCodeMisconfiguration = "misconfiguration"
	ErrCodeInternal         = "internal_error"
)

// AuthError is the JSON error shape returned by every handler.
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}

func (e *AuthError) Error() string {
	return e.Message
}

// NewAuthError creates an AuthError with the given code, message and field
func NewAuthError(code, message, field string) *AuthError {
	return &AuthError{Code: code, Message: message, Field: field}
}
