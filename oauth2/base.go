// Package oauth2 exchanges authorization codes obtained by a frontend
// against Google and Microsoft and resolves them to a user profile.
// The brokers never redirect a browser; the single-page app drives the
// consent screen and posts the resulting code to the backend.
package oauth2

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// ProviderTimeout bounds each round trip to the identity provider.
const ProviderTimeout = 10 * time.Second

// ErrMissingCode is returned when an exchange is attempted without an
// authorization code.
var ErrMissingCode = errors.New("authorization code is required")

// ErrNotConfigured is returned when a broker has no client credentials.
var ErrNotConfigured = errors.New("provider credentials are not configured")

// Profile is the normalized identity a provider vouched for.  Email is
// always present; name parts may be empty depending on provider scopes.
type Profile struct {
	Email     string
	FirstName string
	LastName  string

	// Token is the raw token set returned by the provider.  Callers
	// that need offline access (eg calendar sync) persist it.
	Token *oauth2.Token
}

// ProviderError wraps a rejection from the identity provider so that
// callers can forward the provider's own payload to the client.
type ProviderError struct {
	Provider string
	Payload  map[string]any
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s rejected the exchange: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func newProviderError(provider string, err error) *ProviderError {
	out := &ProviderError{Provider: provider, Err: err}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		out.Payload = map[string]any{
			"error":             retrieveErr.ErrorCode,
			"error_description": retrieveErr.ErrorDescription,
		}
		if retrieveErr.ErrorCode == "" {
			out.Payload = map[string]any{"error": string(retrieveErr.Body)}
		}
	}
	return out
}
