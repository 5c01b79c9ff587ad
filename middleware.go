package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type contextKey string

const (
	contextKeyUserID   contextKey = "user_id"
	contextKeyAuthType contextKey = "auth_type" // "jwt" or "opaque"
)

// GetUserIDFromContext retrieves the authenticated user ID set by Middleware
func GetUserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKeyUserID); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}

// GetAuthTypeFromContext retrieves the auth scheme ("jwt" or "opaque") used
// by the current request.
func GetAuthTypeFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKeyAuthType); v != nil {
		if authType, ok := v.(string); ok {
			return authType
		}
	}
	return ""
}

// Middleware validates Bearer credentials on protected routes. Both token
// schemes are accepted: stateless JWT access tokens (local logins) and the
// static opaque tokens handed to federated logins. A 40-character hex string
// can only be an opaque token; everything else is parsed as a JWT.
type Middleware struct {
	JWT    *JWTIssuer
	Opaque *OpaqueIssuer
}

// RequireUser rejects requests without a valid bearer credential and puts
// the resolved user ID in the request context.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, authType, err := m.validateRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"code":  ErrCodeInvalidCreds,
				"error": "Authentication required",
			})
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyUserID, userID)
		ctx = context.WithValue(ctx, contextKeyAuthType, authType)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) validateRequest(r *http.Request) (userID, authType string, err error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "", fmt.Errorf("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", "", fmt.Errorf("empty token")
	}

	if isOpaqueToken(token) && m.Opaque != nil {
		userID, err = m.Opaque.Validate(r.Context(), token)
		if err != nil {
			return "", "", fmt.Errorf("invalid opaque token: %w", err)
		}
		return userID, "opaque", nil
	}

	userID, err = m.JWT.ValidateAccess(token)
	if err != nil {
		return "", "", fmt.Errorf("invalid token: %w", err)
	}
	return userID, "jwt", nil
}

func isOpaqueToken(token string) bool {
	if len(token) != 40 {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
