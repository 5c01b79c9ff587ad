package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes for the JWT scheme
const (
	AccessTokenExpiry  = 60 * time.Minute
	RefreshTokenExpiry = 24 * time.Hour
)

// TokenPair is the result of issuing JWT credentials for a user.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh"`
}

// JWTIssuer mints and validates the stateless JWT credentials used by local
// password logins. Access tokens verify with no store lookup; refresh tokens
// carry a jti that is checked against the blacklist on every use.
//
// This is the stronger of the two issuance schemes. Federated logins use the
// static per-user OpaqueIssuer instead; the two schemes stay separate.
type JWTIssuer struct {
	SecretKey string
	Issuer    string

	// Blacklist must be set for Revoke and ValidateRefresh to work.
	Blacklist TokenBlacklist

	// Overridable for tests
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

func (j *JWTIssuer) accessExpiry() time.Duration {
	if j.AccessExpiry != 0 {
		return j.AccessExpiry
	}
	return AccessTokenExpiry
}

func (j *JWTIssuer) refreshExpiry() time.Duration {
	if j.RefreshExpiry != 0 {
		return j.RefreshExpiry
	}
	return RefreshTokenExpiry
}

// Issue mints an access/refresh pair for the user.
func (j *JWTIssuer) Issue(user *User) (*TokenPair, error) {
	access, err := j.mint(user.ID, "access", j.accessExpiry(), "")
	if err != nil {
		return nil, err
	}
	refresh, err := j.mint(user.ID, "refresh", j.refreshExpiry(), uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (j *JWTIssuer) mint(userID, tokenType string, expiry time.Duration, jti string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"type": tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(expiry).Unix(),
	}
	if j.Issuer != "" {
		claims["iss"] = j.Issuer
	}
	if jti != "" {
		claims["jti"] = jti
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccess validates a stateless access token and returns the user ID.
func (j *JWTIssuer) ValidateAccess(tokenString string) (string, error) {
	claims, err := j.parse(tokenString, "access")
	if err != nil {
		return "", ErrInvalidToken
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// ValidateRefresh validates a refresh token, including the revocation check,
// and returns the user ID and the token's jti.
func (j *JWTIssuer) ValidateRefresh(ctx context.Context, tokenString string) (userID, jti string, err error) {
	claims, err := j.parse(tokenString, "refresh")
	if err != nil {
		return "", "", ErrInvalidToken
	}
	userID, _ = claims["sub"].(string)
	jti, _ = claims["jti"].(string)
	if userID == "" || jti == "" {
		return "", "", ErrInvalidToken
	}
	if j.Blacklist != nil {
		revoked, err := j.Blacklist.IsRevoked(ctx, jti)
		if err != nil {
			return "", "", err
		}
		if revoked {
			return "", "", ErrInvalidToken
		}
	}
	return userID, jti, nil
}

// Refresh validates a refresh token and mints a new access token for its
// holder. The refresh token itself is left alone.
func (j *JWTIssuer) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, _, err := j.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	return j.mint(userID, "access", j.accessExpiry(), "")
}

// Revoke blacklists a refresh token. Malformed or already-revoked tokens
// return ErrInvalidToken; this is a 400-class condition, not a crash.
func (j *JWTIssuer) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := j.parse(refreshToken, "refresh")
	if err != nil {
		return ErrInvalidToken
	}
	jti, _ := claims["jti"].(string)
	userID, _ := claims["sub"].(string)
	if jti == "" || j.Blacklist == nil {
		return ErrInvalidToken
	}
	revoked, err := j.Blacklist.IsRevoked(ctx, jti)
	if err != nil {
		return err
	}
	if revoked {
		return ErrInvalidToken
	}

	expiresAt := time.Now().Add(j.refreshExpiry())
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return j.Blacklist.Revoke(ctx, jti, userID, expiresAt)
}

func (j *JWTIssuer) parse(tokenString, expectedType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != expectedType {
		return nil, fmt.Errorf("invalid token type")
	}
	if j.Issuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != j.Issuer {
			return nil, fmt.Errorf("invalid issuer")
		}
	}
	return claims, nil
}
