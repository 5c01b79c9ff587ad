package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	accounts "github.com/sunilsingh2019/meeting-assistant-accounts"
	"github.com/sunilsingh2019/meeting-assistant-accounts/stores"
)

func testIssuer() *accounts.JWTIssuer {
	return &accounts.JWTIssuer{
		SecretKey: "test-secret",
		Issuer:    "meeting-assistant",
		Blacklist: stores.NewMemTokenBlacklist(),
	}
}

func testUser() *accounts.User {
	return &accounts.User{ID: "user-1", Email: "a@example.com"}
}

func TestIssueAndValidate(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	userID, err := issuer.ValidateAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("expected user-1, got %s", userID)
	}

	userID, jti, err := issuer.ValidateRefresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if userID != "user-1" || jti == "" {
		t.Errorf("unexpected refresh claims: user=%s jti=%s", userID, jti)
	}
}

// TestTokenTypesAreNotInterchangeable checks that a refresh token is not
// accepted as an access token and vice versa.
func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.ValidateAccess(pair.RefreshToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("refresh-as-access should fail with ErrInvalidToken, got %v", err)
	}
	if _, _, err := issuer.ValidateRefresh(context.Background(), pair.AccessToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("access-as-refresh should fail with ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := testIssuer()
	other.SecretKey = "a-different-secret"
	if _, err := other.ValidateAccess(pair.AccessToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	issuer := testIssuer()
	issuer.AccessExpiry = -time.Minute
	issuer.RefreshExpiry = -time.Minute
	pair, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.ValidateAccess(pair.AccessToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("expired access token should fail, got %v", err)
	}
	if _, _, err := issuer.ValidateRefresh(context.Background(), pair.RefreshToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("expired refresh token should fail, got %v", err)
	}
}

func TestRefreshMintsWorkingAccessToken(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	access, err := issuer.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	userID, err := issuer.ValidateAccess(access)
	if err != nil {
		t.Fatalf("minted access token invalid: %v", err)
	}
	if userID != "user-1" {
		t.Errorf("expected user-1, got %s", userID)
	}
}

func TestRevokeBlacklistsRefreshToken(t *testing.T) {
	issuer := testIssuer()
	pair, err := issuer.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if err := issuer.Revoke(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, _, err := issuer.ValidateRefresh(context.Background(), pair.RefreshToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("revoked token should fail validation, got %v", err)
	}
	if _, err := issuer.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("revoked token should not refresh, got %v", err)
	}
	// Revoking again reads as invalid rather than succeeding silently.
	if err := issuer.Revoke(context.Background(), pair.RefreshToken); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("double revoke should fail, got %v", err)
	}

	// Access tokens issued alongside stay valid until they expire.
	if _, err := issuer.ValidateAccess(pair.AccessToken); err != nil {
		t.Errorf("access token should survive refresh revocation: %v", err)
	}
}

func TestRevokeGarbage(t *testing.T) {
	issuer := testIssuer()
	if err := issuer.Revoke(context.Background(), "not-a-jwt"); !errors.Is(err, accounts.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
