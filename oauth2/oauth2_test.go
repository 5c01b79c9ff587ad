package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

// fakeTokenServer stands in for a provider's token endpoint. It records
// the form parameters of the last exchange.
func fakeTokenServer(t *testing.T, rejectWith string) (*httptest.Server, *map[string]string) {
	t.Helper()
	lastForm := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad token request: %v", err)
		}
		for k := range r.Form {
			lastForm[k] = r.Form.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		if rejectWith != "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             rejectWith,
				"error_description": "the grant was not accepted",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "provider-access-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "provider-refresh-token",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastForm
}

func TestGoogleExchange(t *testing.T) {
	tokenSrv, lastForm := fakeTokenServer(t, "")
	userinfoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"email":       "alice@example.com",
			"given_name":  "Alice",
			"family_name": "Smith",
		})
	}))
	t.Cleanup(userinfoSrv.Close)

	broker := NewGoogleBroker("client-id", "client-secret", "http://localhost/callback")
	broker.config.Endpoint = oauth2.Endpoint{
		TokenURL:  tokenSrv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	broker.userinfoEndpoint = userinfoSrv.URL

	profile, err := broker.Exchange(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if profile.Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %s", profile.Email)
	}
	if profile.FirstName != "Alice" || profile.LastName != "Smith" {
		t.Errorf("unexpected name parts: %+v", profile)
	}
	if profile.Token == nil || profile.Token.AccessToken != "provider-access-token" {
		t.Errorf("expected provider token to be carried through")
	}
	if (*lastForm)["code"] != "auth-code" {
		t.Errorf("authorization code not forwarded: %v", *lastForm)
	}
}

func TestGoogleExchangeRejection(t *testing.T) {
	tokenSrv, _ := fakeTokenServer(t, "invalid_grant")

	broker := NewGoogleBroker("client-id", "client-secret", "http://localhost/callback")
	broker.config.Endpoint = oauth2.Endpoint{
		TokenURL:  tokenSrv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	_, err := broker.Exchange(context.Background(), "expired-code")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Provider != "google" {
		t.Errorf("expected provider google, got %s", perr.Provider)
	}
	if perr.Payload["error"] != "invalid_grant" {
		t.Errorf("provider payload not carried through: %v", perr.Payload)
	}
}

func TestGoogleExchangeGuards(t *testing.T) {
	broker := NewGoogleBroker("client-id", "client-secret", "")
	if _, err := broker.Exchange(context.Background(), ""); !errors.Is(err, ErrMissingCode) {
		t.Errorf("expected ErrMissingCode, got %v", err)
	}

	unconfigured := &GoogleBroker{}
	if _, err := unconfigured.Exchange(context.Background(), "code"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestMicrosoftExchange(t *testing.T) {
	tokenSrv, lastForm := fakeTokenServer(t, "")
	graphSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"mail":              "bob@example.com",
			"userPrincipalName": "bob@example.com",
			"givenName":         "Bob",
			"surname":           "Jones",
		})
	}))
	t.Cleanup(graphSrv.Close)

	broker := NewMicrosoftBroker("tenant", "client-id", "client-secret", "http://localhost/callback")
	broker.config.Endpoint = oauth2.Endpoint{
		TokenURL:  tokenSrv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	broker.graphEndpoint = graphSrv.URL

	profile, err := broker.Exchange(context.Background(), "auth-code", "pkce-verifier")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if profile.Email != "bob@example.com" {
		t.Errorf("expected bob@example.com, got %s", profile.Email)
	}
	if (*lastForm)["code_verifier"] != "pkce-verifier" {
		t.Errorf("PKCE verifier not forwarded: %v", *lastForm)
	}
}

// TestMicrosoftFallsBackToPrincipalName covers personal accounts that
// have no mail attribute.
func TestMicrosoftFallsBackToPrincipalName(t *testing.T) {
	tokenSrv, _ := fakeTokenServer(t, "")
	graphSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"userPrincipalName": "carol@outlook.com",
			"givenName":         "Carol",
		})
	}))
	t.Cleanup(graphSrv.Close)

	broker := NewMicrosoftBroker("tenant", "client-id", "client-secret", "")
	broker.config.Endpoint = oauth2.Endpoint{
		TokenURL:  tokenSrv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	broker.graphEndpoint = graphSrv.URL

	profile, err := broker.Exchange(context.Background(), "auth-code", "verifier")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if profile.Email != "carol@outlook.com" {
		t.Errorf("expected principal name fallback, got %s", profile.Email)
	}
}

func TestMicrosoftExchangeGuards(t *testing.T) {
	broker := NewMicrosoftBroker("tenant", "client-id", "client-secret", "")
	if _, err := broker.Exchange(context.Background(), "", "verifier"); !errors.Is(err, ErrMissingCode) {
		t.Errorf("expected ErrMissingCode, got %v", err)
	}
	if _, err := broker.Exchange(context.Background(), "code", ""); !errors.Is(err, ErrMissingVerifier) {
		t.Errorf("expected ErrMissingVerifier, got %v", err)
	}
}

func TestMicrosoftGraphRejection(t *testing.T) {
	tokenSrv, _ := fakeTokenServer(t, "")
	graphSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "InvalidAuthenticationToken"},
		})
	}))
	t.Cleanup(graphSrv.Close)

	broker := NewMicrosoftBroker("tenant", "client-id", "client-secret", "")
	broker.config.Endpoint = oauth2.Endpoint{
		TokenURL:  tokenSrv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	broker.graphEndpoint = graphSrv.URL

	_, err := broker.Exchange(context.Background(), "auth-code", "verifier")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Payload == nil {
		t.Error("expected graph payload to be carried through")
	}
}
