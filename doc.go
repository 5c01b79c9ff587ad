// Package accounts implements the account and authentication backend for
// the meeting assistant application.
//
// The package covers registration with email verification, password
// login issuing JWT access/refresh pairs, password reset, Google and
// Microsoft sign-in via authorization-code exchange, and per-user
// scheduling preferences.
//
// # Architecture
//
// Service: The top-level type. It owns the stores, token issuers and
// flow managers and exposes the HTTP surface through Handler(), mounted
// under /api/accounts.
//
// Stores: CredentialStore, PreferencesStore, OpaqueTokenStore and
// TokenBlacklist are interfaces. In-memory implementations live in the
// stores package; GORM-backed ones in stores/gorm.
//
// Tokens: Password logins get a short-lived JWT access token plus a
// revocable refresh token. Federated logins get a static opaque token
// instead. The bearer middleware accepts both.
//
// # Basic Usage
//
//	import (
//	    accounts "github.com/sunilsingh2019/meeting-assistant-accounts"
//	    "github.com/sunilsingh2019/meeting-assistant-accounts/stores"
//	)
//
//	svc := accounts.NewService(
//	    stores.NewMemCredentialStore(),
//	    stores.NewMemPreferencesStore(),
//	    stores.NewMemOpaqueTokenStore(),
//	    stores.NewMemTokenBlacklist(),
//	    &accounts.ConsoleEmailSender{},
//	)
//	http.ListenAndServe(":8000", svc.Handler())
//
// Federated sign-in is enabled by attaching brokers from the oauth2
// subpackage before serving:
//
//	svc.Google = oauth2.NewGoogleBroker(clientID, clientSecret, redirectURL)
package accounts
