package accounts

import "context"

// OpaqueIssuer is the weaker, stateful token scheme used by the federated
// login paths: one static 40-hex-character token per user, no claims, no
// expiry, no revocation. Do not fold it into the JWT scheme. Every protected
// request carrying an opaque token costs a store lookup.
type OpaqueIssuer struct {
	Store OpaqueTokenStore
}

// GetOrCreate returns the user's opaque token, minting one on first use.
// Idempotent: repeated calls for the same user return the same token.
func (o *OpaqueIssuer) GetOrCreate(ctx context.Context, user *User) (string, error) {
	return o.Store.GetOrCreate(ctx, user.ID)
}

// Validate resolves an opaque token to its owning user ID.
func (o *OpaqueIssuer) Validate(ctx context.Context, token string) (string, error) {
	return o.Store.GetUserID(ctx, token)
}
