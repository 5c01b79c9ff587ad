package oauth2

import (
	"context"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleBroker exchanges Google authorization codes for a verified
// profile using the v2 userinfo endpoint.
type GoogleBroker struct {
	config oauth2.Config

	// userinfoEndpoint overrides the Google API base URL in tests.
	userinfoEndpoint string
}

func NewGoogleBroker(clientID string, clientSecret string, redirectURL string) *GoogleBroker {
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if redirectURL == "" {
		redirectURL = os.Getenv("GOOGLE_REDIRECT_URI")
	}
	return &GoogleBroker{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

func (g *GoogleBroker) Configured() bool {
	return g.config.ClientID != "" && g.config.ClientSecret != ""
}

// Exchange trades the authorization code for tokens and resolves the
// Google account behind them.
func (g *GoogleBroker) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	defer cancel()

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, newProviderError("google", err)
	}

	opts := []option.ClientOption{
		option.WithTokenSource(g.config.TokenSource(ctx, token)),
	}
	if g.userinfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.userinfoEndpoint))
	}
	svc, err := googleoauth2.NewService(ctx, opts...)
	if err != nil {
		return nil, newProviderError("google", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, newProviderError("google", err)
	}

	return &Profile{
		Email:     info.Email,
		FirstName: info.GivenName,
		LastName:  info.FamilyName,
		Token:     token,
	}, nil
}
