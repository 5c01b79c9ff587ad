package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const graphMeURL = "https://graph.microsoft.com/v1.0/me"

// ErrMissingVerifier is returned when a Microsoft exchange is attempted
// without the PKCE code verifier the frontend generated alongside the
// authorization request.
var ErrMissingVerifier = errors.New("code_verifier is required")

// MicrosoftBroker exchanges Microsoft authorization codes using the
// PKCE flow and resolves the account via Microsoft Graph.
type MicrosoftBroker struct {
	config oauth2.Config

	// graphEndpoint overrides the Graph base URL in tests.
	graphEndpoint string
}

func NewMicrosoftBroker(tenantID string, clientID string, clientSecret string, redirectURL string) *MicrosoftBroker {
	if tenantID == "" {
		tenantID = os.Getenv("MICROSOFT_TENANT_ID")
	}
	if tenantID == "" {
		tenantID = "common"
	}
	if clientID == "" {
		clientID = os.Getenv("MICROSOFT_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("MICROSOFT_CLIENT_SECRET")
	}
	if redirectURL == "" {
		redirectURL = os.Getenv("MICROSOFT_REDIRECT_URI")
	}
	return &MicrosoftBroker{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email", "User.Read", "offline_access"},
			Endpoint:     microsoft.AzureADEndpoint(tenantID),
		},
	}
}

func (m *MicrosoftBroker) Configured() bool {
	return m.config.ClientID != "" && m.config.ClientSecret != ""
}

// Exchange trades the authorization code for tokens.  Microsoft
// requires the PKCE verifier that matched the challenge sent on the
// authorize leg, so verifier is mandatory here.
func (m *MicrosoftBroker) Exchange(ctx context.Context, code string, verifier string) (*Profile, error) {
	if code == "" {
		return nil, ErrMissingCode
	}
	if verifier == "" {
		return nil, ErrMissingVerifier
	}
	if !m.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, ProviderTimeout)
	defer cancel()

	token, err := m.config.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		return nil, newProviderError("microsoft", err)
	}

	profile, err := m.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	profile.Token = token
	return profile, nil
}

func (m *MicrosoftBroker) fetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	endpoint := m.graphEndpoint
	if endpoint == "" {
		endpoint = graphMeURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newProviderError("microsoft", err)
	}
	resp, err := m.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, newProviderError("microsoft", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError("microsoft", err)
	}
	if resp.StatusCode != http.StatusOK {
		perr := newProviderError("microsoft", fmt.Errorf("graph returned %d", resp.StatusCode))
		var payload map[string]any
		if json.Unmarshal(body, &payload) == nil {
			perr.Payload = payload
		}
		return nil, perr
	}

	var me struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
		GivenName         string `json:"givenName"`
		Surname           string `json:"surname"`
	}
	if err := json.Unmarshal(body, &me); err != nil {
		return nil, newProviderError("microsoft", err)
	}

	// Personal accounts often have no mail attribute; the principal
	// name carries the address there.
	email := me.Mail
	if email == "" {
		email = me.UserPrincipalName
	}
	return &Profile{
		Email:     email,
		FirstName: me.GivenName,
		LastName:  me.Surname,
	}, nil
}
