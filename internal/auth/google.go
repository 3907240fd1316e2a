package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauthapi "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"spendly/internal/storage"
)

var ErrUnverifiedEmail = errors.New("federated account email is not verified")

// FederatedIdentity is the profile returned by an external sign-in provider.
type FederatedIdentity struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
}

// GoogleProvider runs the OAuth authorization code flow against Google and
// reads the signed-in account from the userinfo endpoint.
type GoogleProvider struct {
	config      *oauth2.Config
	apiEndpoint string
}

type GoogleOption func(*GoogleProvider)

// WithOAuthEndpoint overrides Google's authorization and token URLs.
func WithOAuthEndpoint(ep oauth2.Endpoint) GoogleOption {
	return func(p *GoogleProvider) { p.config.Endpoint = ep }
}

// WithUserinfoEndpoint overrides the base URL of the userinfo API.
func WithUserinfoEndpoint(url string) GoogleOption {
	return func(p *GoogleProvider) { p.apiEndpoint = url }
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{oauthapi.UserinfoEmailScope, oauthapi.UserinfoProfileScope, "openid"},
			Endpoint:     google.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthCodeURL returns the consent page URL carrying state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for the account identity.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (FederatedIdentity, error) {
	if code == "" {
		return FederatedIdentity{}, errors.New("missing authorization code")
	}
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return FederatedIdentity{}, fmt.Errorf("token exchange: %w", err)
	}

	opts := []option.ClientOption{option.WithHTTPClient(p.config.Client(ctx, tok))}
	if p.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.apiEndpoint))
	}
	svc, err := oauthapi.NewService(ctx, opts...)
	if err != nil {
		return FederatedIdentity{}, fmt.Errorf("userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return FederatedIdentity{}, fmt.Errorf("userinfo: %w", err)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return FederatedIdentity{}, ErrUnverifiedEmail
	}
	return FederatedIdentity{
		Provider:    storage.ProviderGoogle,
		Subject:     info.Id,
		Email:       info.Email,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
	}, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
