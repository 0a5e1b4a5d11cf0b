// Package atlassian talks to the Atlassian OAuth2 and identity endpoints.
package atlassian

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/stendavidson/jira-ticket-editor/internal/logger"
	"github.com/stendavidson/jira-ticket-editor/internal/models"
)

const (
	DefaultAuthURL     = "https://auth.atlassian.com/authorize"
	DefaultTokenURL    = "https://auth.atlassian.com/oauth/token"
	DefaultIdentityURL = "https://api.atlassian.com/me"

	// Audience required by Atlassian for 3LO authorization requests
	apiAudience = "api.atlassian.com"

	requestTimeout = 10 * time.Second
)

// Scopes for the normal login grant and the broader elevated grant. Both
// include offline_access so a refresh token is issued.
var (
	LoginScopes = []string{"read:jira-work", "read:jira-user", "read:me", "offline_access"}

	ElevatedScopes = []string{
		"read:jira-work", "write:jira-work",
		"read:jira-user", "read:me",
		"manage:jira-webhook", "manage:jira-project", "manage:jira-configuration",
		"read:servicedesk-request", "write:servicedesk-request",
		"offline_access",
	}
)

type Config struct {
	ClientID     string
	ClientSecret string

	// Endpoint overrides, used by tests. Zero values mean the Atlassian defaults.
	AuthURL     string
	TokenURL    string
	IdentityURL string

	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client exchanges, refreshes and validates Atlassian OAuth2 tokens. All
// remote failures degrade to an error return (or false for Validate); the
// caller decides whether that means 401 or another strategy.
type Client struct {
	oauth       oauth2.Config
	identityURL string
	http        *http.Client
	logger      logger.Logger
}

func NewClient(cfg Config) *Client {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	identityURL := cfg.IdentityURL
	if identityURL == "" {
		identityURL = DefaultIdentityURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Client{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		identityURL: identityURL,
		http:        httpClient,
		logger:      log,
	}
}

// AuthCodeURL builds the authorization redirect for the given state nonce.
// Elevated flows request the broader write-capable scope set.
func (c *Client) AuthCodeURL(state string, redirectURI string, elevate bool) string {
	cfg := c.oauth
	cfg.RedirectURL = redirectURI
	cfg.Scopes = LoginScopes
	if elevate {
		cfg.Scopes = ElevatedScopes
	}

	return cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("audience", apiAudience),
		oauth2.SetAuthURLParam("prompt", "login"),
	)
}

// ExchangeCode swaps an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string, redirectURI string) (models.Credential, error) {
	cfg := c.oauth
	cfg.RedirectURL = redirectURI

	token, err := cfg.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		c.logger.Warn("authorization code exchange failed", "error", err)
		return models.Credential{}, fmt.Errorf("code exchange failed: %w", err)
	}

	return models.Credential{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}, nil
}

// Refresh trades a refresh token for a fresh pair. Atlassian rotates refresh
// tokens, so the returned refresh token must replace the one passed in.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	source := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		c.logger.Warn("token refresh failed", "error", err)
		return models.Credential{}, fmt.Errorf("token refresh failed: %w", err)
	}

	cred := models.Credential{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if cred.RefreshToken == "" {
		// Upstream did not rotate, keep using the old one
		cred.RefreshToken = refreshToken
	}

	return cred, nil
}

// Validate checks token liveness with a lightweight identity request.
// Any network or non-200 outcome reads as invalid.
func (c *Client) Validate(ctx context.Context, accessToken string) bool {
	resp, err := c.identityRequest(ctx, accessToken)
	if err != nil {
		return false
	}
	defer resp.Body.Close() // nolint:errcheck

	return resp.StatusCode == http.StatusOK
}

// Identity fetches the account behind an access token.
func (c *Client) Identity(ctx context.Context, accessToken string) (models.Identity, error) {
	var identity models.Identity

	resp, err := c.identityRequest(ctx, accessToken)
	if err != nil {
		return identity, fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return identity, fmt.Errorf("identity request returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return identity, fmt.Errorf("failed to decode identity response: %w", err)
	}

	return identity, nil
}

func (c *Client) identityRequest(ctx context.Context, accessToken string) (*http.Response, error) {
	// The client's own timeout bounds the call, including the body read
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.identityURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// oauthContext routes the oauth2 package's internal HTTP calls through our
// configured client, keeping its timeout.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}
