package saic

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// tokenValidityMargin is how close to expiry a token is still trusted.
const tokenValidityMargin = 30 * time.Second

var regionEndpoints = map[string]string{
	"eu": "https://gateway-mg-eu.soimt.com/api.app/v1/",
	"au": "https://gateway-mg-au.soimt.com/api.app/v1/",
}

// Config selects the gateway and carries the account credentials.
type Config struct {
	Username string
	Password string
	Region   string
	BaseURL  string // overrides the region endpoint, mainly for tests
}

func (c Config) endpoint() (string, error) {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = regionEndpoints[c.Region]
	}
	if base == "" {
		return "", fmt.Errorf("unknown region %q", c.Region)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base, nil
}

// TokenCache persists session tokens across restarts.
type TokenCache interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
	Clear(ctx context.Context) error
}

// Token implements oauth2.TokenSource. It reuses the cached session
// token and logs in again when it is missing or about to expire.
func (c *Client) Token() (*oauth2.Token, error) {
	return c.ensureToken(context.Background())
}

func (c *Client) ensureToken(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tokenUsable(c.token) {
		return c.token, nil
	}

	if c.token == nil && c.cache != nil && !c.cacheChecked {
		c.cacheChecked = true
		if stored, err := c.cache.Load(ctx); err == nil && tokenUsable(stored) {
			c.log.Info().Time("expires", stored.Expiry).Msg("reusing stored session token")
			c.token = stored
			return c.token, nil
		}
	}

	token, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	c.token = token
	c.log.Info().Time("expires", token.Expiry).Msg("logged in to iSmart gateway")

	if c.cache != nil {
		if err := c.cache.Save(ctx, token); err != nil {
			c.log.Warn().Err(err).Msg("persisting session token failed")
		}
	}
	return c.token, nil
}

// InvalidateToken drops the in-memory token and the persisted copy.
// Called by the poller when the gateway rejects the session.
func (c *Client) InvalidateToken(ctx context.Context) {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	if c.cache != nil {
		if err := c.cache.Clear(ctx); err != nil {
			c.log.Warn().Err(err).Msg("clearing stored token failed")
		}
	}
}

func (c *Client) login(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("scope", "vehicle")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var data struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := c.do(req, &data); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if data.AccessToken == "" {
		return nil, fmt.Errorf("login: gateway returned no access token")
	}

	tokenType := data.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  data.AccessToken,
		TokenType:    tokenType,
		RefreshToken: data.RefreshToken,
		Expiry:       time.Now().Add(time.Duration(data.ExpiresIn) * time.Second),
	}, nil
}

func tokenUsable(token *oauth2.Token) bool {
	return token != nil && token.AccessToken != "" && time.Until(token.Expiry) > tokenValidityMargin
}
