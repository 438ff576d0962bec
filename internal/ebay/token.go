package ebay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	ProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	SandboxTokenURL    = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	publicScope        = "https://api.ebay.com/oauth/api_scope"

	// refresh this long before eBay says the token expires
	expiryMargin = time.Minute
)

// TokenSource supplies a Browse API bearer token.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, typically from configuration.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("no eBay token configured")
	}
	return string(s), nil
}

type oauthToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// AppTokenSource obtains application tokens with the client credentials
// grant and reuses them until shortly before they expire.
type AppTokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	http         *resty.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewAppTokenSource(clientID, clientSecret, tokenURL string) *AppTokenSource {
	if tokenURL == "" {
		tokenURL = ProductionTokenURL
	}
	client := resty.New()
	client.SetTimeout(15 * time.Second)

	return &AppTokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		http:         client,
		now:          time.Now,
	}
}

func (s *AppTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}

	var tok oauthToken
	resp, err := s.http.R().
		SetContext(ctx).
		SetBasicAuth(s.clientID, s.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
			"scope":      publicScope,
		}).
		SetResult(&tok).
		Post(s.tokenURL)
	if err != nil {
		return "", fmt.Errorf("request app token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("token request failed: %s: %s", resp.Status(), resp.String())
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}

	s.token = tok.AccessToken
	s.expiresAt = s.now().Add(time.Duration(tok.ExpiresIn)*time.Second - expiryMargin)
	return s.token, nil
}
