package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

const defaultTokenEndpoint = "https://oauth2.googleapis.com/token"

// tokenSource exchanges the long-lived refresh token for access tokens
// via the standard OAuth2 refresh grant. Concurrent workers hitting an
// expired credential coalesce onto one in-flight refresh: the first
// caller performs the exchange and everyone else waits for its result.
type tokenSource struct {
	httpClient   *http.Client
	endpoint     string
	clientID     string
	clientSecret string
	refreshToken string

	group singleflight.Group

	mu          sync.Mutex
	accessToken string
}

func newTokenSource(httpClient *http.Client, endpoint, clientID, clientSecret, refreshToken string) *tokenSource {
	if endpoint == "" {
		endpoint = defaultTokenEndpoint
	}
	return &tokenSource{
		httpClient:   httpClient,
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
	}
}

// Token returns the cached access token, refreshing when none is held yet.
func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	tok := t.accessToken
	t.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return t.Refresh(ctx)
}

// Refresh performs the refresh grant. All concurrent callers share one
// upstream request; each retries with the token that request produced.
func (t *tokenSource) Refresh(ctx context.Context) (string, error) {
	v, err, _ := t.group.Do("refresh", func() (any, error) {
		return t.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (t *tokenSource) doRefresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", t.refreshToken)
	form.Set("client_id", t.clientID)
	form.Set("client_secret", t.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token refresh: %d %s", resp.StatusCode, b)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token refresh: empty access_token")
	}

	t.mu.Lock()
	t.accessToken = body.AccessToken
	t.mu.Unlock()
	return body.AccessToken, nil
}
