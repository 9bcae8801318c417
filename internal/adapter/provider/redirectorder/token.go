package redirectorder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vcard-gateway/internal/adapter/provider"
	"vcard-gateway/internal/core/ports"
)

const (
	// tokenSafetyMargin is subtracted from expires_in so a token is never
	// used right at its expiry.
	tokenSafetyMargin = 300 * time.Second
	// fallbackTokenLifetime applies when the response omits expires_in.
	fallbackTokenLifetime = 60 * time.Second
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// tokenCache holds the client-credentials bearer token for one adapter.
type tokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

func (tc *tokenCache) valid(now time.Time) (string, bool) {
	if tc.token != "" && now.Before(tc.expiresAt) {
		return tc.token, true
	}
	return "", false
}

func (tc *tokenCache) invalidate() {
	tc.mu.Lock()
	tc.token = ""
	tc.expiresAt = time.Time{}
	tc.mu.Unlock()
}

// accessToken returns the cached token, fetching a new one when it is missing
// or stale. Concurrent callers share one fetch.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokens.mu.RLock()
	tok, ok := c.tokens.valid(c.now())
	c.tokens.mu.RUnlock()
	if ok {
		return tok, nil
	}

	c.tokens.mu.Lock()
	defer c.tokens.mu.Unlock()
	if tok, ok := c.tokens.valid(c.now()); ok {
		return tok, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ports.NewUnavailable(providerName, fmt.Errorf("token: %w", err))
	}
	body, err := provider.ReadBody(resp)
	if err != nil {
		return "", ports.NewUnavailable(providerName, fmt.Errorf("token: read body: %w", err))
	}
	if !provider.IsSuccess(resp.StatusCode) {
		return "", ports.NewUnavailable(providerName, fmt.Errorf("token: http %d: %s", resp.StatusCode, truncate(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", ports.NewUnavailable(providerName, fmt.Errorf("token: decode: %w", err))
	}
	if tr.AccessToken == "" {
		return "", ports.NewUnavailable(providerName, errors.New("token: empty access_token"))
	}

	c.tokens.token = tr.AccessToken
	c.tokens.expiresAt = c.now().Add(tokenLifetime(tr.ExpiresIn))
	c.log.Debug().Time("expires_at", c.tokens.expiresAt).Msg("Redirect order token refreshed")
	return tr.AccessToken, nil
}

// tokenLifetime is how long a token is reused. Short-lived tokens keep at
// least half their lifetime instead of expiring on arrival.
func tokenLifetime(expiresIn int64) time.Duration {
	if expiresIn <= 0 {
		return fallbackTokenLifetime
	}
	full := time.Duration(expiresIn) * time.Second
	return max(full-tokenSafetyMargin, full/2)
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
