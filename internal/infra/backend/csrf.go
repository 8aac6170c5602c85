package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// csrfToken returns the cached anti-forgery token, fetching it on a miss.
func (c *Client) csrfToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(csrfKey); ok && token != "" {
		if c.metrics != nil {
			c.metrics.IncrCacheHit("csrf")
		}
		return token, nil
	}
	if c.metrics != nil {
		c.metrics.IncrCacheMiss("csrf")
	}

	token, err := c.fetchCSRF(ctx)
	if err != nil {
		return "", err
	}
	c.tokens.Set(csrfKey, token)
	return token, nil
}

func (c *Client) fetchCSRF(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/csrf/", nil)
	if err != nil {
		return "", resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch csrf token: status %d", resp.StatusCode)
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == csrfCookie && ck.Value != "" {
			c.logger.Debug("backend: csrf token from cookie")
			return ck.Value, nil
		}
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			c.logger.Warn("backend: csrf body not json", zap.Error(err))
		}
	}
	if payload.CSRFToken == "" {
		return "", resilience.Permanent(errors.New("backend: csrf token missing from response"))
	}
	return payload.CSRFToken, nil
}

// mutate sends a token-carrying request. A 403 invalidates the cached token
// and the request is sent once more with a fresh one.
func (c *Client) mutate(ctx context.Context, method, path string, payload any) ([]byte, error) {
	token, err := c.csrfToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, method, path, payload, token)
	if !errors.Is(err, errForbidden) {
		return body, err
	}

	c.tokens.Delete(csrfKey)
	if token, err = c.csrfToken(ctx); err != nil {
		return nil, err
	}
	return c.doRequest(ctx, method, path, payload, token)
}
