package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/truck-ledger-bfa-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers
// ============================================================

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, token string) ([]byte, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, resilience.Permanent(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(csrfHeader, token)
		req.AddCookie(&http.Cookie{Name: csrfCookie, Value: token})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		c.logger.Warn("backend: forbidden", zap.String("method", method), zap.String("path", path))
		return nil, resilience.Permanent(errForbidden)
	case resp.StatusCode == http.StatusNotFound:
		return nil, resilience.Permanent(errNotFoundStatus)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.logger.Warn("backend: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, resilience.Permanent(fmt.Errorf("backend %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(respBody))))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("backend: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("backend %s %s returned %d", method, path, resp.StatusCode)
	}

	c.logger.Debug("backend: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return respBody, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
