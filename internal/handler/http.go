package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of an http response body is read.
const maxResponseBytes = 10 << 20

// prepareHTTPHeaders merges the configured headers with the bearer token.
// A custom Authorization header takes precedence and the bearer token is ignored.
func prepareHTTPHeaders(logger *zap.Logger, c call, headers map[string]string, bearerToken string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	if bearerToken != "" {
		if _, hasAuthorizationHeader := out["Authorization"]; hasAuthorizationHeader {
			logger.Info("custom Authorization header will be used; bearerToken ignored", zap.Stringer("function", c))
		} else {
			out["Authorization"] = "Bearer " + bearerToken
		}
	}
	return out
}

func (b *Binder) httpFunc(c call, h *types.HTTPHandler) invoke.Func {
	method := strings.ToUpper(h.Method)
	if method == "" {
		method = http.MethodPost
	}
	headers := prepareHTTPHeaders(b.logger, c, h.Headers, h.BearerToken)

	return func(ctx context.Context, params map[string]any) (any, error) {
		ctx, cancel := b.withTimeout(ctx)
		defer cancel()

		req, err := newHTTPRequest(ctx, method, h.URL, params)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		req.Header.Set("X-Toolpane-Function", c.String())

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request to %s failed: %w", h.URL, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read response from %s: %w", h.URL, err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, parseErrorResponse(resp.StatusCode, body)
		}
		return decodeOutput(body), nil
	}
}

// newHTTPRequest sends params as a JSON body, or as query parameters for GET and DELETE.
func newHTTPRequest(ctx context.Context, method, rawURL string, params map[string]any) (*http.Request, error) {
	if method == http.MethodGet || method == http.MethodDelete {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("invalid url %s: %w", rawURL, err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
		req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	body, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// parseErrorResponse extracts a message from a failed response.
// JSON bodies of the form {"error": "..."} or {"message": "..."} are unwrapped.
func parseErrorResponse(status int, body []byte) error {
	if v, ok := decodeOutput(body).(map[string]any); ok {
		for _, key := range []string{"error", "message"} {
			if msg, ok := v[key].(string); ok && msg != "" {
				return fmt.Errorf("request failed with status %d: %s", status, msg)
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Errorf("request failed with status %d", status)
	}
	return fmt.Errorf("request failed with status %d: %s", status, lastLines(text, 5))
}
