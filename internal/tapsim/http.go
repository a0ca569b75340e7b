package tapsim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/tapforge/internal/domain/rank"
	"github.com/okian/tapforge/internal/domain/types"
)

// ErrThrottled reports a 429 from the ingress limiter.
var ErrThrottled = errors.New("throttled")

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends a request and decodes a 200 answer into out.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrThrottled
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Health checks GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

// Ranks fetches the rank table served by GET /ranks.
func (c *HTTPClient) Ranks(ctx context.Context) (*rank.Table, error) {
	var body struct {
		Ranks      []rank.Definition `json:"ranks"`
		ColorTiers []int64           `json:"color_tiers"`
	}
	if err := c.do(ctx, http.MethodGet, "/ranks", "", nil, &body); err != nil {
		return nil, err
	}
	return rank.NewTable(body.Ranks, rank.WithColorTiers(body.ColorTiers))
}

// Tap sends one tap as the player holding token.
func (c *HTTPClient) Tap(ctx context.Context, token string, tap tapRequest) (tapResponse, error) {
	var out tapResponse
	err := c.do(ctx, http.MethodPost, "/taps", token, tap, &out)
	return out, err
}

// Leaderboard fetches the top n entries.
func (c *HTTPClient) Leaderboard(ctx context.Context, n int) ([]types.Entry, error) {
	var out []types.Entry
	err := c.do(ctx, http.MethodGet, "/leaderboard?limit="+strconv.Itoa(n), "", nil, &out)
	return out, err
}
