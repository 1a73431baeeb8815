// Package cex is the REST client for the centralized-exchange venue. The
// remote API is unreliable, so balance reads are wrapped in a bounded retry.
package cex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/keeperhq/invkeeper/internal/wad"
)

// defaultTimeout matches the request timeout the venue's own SDK ships with.
const defaultTimeout = 9500 * time.Millisecond

// defaultMaxRetries applies when ClientConfig leaves MaxRetries unset. The
// exchange API is flaky enough that an unretried read fails most cycles.
const defaultMaxRetries = 3

// Balance is one asset balance as reported by the exchange.
type Balance struct {
	Symbol string
	Free   wad.Wad
	Locked wad.Wad
}

// Total returns free + locked holdings.
func (b Balance) Total() wad.Wad {
	return b.Free.Add(b.Locked)
}

// ClientConfig holds connection parameters for the exchange API.
type ClientConfig struct {
	// BaseURL is the API root, e.g. "https://api.example-exchange.com".
	BaseURL string
	// APIKey and Secret authenticate requests (HMAC-SHA256).
	APIKey string
	Secret string
	// Timeout bounds each HTTP request. Zero means the default (9.5s).
	Timeout time.Duration
	// MaxRetries is how many times a failed request is retried. Zero means
	// the default (3); negative disables retries.
	MaxRetries int
}

// Client is the authenticated REST client.
type Client struct {
	baseURL    string
	auth       hmacAuth
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		auth:       hmacAuth{key: cfg.APIKey, secret: cfg.Secret},
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
		logger:     logger.With(slog.String("component", "cex")),
	}
}

// Balances fetches all asset balances for the account. Failed requests are
// retried up to the configured maximum before the error is surfaced.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	body, err := c.getWithRetry(ctx, "/v1/account/balances")
	if err != nil {
		return nil, fmt.Errorf("cex: get balances: %w", err)
	}

	var resp struct {
		Balances []struct {
			Symbol string `json:"symbol"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("cex: decode balances: %w", err)
	}

	out := make([]Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		free, err := wad.Parse(b.Free)
		if err != nil {
			return nil, fmt.Errorf("cex: balance %s free: %w", b.Symbol, err)
		}
		locked := wad.Zero
		if b.Locked != "" {
			locked, err = wad.Parse(b.Locked)
			if err != nil {
				return nil, fmt.Errorf("cex: balance %s locked: %w", b.Symbol, err)
			}
		}
		out = append(out, Balance{Symbol: b.Symbol, Free: free, Locked: locked})
	}
	return out, nil
}

// getWithRetry performs an authenticated GET, retrying on network errors and
// 5xx responses with a short linear backoff.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying request",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		body, retryable, err := c.get(ctx, path)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) get(ctx context.Context, path string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.auth.headers(http.MethodGet, path, "") {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(data))
	}
	return data, false, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
