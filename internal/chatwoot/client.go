package chatwoot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRateDelay  = 500 * time.Millisecond
	defaultRetryAfter = 60 * time.Second
	defaultPerPage    = 25

	// maxAttempts is the total request budget for retryable failures.
	// 429 responses are a cooperative backoff signal, not a failure, and do
	// not consume it.
	maxAttempts = 3

	maxBodyBytes = 32 << 20
)

// Config is the immutable run configuration for a Client.
type Config struct {
	BaseURL   string
	Token     string
	AccountID string

	// RateDelay is the preventive delay paid after every successful call.
	// Zero means the 500ms default.
	RateDelay time.Duration
}

// Client issues authenticated requests against one Chatwoot account. It is
// safe for concurrent use; the rate limiter and preventive delay are shared
// across all callers so parallel workers cannot exceed the account's quota.
type Client struct {
	baseURL   string
	accountID string
	token     string
	rateDelay time.Duration

	http    *http.Client
	limiter *rate.Limiter

	// backoff is overridden in tests to avoid multi-second sleeps.
	backoff func(attempt int) time.Duration
}

// New validates cfg and returns a ready Client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("chatwoot: base URL is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("chatwoot: access token is required")
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, fmt.Errorf("chatwoot: account ID is required")
	}

	delay := cfg.RateDelay
	if delay == 0 {
		delay = defaultRateDelay
	}

	return &Client{
		baseURL:   baseURL,
		accountID: strings.TrimSpace(cfg.AccountID),
		token:     strings.TrimSpace(cfg.Token),
		rateDelay: delay,
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
	}, nil
}

// accountPath builds an endpoint path under the configured account.
func (c *Client) accountPath(format string, args ...any) string {
	return fmt.Sprintf("/api/v1/accounts/%s", c.accountID) + fmt.Sprintf(format, args...)
}

// get issues one authenticated GET and returns the raw response body.
// Retry, backoff and rate limiting happen here so callers never see a
// transient failure that had budget left.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	requestURL := c.baseURL + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	attempt := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request for %s: %w", endpoint, err)
		}
		req.Header.Set("api_access_token", c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			terminal := error(&TransportError{Endpoint: endpoint, Err: err})
			if isTimeout(err) {
				terminal = &TimeoutError{Endpoint: endpoint}
			}
			attempt++
			if attempt >= maxAttempts {
				return nil, terminal
			}
			if !sleepContext(ctx, c.backoff(attempt-1)) {
				return nil, ctx.Err()
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp.Header)
			drain(resp)
			if !sleepContext(ctx, wait) {
				return nil, ctx.Err()
			}
			// Cooperative backoff: re-issue the same attempt.
			continue

		case resp.StatusCode == http.StatusUnauthorized:
			drain(resp)
			return nil, &AuthError{Endpoint: endpoint}

		case resp.StatusCode >= 400:
			status := resp.StatusCode
			drain(resp)
			attempt++
			if attempt >= maxAttempts {
				return nil, &HTTPError{Endpoint: endpoint, Status: status}
			}
			if !sleepContext(ctx, c.backoff(attempt-1)) {
				return nil, ctx.Err()
			}
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
		}

		// Preventive delay to stay under the undocumented per-second quota.
		sleepContext(ctx, c.rateDelay)
		return body, nil
	}
}

// retryAfter reads the Retry-After header, falling back to 60s when the
// value is absent or not a whole number of seconds.
func retryAfter(h http.Header) time.Duration {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
