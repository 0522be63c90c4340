package nominatim

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL is the public Nominatim API endpoint
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent follows OSM usage policy requirements
	DefaultUserAgent = "WITW-Events/1.0"
	// DefaultConnectTimeout bounds dialing the Nominatim host.
	DefaultConnectTimeout = 2 * time.Second
	// DefaultReadTimeout bounds waiting for the response once connected.
	DefaultReadTimeout = 2 * time.Second
	// DefaultRateLimit is 1 request per second (OSM policy)
	DefaultRateLimit = rate.Limit(1.0)
	// RetryBaseDelay is the initial backoff delay
	RetryBaseDelay = 500 * time.Millisecond

	maxBodyBytes = 1 << 20
)

// Client handles communication with the Nominatim reverse geocoding API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeouts replaces the connect and read timeouts of the default transport.
func WithTimeouts(connect, read time.Duration) Option {
	return func(c *Client) {
		c.httpClient = newHTTPClient(connect, read)
	}
}

// WithRateLimit sets a custom rate limit (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetries retries 429 and 5xx responses and transport errors up to n
// times with exponential backoff starting at baseDelay. The default is no
// retries, which keeps a lookup within the connect and read timeouts.
func WithRetries(n int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
		if baseDelay > 0 {
			c.retryDelay = baseDelay
		}
	}
}

// NewClient creates a new Nominatim API client. email is included in the
// User-Agent header per OSM usage policy.
func NewClient(baseURL, email string, opts ...Option) *Client {
	userAgent := DefaultUserAgent
	if email = strings.TrimSpace(email); email != "" {
		userAgent = fmt.Sprintf("%s (%s)", DefaultUserAgent, email)
	}
	client := &Client{
		httpClient: newHTTPClient(DefaultConnectTimeout, DefaultReadTimeout),
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(DefaultRateLimit, 1),
		retryDelay: RetryBaseDelay,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func newHTTPClient(connect, read time.Duration) *http.Client {
	if connect <= 0 {
		connect = DefaultConnectTimeout
	}
	if read <= 0 {
		read = DefaultReadTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = read
	return &http.Client{
		Transport: transport,
		Timeout:   connect + read,
	}
}

// Reverse performs reverse geocoding (coordinates -> address).
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*ReverseResult, error) {
	if lat < -90 || lat > 90 {
		return nil, fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return nil, fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")

	requestURL := fmt.Sprintf("%s/reverse?%s", c.baseURL, params.Encode())

	var result ReverseResult
	if err := c.doWithRetry(ctx, requestURL, &result); err != nil {
		return nil, fmt.Errorf("reverse geocoding: %w", err)
	}

	return &result, nil
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

func (c *Client) doWithRetry(ctx context.Context, requestURL string, result any) error {
	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &StatusError{StatusCode: resp.StatusCode}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return &StatusError{StatusCode: resp.StatusCode}
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
		return nil
	}

	if c.retries == 0 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
