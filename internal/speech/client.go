// Package speech proxies token issuance against the Azure speech service.
// The service endpoints are opaque: the gateway relays credentials and
// bodies, it does not interpret them beyond status codes.
package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/tphakala/avatar-gateway/internal/conf"
	"github.com/tphakala/avatar-gateway/internal/logging"
)

// subscriptionKeyHeader carries the speech service API key on every call.
const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// StatusError reports a non-2xx response from the speech service so the
// route handler can mirror the upstream status to the client.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech service returned status %d", e.StatusCode)
}

// leveledSlog adapts slog for retryablehttp. Retry errors log at WARN
// because the client retries them.
type leveledSlog struct {
	inner *slog.Logger
}

func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

// Client calls the speech service token endpoints with retries on
// connection errors and 5xx responses.
type Client struct {
	settings *conf.SpeechSettings
	apiKey   string
	http     *http.Client
	log      *slog.Logger
}

// NewClient builds a speech client. The API key is resolved by the caller
// at startup; an empty key is allowed and rejected per call so the rest of
// the gateway still serves.
func NewClient(settings *conf.SpeechSettings, apiKey string) *Client {
	log := logging.ForService("speech")

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: log})

	client := retryClient.StandardClient()
	client.Timeout = 15 * time.Second

	return &Client{
		settings: settings,
		apiKey:   apiKey,
		http:     client,
		log:      log,
	}
}

// SetTransport replaces the underlying transport. Tests point it at a mock.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http = &http.Client{Transport: rt, Timeout: 15 * time.Second}
}

// HasKey reports whether an API key was configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// IssueToken fetches a short-lived bearer token from the speech service
// token-issuance endpoint. The response body is the token itself.
func (c *Client) IssueToken(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost, c.settings.SpeechTokenEndpoint())
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RelayToken fetches ICE relay credentials for the avatar connection. The
// JSON body is returned verbatim for the route handler to pass through.
func (c *Client) RelayToken(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, c.settings.SpeechRelayEndpoint())
}

func (c *Client) do(ctx context.Context, method, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building speech request: %w", err)
	}
	req.Header.Set(subscriptionKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling speech service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Debug("Failed to close speech response", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("Speech service call failed", "method", method, "status", resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading speech response: %w", err)
	}
	return body, nil
}
