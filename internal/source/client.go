package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/john/commander/internal/logging"
)

// maxBodyBytes caps how much of a listing response is read.
const maxBodyBytes = 8 << 20

// Fetcher loads the raw listing document behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// Client performs single, unretried GET requests for listing documents.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
}

// NewClient creates a listing client using the default transport.
func NewClient() *Client {
	return &Client{UserAgent: "commander/1.0"}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Fetch performs one GET bounded by timeout and returns the response body.
// Failures are reported as *FetchError.
func (c *Client) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindConnection, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, classify(url, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Component("source").Warn().Err(err).Str("url", url).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: KindProtocol, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(url, err)
	}
	return body, nil
}

func classify(url string, err error) *FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimeout, URL: url, Err: err}
	}
	return &FetchError{Kind: KindConnection, URL: url, Err: err}
}
