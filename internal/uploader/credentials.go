package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Defaults for the platform OIDC token socket.
const (
	DefaultTokenSocket   = "/.fly/api"
	DefaultTokenAudience = "sts.amazonaws.com"

	tokenURL     = "http://localhost/v1/tokens/oidc"
	tokenTimeout = 5 * time.Second
	maxTokenSize = 64 << 10
)

// socketTokenRetriever satisfies stscreds.IdentityTokenRetriever by asking a
// local unix-socket API for a signed OIDC token.
type socketTokenRetriever struct {
	audience string
	client   *http.Client
}

func newSocketTokenRetriever(socketPath, audience string) *socketTokenRetriever {
	if socketPath == "" {
		socketPath = DefaultTokenSocket
	}
	if audience == "" {
		audience = DefaultTokenAudience
	}
	var d net.Dialer
	return &socketTokenRetriever{
		audience: audience,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (r *socketTokenRetriever) GetIdentityToken() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenTimeout)
	defer cancel()

	payload, err := json.Marshal(struct {
		Audience string `json:"aud"`
	}{r.audience})
	if err != nil {
		return nil, fmt.Errorf("encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenSize))
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("token endpoint returned an empty token")
	}
	return body, nil
}
