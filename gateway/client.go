// Package gateway is the transport to the remote verification gateway.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/faceproof/faceproof/o11y"
	"github.com/faceproof/faceproof/proto"
)

type Client struct {
	url        string
	httpClient o11y.HTTPClient
}

func NewClient(url string, httpClient o11y.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:        url,
		httpClient: httpClient,
	}
}

// Send posts the signed assertion as an opaque body and returns the
// gateway's JSON response. It never retries: verification tokens are
// single-use and a blind retry risks duplicate session issuance. Retry
// policy, if any, belongs to the caller with a freshly signed payload.
func (c *Client) Send(ctx context.Context, assertion string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(assertion))
	if err != nil {
		return nil, proto.ErrGatewayError.WithCausef("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, proto.ErrGatewayError.WithCausef("post to gateway: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, proto.ErrGatewayError.WithCausef("read gateway response: %w", err)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, errorFromBody(res.StatusCode, body)
	}

	return json.RawMessage(body), nil
}

// errorFromBody surfaces a plain-string gateway body verbatim, falling
// back to a generic wrap for structured or empty bodies.
func errorFromBody(status int, body []byte) error {
	var msg string
	if err := json.Unmarshal(body, &msg); err == nil && msg != "" {
		return proto.ErrGatewayError.WithMessage(msg)
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" && !json.Valid(body) {
		return proto.ErrGatewayError.WithMessage(trimmed)
	}

	return proto.ErrGatewayError.WithCausef("gateway responded %d: %s", status, trimmed)
}
