package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/faceproof/faceproof/proto"
)

// BrokerClient talks to the verify broker over HTTP. It implements both
// TokenClient and ValidationClient, mirroring the broker's taxonomy:
// error responses decode back into typed proto errors.
type BrokerClient struct {
	baseURL    string
	httpClient *http.Client
}

var (
	_ TokenClient      = (*BrokerClient)(nil)
	_ ValidationClient = (*BrokerClient)(nil)
)

func NewBrokerClient(baseURL string, httpClient *http.Client) *BrokerClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BrokerClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *BrokerClient) GetToken(ctx context.Context, req *proto.TokenRequest) (*proto.TokenGrant, error) {
	var grant proto.TokenGrant
	if err := c.post(ctx, "/rpc/getToken", req, &grant); err != nil {
		return nil, err
	}
	return &grant, nil
}

func (c *BrokerClient) Validate(ctx context.Context, req *proto.ValidateRequest) (string, error) {
	var credential proto.Credential
	if err := c.post(ctx, "/rpc/validate", req, &credential); err != nil {
		return "", err
	}
	return credential.Credential, nil
}

func (c *BrokerClient) post(ctx context.Context, path string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call broker: %w", err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return proto.ErrorFromResponse(res.StatusCode, resBody)
	}

	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
