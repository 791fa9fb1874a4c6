// Package awscreds resolves AWS credentials from an instance metadata
// server, for deployments without ambient credentials.
package awscreds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// Provider implements aws.CredentialsProvider.
type Provider struct {
	client *imds.Client
}

func NewProvider(httpClient imds.HTTPClient, baseURL string) *Provider {
	client := imds.New(imds.Options{
		HTTPClient:     httpClient,
		Endpoint:       baseURL,
		EnableFallback: aws.FalseTernary, // disable fallback to IMDSv1
	})
	return &Provider{client: client}
}

// Retrieve returns a new set of aws.Credentials.
func (p *Provider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	profileName, err := p.instanceProfileName(ctx)
	if err != nil {
		return aws.Credentials{}, err
	}

	res, err := p.client.GetMetadata(ctx, &imds.GetMetadataInput{
		Path: "iam/security-credentials/" + profileName,
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("getting metadata: %w", err)
	}

	var cred struct {
		AccessKeyID     string `json:"AccessKeyId"`
		SecretAccessKey string `json:"SecretAccessKey"`
		Token           string `json:"Token"`
	}
	if err := json.NewDecoder(res.Content).Decode(&cred); err != nil {
		return aws.Credentials{}, fmt.Errorf("decoding response: %w", err)
	}

	return aws.Credentials{
		AccessKeyID:     cred.AccessKeyID,
		SecretAccessKey: cred.SecretAccessKey,
		SessionToken:    cred.Token,
		Expires:         time.Now().Add(time.Hour),
		CanExpire:       true,
	}, nil
}

func (p *Provider) instanceProfileName(ctx context.Context) (string, error) {
	res, err := p.client.GetMetadata(ctx, &imds.GetMetadataInput{
		Path: "iam/security-credentials/",
	})
	if err != nil {
		return "", fmt.Errorf("getting metadata: %w", err)
	}

	content, err := io.ReadAll(res.Content)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return string(content), nil
}

// StaticProvider serves fixed credentials, for local stacks and tests.
type StaticProvider struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func (p *StaticProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     p.AccessKeyID,
		SecretAccessKey: p.SecretAccessKey,
		SessionToken:    p.SessionToken,
	}, nil
}
