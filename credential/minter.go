// Package credential mints the application session credential returned
// after a passed validation. The SDK exchanges it for a signed-in
// session with the identity provider.
package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/goware/cachestore"
	"github.com/goware/cachestore/cachestorectl"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type Minter interface {
	Mint(ctx context.Context, userID string) (string, error)
}

type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// JWKMinter signs custom tokens with an RSA key held in Secrets Manager
// as a JWK. The key material is cached so minting does not hit the
// secret store per call.
type JWKMinter struct {
	secrets  SecretsAPI
	secretID string
	issuer   string
	ttl      time.Duration
	keyStore cachestore.Store[string]
}

var _ Minter = (*JWKMinter)(nil)

func NewJWKMinter(cacheBackend cachestore.Backend, secrets SecretsAPI, secretID string, issuer string, ttl time.Duration) (*JWKMinter, error) {
	keyStore, err := cachestorectl.Open[string](cacheBackend)
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWKMinter{
		secrets:  secrets,
		secretID: secretID,
		issuer:   issuer,
		ttl:      ttl,
		keyStore: keyStore,
	}, nil
}

func (m *JWKMinter) Mint(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("userID is required")
	}

	raw, err := m.signingKey(ctx)
	if err != nil {
		return "", err
	}
	key, err := jwk.ParseKey([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("parse signing key: %w", err)
	}

	now := time.Now()
	tok, err := jwt.NewBuilder().
		Issuer(m.issuer).
		Subject(userID).
		Audience([]string{m.issuer}).
		IssuedAt(now).
		Expiration(now.Add(m.ttl)).
		Claim("uid", userID).
		Build()
	if err != nil {
		return "", fmt.Errorf("build credential claims: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return string(signed), nil
}

func (m *JWKMinter) signingKey(ctx context.Context) (string, error) {
	getter := func(ctx context.Context, _ string) (string, error) {
		secret, err := m.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(m.secretID),
		})
		if err != nil {
			return "", fmt.Errorf("get secret: %w", err)
		}
		if secret.SecretString == nil {
			return "", fmt.Errorf("secret is nil")
		}
		return *secret.SecretString, nil
	}

	raw, err := m.keyStore.GetOrSetWithLockEx(ctx, m.secretID, getter, time.Hour)
	if err != nil {
		return "", fmt.Errorf("get signing key: %w", err)
	}
	return raw, nil
}
