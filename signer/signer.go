// Package signer produces the signed assertions that authenticate the
// broker to the verification gateway. Assertions are minted fresh per
// outbound call, never cached and never logged.
package signer

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/faceproof/faceproof/proto"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

type Signer interface {
	Sign(ctx context.Context, payload map[string]any) (string, error)
}

type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

const assertionTTL = 5 * time.Minute

// KMSSigner binds the service identity to a request payload as a compact
// JWS, with the signature produced remotely by KMS. The long-lived key
// never leaves the signing authority.
type KMSSigner struct {
	kms            KMSAPI
	creds          aws.CredentialsProvider
	signingKey     string
	serviceAccount string
	audience       string
	region         string
}

var _ Signer = (*KMSSigner)(nil)

func NewKMSSigner(kmsClient KMSAPI, creds aws.CredentialsProvider, signingKey, serviceAccount, audience, region string) *KMSSigner {
	return &KMSSigner{
		kms:            kmsClient,
		creds:          creds,
		signingKey:     signingKey,
		serviceAccount: serviceAccount,
		audience:       audience,
		region:         region,
	}
}

func (s *KMSSigner) Sign(ctx context.Context, payload map[string]any) (string, error) {
	// The delegated credential exchange happens before anything is
	// assembled, so its failure mode stays distinguishable from a
	// signing refusal.
	if _, err := s.creds.Retrieve(ctx); err != nil {
		return "", proto.ErrSigningUnavailable.WithCausef("retrieve delegated credentials: %w", err)
	}

	signingInput, err := s.signingInput(payload)
	if err != nil {
		return "", proto.ErrSigningRejected.WithCausef("assemble claims: %w", err)
	}

	digest := sha256.Sum256([]byte(signingInput))
	out, err := s.kms.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.signingKey),
		Message:          digest[:],
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecRsassaPkcs1V15Sha256,
	})
	if err != nil {
		return "", proto.ErrSigningRejected.WithCausef("kms sign: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(out.Signature), nil
}

func (s *KMSSigner) signingInput(payload map[string]any) (string, error) {
	now := time.Now()
	builder := jwt.NewBuilder().
		Issuer(s.serviceAccount).
		Subject(s.serviceAccount).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(now.Add(assertionTTL)).
		Claim("region", s.region)
	for k, v := range payload {
		builder = builder.Claim(k, v)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", err
	}

	claims, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}

	header, err := json.Marshal(map[string]string{
		"alg": "RS256",
		"typ": "JWT",
		"kid": s.signingKey,
	})
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(claims), nil
}

// NewDelegatedCredentials assumes the delegate role and wraps it in a
// process-wide cache. Concurrent signing calls share the cached
// credentials, reads only.
func NewDelegatedCredentials(stsClient *sts.Client, roleARN string) aws.CredentialsProvider {
	return aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, roleARN))
}
