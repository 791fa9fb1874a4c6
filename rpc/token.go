package rpc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/faceproof/faceproof/o11y"
	"github.com/faceproof/faceproof/proto"
)

// GetToken validates the request shape, has the signer bind it to the
// service identity and asks the gateway for a one-time verification
// token. Validation happens before any network call. No retries.
func (s *RPC) GetToken(ctx context.Context, req *proto.TokenRequest) (*proto.TokenGrant, error) {
	log := o11y.LoggerFromContext(ctx)

	if err := req.Validate(); err != nil {
		return nil, proto.ErrInvalidArgument.WithCausef("%w", err)
	}

	assertion, err := s.Signer.Sign(ctx, map[string]any{
		"method":        "token",
		"userId":        req.UserID,
		"claimType":     req.ClaimType.String(),
		"assuranceType": req.AssuranceType.String(),
	})
	if err != nil {
		return nil, err
	}

	raw, err := s.Gateway.Send(ctx, assertion)
	o11y.CountGatewayRequest("token", err)
	if err != nil {
		return nil, wrapDownstream(err)
	}

	var grant proto.TokenGrant
	if err := json.Unmarshal(raw, &grant); err != nil {
		return nil, proto.ErrUnknown.WithCausef("parse token grant: %w", err)
	}
	if err := grant.Validate(); err != nil {
		// Never hand back a partially populated grant.
		return nil, proto.ErrUnknown.WithCausef("incomplete token grant: %w", err)
	}

	if s.Config.Gateway.PrivacyPolicyURL != "" && grant.PrivacyPolicyURL == nil {
		grant.PrivacyPolicyURL = &s.Config.Gateway.PrivacyPolicyURL
	}

	// Ledger failures do not fail token issuance.
	if _, err := s.Attempts.Record(ctx, req.UserID, grant.Token, req.ClaimType.String()); err != nil {
		log.Error("failed to record attempt", "error", err)
	}

	return &grant, nil
}

// wrapDownstream passes typed errors through untouched and folds
// anything else into the unknown bucket.
func wrapDownstream(err error) error {
	var rpcErr proto.Error
	if errors.As(err, &rpcErr) {
		return err
	}
	return proto.ErrUnknown.WithCausef("%w", err)
}
