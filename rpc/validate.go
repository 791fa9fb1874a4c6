package rpc

import (
	"context"
	"encoding/json"

	"github.com/faceproof/faceproof/data"
	"github.com/faceproof/faceproof/o11y"
	"github.com/faceproof/faceproof/proto"
)

// Validate forwards a completed verification token to the gateway for a
// pass/fail judgement and, on pass, mints the session credential. A
// failed judgement is a permission error and is never retried.
func (s *RPC) Validate(ctx context.Context, req *proto.ValidateRequest) (string, error) {
	log := o11y.LoggerFromContext(ctx)

	if err := req.Validate(); err != nil {
		return "", proto.ErrInvalidArgument.WithCausef("%w", err)
	}

	// One grant backs one session attempt: a token that already passed
	// validation is a replay.
	attempt, found, err := s.Attempts.Get(ctx, req.Token)
	if err != nil {
		log.Error("failed to read attempt ledger", "error", err)
	} else if found && attempt.Status == data.AttemptPassed {
		return "", proto.ErrValidationDenied.WithCausef("token already validated")
	}

	assertion, err := s.Signer.Sign(ctx, map[string]any{
		"method":    "validate",
		"userId":    req.UserID,
		"token":     req.Token,
		"claimType": req.ClaimType.String(),
	})
	if err != nil {
		return "", err
	}

	raw, err := s.Gateway.Send(ctx, assertion)
	o11y.CountGatewayRequest("validate", err)
	if err != nil {
		return "", wrapDownstream(err)
	}

	var result proto.ValidationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", proto.ErrUnknown.WithCausef("parse validation result: %w", err)
	}

	o11y.CountVerification(req.ClaimType.String(), result.Passed)

	if !result.Passed {
		if err := s.Attempts.SetStatus(ctx, req.Token, data.AttemptFailed); err != nil {
			log.Error("failed to update attempt ledger", "error", err)
		}
		return "", proto.ErrValidationDenied
	}

	// Mint before marking the attempt passed. A transient mint failure
	// leaves the attempt pending, so the caller can retry and still
	// receive a credential; only a handed-out credential burns the token.
	credential, err := s.Minter.Mint(ctx, req.UserID)
	if err != nil {
		return "", proto.ErrUnknown.WithCausef("mint credential: %w", err)
	}

	if err := s.Attempts.SetStatus(ctx, req.Token, data.AttemptPassed); err != nil {
		log.Error("failed to update attempt ledger", "error", err)
	}
	return credential, nil
}
