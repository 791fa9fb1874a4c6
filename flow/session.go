package flow

import (
	"context"

	"github.com/faceproof/faceproof/proto"
)

// Session is an opaque live biometric capture session. The stream
// protocol behind it is not this package's concern.
type Session interface {
	// Events returns the session's state stream. Subscribe before
	// calling Start or the first events may be missed.
	Events() <-chan Event

	// Start begins transmission.
	Start(ctx context.Context) error

	// Stop signals the session to stop transmitting and releases its
	// resources. Safe to call more than once.
	Stop()
}

// SessionFactory is the platform seam that creates a session primed
// with a grant, ready to start. The orchestrator subscribes to the
// session's events before it starts transmission; factories must not
// start sessions themselves.
type SessionFactory interface {
	CreateSession(ctx context.Context, grant *proto.TokenGrant, req *proto.TokenRequest) (Session, error)
}

// ConsentGate presents a policy document and resolves to the user's
// single accept/decline decision.
type ConsentGate interface {
	Present(ctx context.Context, url string) (accepted bool, err error)
}

// TokenClient is the broker-facing operation that exchanges a
// verification request for a one-time token grant.
type TokenClient interface {
	GetToken(ctx context.Context, req *proto.TokenRequest) (*proto.TokenGrant, error)
}

// ValidationClient forwards a completed token for a pass/fail judgement
// and returns the session credential on pass.
type ValidationClient interface {
	Validate(ctx context.Context, req *proto.ValidateRequest) (string, error)
}
