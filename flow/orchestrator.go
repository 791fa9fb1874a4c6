// Package flow drives a verification attempt end to end: token
// retrieval, consent, the live biometric session and server-side
// validation, as one cancellable unit of work per Run.
package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/faceproof/faceproof/proto"
	"github.com/rs/zerolog"
)

type State uint8

const (
	StateIdle State = iota
	StateRequestingToken
	StateAwaitingConsent
	StateSessionRunning
	StateValidating
	StateDone
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateRequestingToken: "requesting_token",
	StateAwaitingConsent: "awaiting_consent",
	StateSessionRunning:  "session_running",
	StateValidating:      "validating",
	StateDone:            "done",
}

func (s State) String() string {
	return stateNames[s]
}

// CanceledPolicy decides what a Canceled session terminal means to the
// caller. There is no default: callers choose explicitly.
type CanceledPolicy uint8

const (
	// CanceledFails reports a canceled session as ErrSessionCanceled.
	CanceledFails CanceledPolicy = iota + 1
	// CanceledResolves resolves a canceled session silently: no
	// credential, no error.
	CanceledResolves
)

type Options struct {
	// Consent gates session start when a grant carries a privacy
	// policy URL. Without a gate, such grants are treated as declined.
	Consent ConsentGate

	// Sink observes session events. Optional.
	Sink EventSink

	// Canceled is required.
	Canceled CanceledPolicy

	// Log defaults to a no-op logger.
	Log *zerolog.Logger
}

// Orchestrator runs verification flows. It is stateless across runs;
// everything per-attempt lives in Run's frame, so concurrent runs for
// different users do not interfere.
type Orchestrator struct {
	tokens    TokenClient
	validator ValidationClient
	sessions  SessionFactory
	consent   ConsentGate
	sink      EventSink
	canceled  CanceledPolicy
	log       zerolog.Logger
}

func NewOrchestrator(tokens TokenClient, validator ValidationClient, sessions SessionFactory, opts Options) (*Orchestrator, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token client is required")
	}
	if validator == nil {
		return nil, fmt.Errorf("validation client is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session factory is required")
	}
	if opts.Canceled != CanceledFails && opts.Canceled != CanceledResolves {
		return nil, fmt.Errorf("a canceled-session policy is required")
	}

	log := zerolog.Nop()
	if opts.Log != nil {
		log = *opts.Log
	}

	return &Orchestrator{
		tokens:    tokens,
		validator: validator,
		sessions:  sessions,
		consent:   opts.Consent,
		sink:      opts.Sink,
		canceled:  opts.Canceled,
		log:       log,
	}, nil
}

// Result is the single outcome of one Run. Credential is empty when a
// canceled session resolved under CanceledResolves.
type Result struct {
	Credential string
}

// Run performs one verification attempt. It produces exactly one result
// and starts at most one session; none at all when the token request
// fails or consent is declined. Cancelling ctx stops the session and
// the event collection.
func (o *Orchestrator) Run(ctx context.Context, req *proto.TokenRequest) (*Result, error) {
	state := StateIdle
	advance := func(next State) {
		o.log.Debug().Stringer("from", state).Stringer("to", next).Msg("flow: transition")
		state = next
	}

	advance(StateRequestingToken)
	if err := req.Validate(); err != nil {
		return nil, proto.ErrInvalidArgument.WithCausef("%w", err)
	}
	grant, err := o.tokens.GetToken(ctx, req)
	if err != nil {
		return nil, wrapDownstream(err)
	}

	if grant.PrivacyPolicyURL != nil {
		advance(StateAwaitingConsent)
		accepted, err := o.presentConsent(ctx, *grant.PrivacyPolicyURL)
		if err != nil {
			return nil, err
		}
		if !accepted {
			// No session is started for a declined policy.
			return nil, proto.ErrConsentDeclined
		}
	}

	advance(StateSessionRunning)
	sessionCtx, stopObserving := context.WithCancel(ctx)
	defer stopObserving()

	session, err := o.sessions.CreateSession(sessionCtx, grant, req)
	if err != nil {
		return nil, proto.ErrSessionError.WithCausef("create session: %w", err)
	}
	defer session.Stop()

	coll, err := newCollector(sessionCtx, session, o.sink)
	if err != nil {
		return nil, err
	}

	terminal, err := coll.Wait(sessionCtx)
	if err != nil {
		return nil, proto.ErrSessionCanceled.WithCausef("flow canceled: %w", err)
	}

	// The terminal event is in hand: cancel the observation and release
	// the live session before the result is settled, so nothing the
	// session emits afterwards can alter it.
	stopObserving()
	session.Stop()

	switch terminal.Kind {
	case EventSuccess:
		advance(StateValidating)
		credential, err := o.validator.Validate(ctx, &proto.ValidateRequest{
			UserID:    req.UserID,
			Token:     grant.Token,
			ClaimType: req.ClaimType,
		})
		advance(StateDone)
		if err != nil {
			// Server-side validation is authoritative and may
			// legitimately disagree with a passed session.
			return nil, wrapDownstream(err)
		}
		return &Result{Credential: credential}, nil

	case EventCanceled:
		advance(StateDone)
		if o.canceled == CanceledResolves {
			return &Result{}, nil
		}
		return nil, proto.ErrSessionCanceled

	case EventError:
		advance(StateDone)
		if terminal.Cause != nil {
			return nil, proto.ErrSessionError.WithCausef("%w", terminal.Cause)
		}
		return nil, proto.ErrSessionError

	case EventFailure:
		advance(StateDone)
		return nil, proto.ErrSessionFailure.WithCausef("reason: %s", terminal.Reason)
	}

	advance(StateDone)
	return nil, proto.ErrUnknown.WithCausef("unexpected terminal event: %s", terminal.Kind)
}

func (o *Orchestrator) presentConsent(ctx context.Context, url string) (bool, error) {
	if o.consent == nil {
		return false, proto.ErrConsentDeclined.WithCausef("no consent gate configured")
	}
	accepted, err := o.consent.Present(ctx, url)
	if err != nil {
		return false, proto.ErrConsentDeclined.WithCausef("present privacy policy: %w", err)
	}
	return accepted, nil
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
