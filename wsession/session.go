// Package wsession is the default flow.Session implementation over the
// gateway's streaming transport.
package wsession

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faceproof/faceproof/flow"
	"github.com/faceproof/faceproof/proto"
	"github.com/gorilla/websocket"
)

const defaultHost = "rp.secure.faceproof.io"

// StreamingURL builds the region-templated session endpoint.
func StreamingURL(region string) string {
	return "wss://" + region + "." + defaultHost + "/ws"
}

// Factory dials a streaming session per grant. It implements
// flow.SessionFactory: sessions come back primed but not transmitting.
type Factory struct {
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// BaseURL overrides the region-templated endpoint. For tests and
	// private deployments.
	BaseURL string
}

var _ flow.SessionFactory = (*Factory)(nil)

func (f *Factory) CreateSession(ctx context.Context, grant *proto.TokenGrant, req *proto.TokenRequest) (flow.Session, error) {
	dialer := f.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	url := f.BaseURL
	if url == "" {
		url = StreamingURL(grant.Region)
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &Session{
		conn:      conn,
		token:     grant.Token,
		userID:    req.UserID,
		claimType: req.ClaimType.String(),
		events:    make(chan flow.Event, 16),
	}, nil
}

// Session streams state frames from the gateway and surfaces them as
// flow events. Transmission begins on Start, never on dial.
type Session struct {
	conn      *websocket.Conn
	token     string
	userID    string
	claimType string
	events    chan flow.Event

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
}

var _ flow.Session = (*Session)(nil)

type startFrame struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ClaimType string `json:"claimType"`
}

type stateFrame struct {
	State    string  `json:"state"`
	Progress float64 `json:"progress,omitempty"`
	Message  string  `json:"message,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

func (s *Session) Events() <-chan flow.Event {
	return s.events
}

func (s *Session) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		err = s.conn.WriteJSON(startFrame{
			Token:     s.token,
			UserID:    s.userID,
			ClaimType: s.claimType,
		})
		if err == nil {
			go s.readLoop(ctx)
		}
	})
	return err
}

func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stop"), deadline)
		_ = s.conn.Close()
	})
}

func (s *Session) readLoop(ctx context.Context) {
	defer close(s.events)
	for {
		var f stateFrame
		if err := s.conn.ReadJSON(&f); err != nil {
			if s.stopped.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}
			s.emit(ctx, flow.Event{Kind: flow.EventError, Cause: err})
			return
		}

		ev, err := f.toEvent()
		if err != nil {
			s.emit(ctx, flow.Event{Kind: flow.EventError, Cause: err})
			return
		}

		s.emit(ctx, ev)
		if ev.Kind.Terminal() {
			return
		}
	}
}

func (s *Session) emit(ctx context.Context, ev flow.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (f stateFrame) toEvent() (flow.Event, error) {
	switch f.State {
	case "connecting":
		return flow.Event{Kind: flow.EventConnecting}, nil
	case "connected":
		return flow.Event{Kind: flow.EventConnected}, nil
	case "processing":
		return flow.Event{Kind: flow.EventProcessing, Progress: f.Progress, Message: f.Message}, nil
	case "canceled":
		return flow.Event{Kind: flow.EventCanceled}, nil
	case "error":
		return flow.Event{Kind: flow.EventError, Cause: fmt.Errorf("%s", f.Message)}, nil
	case "failure":
		return flow.Event{Kind: flow.EventFailure, Reason: f.Reason}, nil
	case "success":
		return flow.Event{Kind: flow.EventSuccess}, nil
	}
	return flow.Event{}, fmt.Errorf("unknown session state: %q", f.State)
}
