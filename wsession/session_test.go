package wsession_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/faceproof/faceproof/flow"
	"github.com/faceproof/faceproof/proto"
	"github.com/faceproof/faceproof/wsession"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStreamServer runs a gateway stand-in that waits for the start
// frame, reports it on starts and then sends the scripted frames.
func newStreamServer(t *testing.T, frames ...string) (wsURL string, starts chan map[string]any) {
	t.Helper()
	starts = make(chan map[string]any, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var start map[string]any
		if err := conn.ReadJSON(&start); err != nil {
			return
		}
		starts <- start

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}

		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), starts
}

func drain(t *testing.T, session flow.Session) []flow.Event {
	t.Helper()
	var events []flow.Event
	for {
		select {
		case ev, ok := <-session.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("event stream did not finish")
		}
	}
}

func createSession(t *testing.T, wsURL string) flow.Session {
	t.Helper()
	factory := &wsession.Factory{BaseURL: wsURL}
	session, err := factory.CreateSession(context.Background(),
		&proto.TokenGrant{Token: "tok-1", Region: "eu-1"},
		&proto.TokenRequest{UserID: "u1", ClaimType: proto.ClaimType_Enrol},
	)
	require.NoError(t, err)
	t.Cleanup(session.Stop)
	return session
}

func TestStreamingURL(t *testing.T) {
	assert.Equal(t, "wss://eu-1.rp.secure.faceproof.io/ws", wsession.StreamingURL("eu-1"))
}

func TestSessionStreamsEvents(t *testing.T) {
	wsURL, starts := newStreamServer(t,
		`{"state":"connecting"}`,
		`{"state":"connected"}`,
		`{"state":"processing","progress":0.5,"message":"Hold still"}`,
		`{"state":"success"}`,
	)
	session := createSession(t, wsURL)

	// Dialing does not begin transmission.
	select {
	case ev := <-session.Events():
		t.Fatalf("event before start: %v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, session.Start(context.Background()))

	start := <-starts
	assert.Equal(t, "tok-1", start["token"])
	assert.Equal(t, "u1", start["userId"])
	assert.Equal(t, "enrol", start["claimType"])

	events := drain(t, session)
	require.Len(t, events, 4)
	assert.Equal(t, flow.EventConnecting, events[0].Kind)
	assert.Equal(t, flow.EventConnected, events[1].Kind)
	assert.Equal(t, flow.EventProcessing, events[2].Kind)
	assert.Equal(t, 0.5, events[2].Progress)
	assert.Equal(t, "Hold still", events[2].Message)
	assert.Equal(t, flow.EventSuccess, events[3].Kind)
}

func TestSessionFailureFrame(t *testing.T) {
	wsURL, _ := newStreamServer(t, `{"state":"failure","reason":"ambiguous_outcome"}`)
	session := createSession(t, wsURL)

	require.NoError(t, session.Start(context.Background()))

	events := drain(t, session)
	require.Len(t, events, 1)
	assert.Equal(t, flow.EventFailure, events[0].Kind)
	assert.Equal(t, "ambiguous_outcome", events[0].Reason)
}

func TestSessionUnknownFrame(t *testing.T) {
	wsURL, _ := newStreamServer(t, `{"state":"levitating"}`)
	session := createSession(t, wsURL)

	require.NoError(t, session.Start(context.Background()))

	events := drain(t, session)
	require.Len(t, events, 1)
	assert.Equal(t, flow.EventError, events[0].Kind)
	require.Error(t, events[0].Cause)
}

func TestSessionStopSuppressesReadError(t *testing.T) {
	wsURL, starts := newStreamServer(t)
	session := createSession(t, wsURL)

	require.NoError(t, session.Start(context.Background()))
	<-starts

	session.Stop()

	// A stop-initiated disconnect is not a session error; the stream
	// just ends.
	events := drain(t, session)
	assert.Empty(t, events)
}

func TestSessionStartIdempotent(t *testing.T) {
	wsURL, starts := newStreamServer(t, `{"state":"success"}`)
	session := createSession(t, wsURL)

	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Start(context.Background()))

	<-starts
	select {
	case extra := <-starts:
		t.Fatalf("second start frame sent: %v", extra)
	case <-time.After(100 * time.Millisecond):
	}

	drain(t, session)
}
