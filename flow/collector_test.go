package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/faceproof/faceproof/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSession struct {
	events   chan Event
	onStart  func()
	startErr error
}

func newStubSession(buf int) *stubSession {
	return &stubSession{events: make(chan Event, buf)}
}

func (s *stubSession) Events() <-chan Event { return s.events }

func (s *stubSession) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	if s.onStart != nil {
		s.onStart()
	}
	return nil
}

func (s *stubSession) Stop() {}

func TestCollectorSubscribesBeforeStart(t *testing.T) {
	// The session emits immediately on Start. With subscription
	// happening first, nothing is lost.
	session := newStubSession(4)
	session.onStart = func() {
		session.events <- Event{Kind: EventConnecting}
		session.events <- Event{Kind: EventSuccess}
	}

	var seen []EventKind
	coll, err := newCollector(context.Background(), session, func(ev Event) {
		seen = append(seen, ev.Kind)
	})
	require.NoError(t, err)

	terminal, err := coll.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventSuccess, terminal.Kind)
	assert.Equal(t, []EventKind{EventConnecting, EventSuccess}, seen)
}

func TestCollectorStartError(t *testing.T) {
	session := newStubSession(0)
	session.startErr = errors.New("camera unavailable")

	_, err := newCollector(context.Background(), session, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, proto.ErrSessionError))
}

func TestCollectorFirstTerminalWins(t *testing.T) {
	session := newStubSession(4)
	session.onStart = func() {
		session.events <- Event{Kind: EventFailure, Reason: "first"}
		session.events <- Event{Kind: EventSuccess}
	}

	var seen []EventKind
	coll, err := newCollector(context.Background(), session, func(ev Event) {
		seen = append(seen, ev.Kind)
	})
	require.NoError(t, err)

	terminal, err := coll.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventFailure, terminal.Kind)
	assert.Equal(t, "first", terminal.Reason)

	// The stream is exhausted at the first terminal; the later success
	// is never delivered.
	assert.Equal(t, []EventKind{EventFailure}, seen)
}

func TestCollectorWaitCancellation(t *testing.T) {
	session := newStubSession(1)
	session.onStart = func() {
		session.events <- Event{Kind: EventConnecting}
	}

	ctx, cancel := context.WithCancel(context.Background())
	coll, err := newCollector(ctx, session, nil)
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = coll.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCollectorClosedStream(t *testing.T) {
	// A session whose stream closes without a terminal event leaves the
	// collector waiting; only cancellation unblocks it.
	session := newStubSession(1)
	session.onStart = func() {
		close(session.events)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	coll, err := newCollector(ctx, session, nil)
	require.NoError(t, err)

	_, err = coll.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
