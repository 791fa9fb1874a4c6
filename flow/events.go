package flow

import "fmt"

// EventKind enumerates the states a live biometric session reports.
// Exactly one terminal kind (Canceled, Error, Failure or Success) occurs
// per session; non-terminal kinds may repeat in any order before it.
type EventKind uint8

const (
	EventConnecting EventKind = iota + 1
	EventConnected
	EventProcessing
	EventCanceled
	EventError
	EventFailure
	EventSuccess
)

var eventKindNames = map[EventKind]string{
	EventConnecting: "connecting",
	EventConnected:  "connected",
	EventProcessing: "processing",
	EventCanceled:   "canceled",
	EventError:      "error",
	EventFailure:    "failure",
	EventSuccess:    "success",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", k)
}

func (k EventKind) Terminal() bool {
	switch k {
	case EventCanceled, EventError, EventFailure, EventSuccess:
		return true
	}
	return false
}

// Event is one state notification from a session.
type Event struct {
	Kind EventKind

	// Processing only.
	Progress float64 // in [0,1]
	Message  string

	// Failure only: provider reason code.
	Reason string

	// Error only.
	Cause error
}

// EventSink observes session events in arrival order, at most once per
// event. Sinks are invocation-scoped; the orchestrator never shares one
// across flows.
type EventSink func(Event)
