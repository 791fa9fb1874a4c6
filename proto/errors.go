package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is the wire error shape shared by the broker and the SDK. Values
// below form a closed taxonomy; wrap causes with WithCausef, match with
// errors.Is.
type Error struct {
	Name       string `json:"error"`
	Code       int    `json:"code"`
	Message    string `json:"msg"`
	Cause      string `json:"cause,omitempty"`
	HTTPStatus int    `json:"status"`

	cause error
}

var _ error = Error{}

func (e Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s %d: %s: %v", e.Name, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s %d: %s", e.Name, e.Code, e.Message)
}

func (e Error) Is(target error) bool {
	var rpcErr Error
	if errors.As(target, &rpcErr) {
		return e.Code == rpcErr.Code
	}
	return false
}

func (e Error) Unwrap() error {
	return e.cause
}

// WithCausef returns a copy of the error annotated with a cause. %w is
// supported.
func (e Error) WithCausef(format string, args ...interface{}) Error {
	err := fmt.Errorf(format, args...)
	e.cause = err
	e.Cause = err.Error()
	return e
}

// WithMessage returns a copy of the error with the user-visible message
// replaced. Used to pass provider-supplied messages through verbatim.
func (e Error) WithMessage(message string) Error {
	e.Message = message
	return e
}

var (
	ErrUnknown            = Error{Code: 1000, Name: "Unknown", Message: "unknown error", HTTPStatus: http.StatusInternalServerError}
	ErrInvalidArgument    = Error{Code: 1001, Name: "InvalidArgument", Message: "invalid argument", HTTPStatus: http.StatusBadRequest}
	ErrSigningUnavailable = Error{Code: 1002, Name: "SigningUnavailable", Message: "request signing unavailable", HTTPStatus: http.StatusServiceUnavailable}
	ErrSigningRejected    = Error{Code: 1003, Name: "SigningRejected", Message: "request signing rejected", HTTPStatus: http.StatusInternalServerError}
	ErrGatewayError       = Error{Code: 1004, Name: "GatewayError", Message: "verification gateway error", HTTPStatus: http.StatusBadGateway}
	ErrValidationDenied   = Error{Code: 1005, Name: "ValidationDenied", Message: "verification validation failed", HTTPStatus: http.StatusForbidden}
	ErrConsentDeclined    = Error{Code: 1100, Name: "ConsentDeclined", Message: "privacy policy declined", HTTPStatus: http.StatusForbidden}
	ErrSessionCanceled    = Error{Code: 1101, Name: "SessionCanceled", Message: "verification session canceled", HTTPStatus: http.StatusBadRequest}
	ErrSessionError       = Error{Code: 1102, Name: "SessionError", Message: "verification session error", HTTPStatus: http.StatusBadGateway}
	ErrSessionFailure     = Error{Code: 1103, Name: "SessionFailure", Message: "verification not passed", HTTPStatus: http.StatusForbidden}
)

// RespondWithError writes err as the wire error shape. Non-taxonomy
// errors are folded into ErrUnknown without leaking internals.
func RespondWithError(w http.ResponseWriter, err error) {
	var rpcErr Error
	if !errors.As(err, &rpcErr) {
		rpcErr = ErrUnknown.WithCausef("%v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rpcErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(rpcErr)
}

// ErrorFromResponse reconstructs a typed Error from a broker response
// body, so SDK callers can match with errors.Is across the wire.
func ErrorFromResponse(statusCode int, body []byte) error {
	var rpcErr Error
	if err := json.Unmarshal(body, &rpcErr); err == nil && rpcErr.Code != 0 {
		if rpcErr.Cause != "" {
			rpcErr.cause = errors.New(rpcErr.Cause)
		}
		return rpcErr
	}
	return ErrUnknown.WithCausef("unexpected response status %d: %s", statusCode, body)
}
