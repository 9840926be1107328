package proxy

import (
	"errors"
	"fmt"
)

// Kind classifies a forwarding failure. Every error leaving the forwarder
// carries exactly one Kind; downstream code branches on it instead of
// re-inspecting transport details.
type Kind string

const (
	// KindNotAuthenticated covers missing tokens and upstream 401/403.
	KindNotAuthenticated Kind = "not-authenticated"
	// KindTimeout means the gateway did not answer within the per-call budget.
	KindTimeout Kind = "upstream-timeout"
	// KindUnreachable means the connection itself failed.
	KindUnreachable Kind = "upstream-unreachable"
	// KindUpstream is a non-2xx gateway response other than 401/403.
	KindUpstream Kind = "upstream-error"
	// KindMalformedResponse means the gateway returned a 2xx with a body
	// that is not valid JSON.
	KindMalformedResponse Kind = "malformed-response"
)

// Error is a normalized forwarding failure.
type Error struct {
	Kind    Kind
	Message string
	// Status is the upstream HTTP status for KindUpstream, zero otherwise.
	Status int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// NotAuthenticated reports whether err is a not-authenticated forwarding
// failure.
func NotAuthenticated(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindNotAuthenticated
}

// KindOf returns the Kind of a forwarding error, or KindUnreachable for
// errors that did not originate in the forwarder.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnreachable
}

func errNotAuthenticated() *Error {
	return &Error{Kind: KindNotAuthenticated, Message: "Not authenticated"}
}

func errTimeout() *Error {
	return &Error{Kind: KindTimeout, Message: "gateway not responding"}
}

func errUnreachable(err error) *Error {
	return &Error{Kind: KindUnreachable, Message: fmt.Sprintf("gateway unreachable: %v", err)}
}

func errUpstream(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", status)
	}
	return &Error{Kind: KindUpstream, Message: message, Status: status}
}

func errMalformed() *Error {
	return &Error{Kind: KindMalformedResponse, Message: "gateway returned a malformed response"}
}
