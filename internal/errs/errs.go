// Package errs defines the stable error taxonomy shared by every beach
// component, so callers can branch on Kind without depending on a
// specific component's package.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies a stable error category across releases.
type Kind string

const (
	KindOutOfBounds          Kind = "out_of_bounds"
	KindWriteConflict        Kind = "write_conflict"
	KindSaturated            Kind = "saturated"
	KindUnknownSubscription  Kind = "unknown_subscription"
	KindCursorInvalidated    Kind = "cursor_invalidated"
	KindMessageTooLarge      Kind = "message_too_large"
	KindChunkTooLarge        Kind = "chunk_too_large"
	KindMalformed            Kind = "malformed"
	KindHandshake            Kind = "handshake"
	KindIncomplete           Kind = "incomplete"
	KindCipher               Kind = "cipher"
	KindReplay               Kind = "replay"
	KindUnsupportedFrame     Kind = "unsupported_frame"
	KindInvalidFrame         Kind = "invalid_frame"
	KindInvalidConfig        Kind = "invalid_config"
	KindNetwork              Kind = "network"
	KindHTTPStatus           Kind = "http_status"
	KindServer               Kind = "server"
	KindAuthenticationFailed Kind = "authentication_failed"
	KindInvalidResponse      Kind = "invalid_response"
	KindInvalidJoinCode      Kind = "invalid_join_code"
	KindTimeout              Kind = "timeout"
	KindChannelClosed        Kind = "channel_closed"
	KindSetup                Kind = "setup"
	KindActionQueueFull      Kind = "action_queue_full"
)

// Error wraps an underlying cause with a stable Kind and optional
// structured detail (e.g. the offending byte count).
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Detail != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a bare Error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap attaches a Kind to an underlying error.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// Is reports whether err carries the given Kind, walking the wrap chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err isn't a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
