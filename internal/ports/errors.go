package ports

import (
	"errors"
	"fmt"
)

// BackendErrorKind is the failure taxonomy surfaced by BackendClient.
type BackendErrorKind int

const (
	// KindUnknown is the zero kind for errors that did not come from the
	// backend client.
	KindUnknown BackendErrorKind = iota
	// KindNetwork: the request itself failed. Message is normalized to a
	// user-facing connection string. Never clears an existing session.
	KindNetwork
	// KindInvalidCredentials: login-specific 4xx carrying the server
	// message. Shown inline on the login form, no redirect, no expiry.
	KindInvalidCredentials
	// KindSessionExpired: post-login 401. Always clears state and
	// redirects with a message.
	KindSessionExpired
	// KindServer: any other non-2xx; message taken from body if present,
	// else a generic fallback.
	KindServer
)

// NetworkErrorMessage is the normalized user-facing text for KindNetwork.
const NetworkErrorMessage = "Unable to reach the server. Please check your connection and try again."

// BackendError is the classified failure type returned by BackendClient
// implementations.
type BackendError struct {
	Kind       BackendErrorKind
	StatusCode int
	// Message is user-facing: the server message when one was supplied,
	// otherwise a normalized fallback.
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend: %s (%v)", e.Message, e.Err)
	}
	return "backend: " + e.Message
}

func (e *BackendError) Unwrap() error { return e.Err }

// KindOf classifies any error. Errors outside the taxonomy report
// KindUnknown.
func KindOf(err error) BackendErrorKind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// MessageOf returns the user-facing message for a classified error, or the
// plain error text for anything else.
func MessageOf(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsSessionExpired reports whether err is a post-login 401 classification.
func IsSessionExpired(err error) bool { return KindOf(err) == KindSessionExpired }

// IsInvalidCredentials reports whether err is a login-specific rejection.
func IsInvalidCredentials(err error) bool { return KindOf(err) == KindInvalidCredentials }

// IsNetworkError reports whether the request itself failed to reach the
// backend.
func IsNetworkError(err error) bool { return KindOf(err) == KindNetwork }
