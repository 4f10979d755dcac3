package types

import (
	"errors"
	"fmt"
)

// ErrAuthorizationExpired marks a 401 on an authenticated call. The session has
// already been cleared and the user redirected by the time callers see it.
var ErrAuthorizationExpired = errors.New("authorization expired")

// ErrNotAuthenticated is returned by operations that need a logged-in user.
var ErrNotAuthenticated = errors.New("not logged in")

// ErrSubmissionInProgress is returned when an exercise is submitted while a
// previous submission of the same session is still pending.
var ErrSubmissionInProgress = errors.New("submission already in progress")

// ErrSuperseded is returned when a validation response arrives after the user
// navigated to another exercise. The response was discarded.
var ErrSuperseded = errors.New("response superseded")

// RequestFailure is any backend or transport failure. Status is 0 when no
// response was received.
type RequestFailure struct {
	Status  int
	Message string
}

func (e *RequestFailure) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %s", e.Message)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// AuthenticationError is returned when the backend rejects login credentials.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Message
}

// ValidationError is returned when the backend rejects input, e.g. a taken username.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	return "rejected: " + e.Message
}

// NotFoundError reports a step or exercise absent from the current plan.
type NotFoundError struct {
	Kind string // "step", "exercise", "plan"
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var rf *RequestFailure
	if errors.As(err, &rf) {
		return rf.Status
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Status
	}
	return 0
}
