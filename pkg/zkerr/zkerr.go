// Package zkerr defines the error taxonomy of the identification protocol.
//
// Every failure surfaced by the core maps to a stable Code plus a human-readable
// message. Errors are matched by code, so a sentinel wrapped with
// fmt.Errorf("...: %w", err) still satisfies errors.Is against the sentinel.
package zkerr

import (
	"errors"
	"net/http"
)

// Code is a stable, enumerable error identifier exposed to callers.
type Code string

const (
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeUnknownUser       Code = "UNKNOWN_USER"
	CodeNoSuchChallenge   Code = "NO_SUCH_CHALLENGE"
	CodeChallengeMismatch Code = "CHALLENGE_MISMATCH"
	CodeInvalidModulus    Code = "INVALID_MODULUS"
	CodeInvalidExponent   Code = "INVALID_EXPONENT"
	CodeNoActiveSession   Code = "NO_ACTIVE_SESSION"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInternal          Code = "INTERNAL"
)

// Error is a protocol error carrying a stable code.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is a *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	// ErrAlreadyRegistered indicates the user ID already has an identity record
	ErrAlreadyRegistered = New(CodeAlreadyRegistered, "user already registered")

	// ErrUnknownUser indicates no identity record exists for the user ID
	ErrUnknownUser = New(CodeUnknownUser, "unknown user")

	// ErrNoSuchChallenge indicates no live challenge exists (absent, expired or consumed)
	ErrNoSuchChallenge = New(CodeNoSuchChallenge, "no such challenge")

	// ErrChallengeMismatch indicates the presented challenge differs from the issued one
	ErrChallengeMismatch = New(CodeChallengeMismatch, "challenge mismatch")

	// ErrInvalidModulus indicates a modulus that is not strictly positive
	ErrInvalidModulus = New(CodeInvalidModulus, "modulus must be positive")

	// ErrInvalidExponent indicates a negative exponent
	ErrInvalidExponent = New(CodeInvalidExponent, "exponent must be non-negative")

	// ErrNoActiveSession indicates the user has no stored session
	ErrNoActiveSession = New(CodeNoActiveSession, "no active session")

	// ErrInvalidInput indicates a malformed request field
	ErrInvalidInput = New(CodeInvalidInput, "invalid input")
)

// Invalid returns an INVALID_INPUT error with a specific message.
func Invalid(message string) *Error {
	return New(CodeInvalidInput, message)
}

// CodeOf extracts the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsChallengeError reports whether err is one of the challenge consumption failures.
func IsChallengeError(err error) bool {
	return errors.Is(err, ErrNoSuchChallenge) || errors.Is(err, ErrChallengeMismatch)
}

// HTTPStatus maps an error to the status code used by the HTTP transport.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeAlreadyRegistered, CodeChallengeMismatch:
		return http.StatusConflict
	case CodeUnknownUser, CodeNoActiveSession:
		return http.StatusNotFound
	case CodeNoSuchChallenge:
		return http.StatusGone
	case CodeInvalidInput, CodeInvalidModulus, CodeInvalidExponent:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
