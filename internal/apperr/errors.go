// Package apperr holds the error taxonomy shared by the gateway, stores and providers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSingleRow is returned when a single-row query matched zero or several rows.
	ErrNoSingleRow = errors.New("expected exactly one row")
	// ErrUnauthorized means no authenticated session is available.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput reports malformed request parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned by sign-in for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrAlreadyExists is returned by sign-up for a registered email.
	ErrAlreadyExists = errors.New("already exists")
)

// RemoteError is any failure surfaced by the backend gateway. Message carries
// the backend's own message verbatim.
type RemoteError struct {
	Op      string
	Table   string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Table, e.Message)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Remote wraps err into a RemoteError, using err's text as the message.
// A nil err yields nil.
func Remote(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Table: table, Message: err.Error(), Err: err}
}

// ProviderError is a failure reported by a third-party HTTP provider, either a
// non-zero status code in its envelope or a transport failure.
type ProviderError struct {
	Provider string
	Code     int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: code %d: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Message returns the human-readable part of err: the backend or provider
// message when err carries one, otherwise fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
