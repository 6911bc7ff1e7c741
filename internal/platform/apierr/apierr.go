package apierr

import (
	"errors"
	"fmt"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two coded errors by Code so callers can test with errors.Is
// against the package sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e != nil && t.Code != "" && e.Code == t.Code
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Taxonomy codes for the document mutation core.
const (
	CodeAccessDenied        = "ACCESS_DENIED"
	CodeRetrievalFailed     = "RETRIEVAL_FAILED"
	CodeChangeNotFound      = "CHANGE_NOT_FOUND"
	CodeMalformedMarkers    = "MALFORMED_MARKERS"
	CodeProviderTimeout     = "PROVIDER_TIMEOUT"
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	CodeSessionBusy         = "SESSION_BUSY"
)

// Sentinels for errors.Is checks.
var (
	ErrAccessDenied        = &Error{Status: 403, Code: CodeAccessDenied}
	ErrRetrievalFailed     = &Error{Status: 502, Code: CodeRetrievalFailed}
	ErrChangeNotFound      = &Error{Status: 404, Code: CodeChangeNotFound}
	ErrMalformedMarkers    = &Error{Status: 422, Code: CodeMalformedMarkers}
	ErrProviderTimeout     = &Error{Status: 504, Code: CodeProviderTimeout}
	ErrProviderUnavailable = &Error{Status: 502, Code: CodeProviderUnavailable}
	ErrSessionBusy         = &Error{Status: 409, Code: CodeSessionBusy}
)

func AccessDenied(err error) *Error     { return New(403, CodeAccessDenied, err) }
func RetrievalFailed(err error) *Error  { return New(502, CodeRetrievalFailed, err) }
func ChangeNotFound(err error) *Error   { return New(404, CodeChangeNotFound, err) }
func MalformedMarkers(err error) *Error { return New(422, CodeMalformedMarkers, err) }
func ProviderTimeout(err error) *Error  { return New(504, CodeProviderTimeout, err) }
func ProviderUnavailable(err error) *Error {
	return New(502, CodeProviderUnavailable, err)
}
func SessionBusy(err error) *Error { return New(409, CodeSessionBusy, err) }
