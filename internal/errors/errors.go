package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"
)

// Code classifies failures surfaced to the run driver.
type Code string

const (
	CodeUnknown    Code = "UNKNOWN"
	CodeConfig     Code = "CONFIG"
	CodeAuth       Code = "AUTH"
	CodeNotFound   Code = "NOT_FOUND"
	CodeTransport  Code = "TRANSPORT"
	CodeRemote     Code = "REMOTE"
	CodeEmptyQueue Code = "EMPTY_QUEUE"
	CodeGeneration Code = "GENERATION"
)

var defaultMessages = map[Code]string{
	CodeUnknown:    "unknown error",
	CodeConfig:     "invalid configuration",
	CodeAuth:       "credentials rejected",
	CodeNotFound:   "resource not found",
	CodeTransport:  "transport failure",
	CodeRemote:     "remote service error",
	CodeEmptyQueue: "nothing to process",
	CodeGeneration: "content generation failed",
}

// Sentinels for errors.Is checks; matching is by code only.
var (
	ErrConfig     = New(CodeConfig, "")
	ErrAuth       = New(CodeAuth, "")
	ErrNotFound   = New(CodeNotFound, "")
	ErrTransport  = New(CodeTransport, "")
	ErrEmptyQueue = New(CodeEmptyQueue, "")
	ErrGeneration = New(CodeGeneration, "")
)

// Error is the typed error returned by every component.
type Error struct {
	code    Code
	message string
	cause   error
}

// New creates an error with the given code. An empty message falls back to the code default.
func New(code Code, message string) *Error {
	if message == "" {
		message = defaultMessages[code]
	}
	return &Error{code: code, message: message}
}

// Newf is New with fmt formatting.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, cause error, message string) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the message without code or cause.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// RemoteError is returned when a service answers with a non-2xx status.
// Body holds the response body verbatim.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// Is lets errors.Is(err, ErrRemote) match any RemoteError.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// ErrRemote matches any *RemoteError in a chain.
var ErrRemote = stdErrors.New("remote service error")

// From extracts the first *Error in the chain.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost *Error, CodeRemote for a bare RemoteError,
// and CodeUnknown otherwise.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	if _, ok := RemoteOf(err); ok {
		return CodeRemote
	}
	return CodeUnknown
}

// RemoteOf extracts the *RemoteError in the chain, if any.
func RemoteOf(err error) (*RemoteError, bool) {
	if err == nil {
		return nil, false
	}
	var target *RemoteError
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}
