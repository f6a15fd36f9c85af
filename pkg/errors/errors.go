package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur during a sync
type ErrorType string

const (
	ErrorTypeAuthExpired ErrorType = "auth_expired"
	ErrorTypeFeedParse   ErrorType = "feed_parse"
	ErrorTypeDownload    ErrorType = "download"
	ErrorTypeFilesystem  ErrorType = "filesystem"
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// ErrSignInRedirect marks a response that landed on the sign-in page
var ErrSignInRedirect = errors.New("redirected to sign-in page")

// Error carries a type so callers can decide which isolation boundary
// an error belongs to
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around an underlying cause
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{Type: t, Message: msg, Err: err}
}

// AuthExpired reports that the session cookie is no longer accepted
func AuthExpired(code int, message string) *Error {
	return &Error{Type: ErrorTypeAuthExpired, Message: message, Code: code}
}

// SignInRedirect reports a request the site bounced to its sign-in page.
// Unlike a bare 401 or 403 this always means the session is gone.
func SignInRedirect(code int) *Error {
	return &Error{Type: ErrorTypeAuthExpired, Message: ErrSignInRedirect.Error(), Code: code, Err: ErrSignInRedirect}
}

// FeedParseMismatch reports remote markup that no longer matches the parser
func FeedParseMismatch(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeFeedParse, Message: fmt.Sprintf(format, args...)}
}

// Download reports a single failed content fetch
func Download(code int, err error, format string, args ...interface{}) *Error {
	e := Wrap(ErrorTypeDownload, err, format, args...)
	e.Code = code
	return e
}

// Filesystem reports a failed directory or file operation
func Filesystem(err error, format string, args ...interface{}) *Error {
	return Wrap(ErrorTypeFilesystem, err, format, args...)
}

// TypeOf returns the type of the first *Error in the chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsFatal reports whether err must abort the whole run rather than one channel
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch TypeOf(err) {
	case ErrorTypeAuthExpired, ErrorTypeFilesystem:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}
