package core

import (
	"errors"
	"fmt"
)

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// Usagef builds a UsageError from a format string.
func Usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a missing or invalid backend setting.
type ConfigurationError struct {
	Backend Backend
	Key     string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s configuration: %s", e.Backend, e.Key)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + " is not set"
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TransportError reports a request that never produced an HTTP response.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx vendor response. Message is surfaced verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

// NotFoundError reports a remote path or version that does not exist.
type NotFoundError struct {
	Path    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("version %q of %s not found", e.Version, e.Path)
	}
	return fmt.Sprintf("%s not found", e.Path)
}

// UnsupportedError reports an operation the selected backend cannot perform.
type UnsupportedError struct {
	Backend Backend
	Op      string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by %s", e.Op, e.Backend)
}

// IsStatus reports whether err carries an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
