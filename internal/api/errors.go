package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a request failure into the categories the rest of the
// application reacts to.
type Kind int

const (
	// Unauthenticated means the credential was missing or rejected.
	Unauthenticated Kind = iota + 1
	// NotFound means the remote resource does not exist.
	NotFound
	// Validation means the server rejected the payload with field errors.
	Validation
	// ServerError covers any other non-2xx response.
	ServerError
	// NetworkError means no response was received at all.
	NetworkError
)

// String returns a short label for the kind.
func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case NotFound:
		return "not found"
	case Validation:
		return "validation"
	case ServerError:
		return "server error"
	case NetworkError:
		return "network error"
	default:
		return "unknown"
	}
}

// Error is the classified outcome of a failed request.
type Error struct {
	Kind    Kind
	Status  int                 // HTTP status, zero for network failures
	Message string              // human-readable summary
	Fields  map[string][]string // server field errors, verbatim, Validation only
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
	return e.Kind.String()
}

// Unwrap exposes the underlying transport error, when any.
func (e *Error) Unwrap() error { return e.cause }

// FieldSummary flattens validation field errors into one line per field,
// sorted by field name for stable display.
func (e *Error) FieldSummary() []string {
	if len(e.Fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], "; ")))
	}
	return lines
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsUnauthenticated reports whether err means the credential was missing or
// rejected. Callers treat this as a signal to force logout.
func IsUnauthenticated(err error) bool { return IsKind(err, Unauthenticated) }

// IsNetwork reports whether err means no response was received.
func IsNetwork(err error) bool { return IsKind(err, NetworkError) }

func unauthenticatedError(message string) *Error {
	return &Error{Kind: Unauthenticated, Message: message}
}

func networkError(err error) *Error {
	return &Error{Kind: NetworkError, Message: "server unreachable", cause: err}
}
