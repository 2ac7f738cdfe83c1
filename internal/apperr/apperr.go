// Package apperr defines the error taxonomy shared by the HTTP handlers and
// its mapping onto status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the purpose of reporting it to a client.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindUpstream
	KindConfiguration
	KindDataIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	case KindConfiguration:
		return "configuration"
	case KindDataIntegrity:
		return "data_integrity"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Code is a stable machine-readable name,
// Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Status is the downstream status for KindUpstream, zero otherwise.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind and Code, so sentinel values
// still match after being re-wrapped with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code && t.Code != ""
}

// New creates a classified error.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a cause to a copy of e.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func Validation(message string) *Error {
	return New(KindValidation, "validation", message)
}

func Configuration(message string) *Error {
	return New(KindConfiguration, "configuration", message)
}

func DataIntegrity(message string, err error) *Error {
	return &Error{Kind: KindDataIntegrity, Code: "data_integrity", Message: message, Err: err}
}

// Upstream records a failed call to an external collaborator.
func Upstream(status int, message string) *Error {
	return &Error{Kind: KindUpstream, Code: "upstream", Message: message, Status: status}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps err onto a response status.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		if e.Status >= 400 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-safe message for err, or fallback for
// unclassified errors.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnknown && e.Kind != KindDataIntegrity {
		return e.Message
	}
	return fallback
}
