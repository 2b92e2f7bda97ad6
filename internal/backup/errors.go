package backup

import (
	"errors"
	"net/http"
)

// Kind classifies a backup failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindProjectNotFound
	KindOwnershipMismatch
	KindRemoteNotConnected
	KindRemoteOperationFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindProjectNotFound:
		return "project_not_found"
	case KindOwnershipMismatch:
		return "ownership_mismatch"
	case KindRemoteNotConnected:
		return "remote_not_connected"
	case KindRemoteOperationFailed:
		return "remote_operation_failed"
	default:
		return "unknown"
	}
}

// Error is returned by every Service operation.
// Message is safe to show to clients; Err is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Detail returns the cause text that may be shown to clients. Only remote
// failures expose it; unknown failures stay generic.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	switch e.Kind {
	case KindRemoteNotConnected, KindRemoteOperationFailed:
		return e.Err.Error()
	}
	return ""
}

// HTTPStatus maps an error to the status code an HTTP handler should use.
func HTTPStatus(err error) int {
	var be *Error
	if !errors.As(err, &be) {
		return http.StatusInternalServerError
	}
	switch be.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindProjectNotFound:
		return http.StatusNotFound
	case KindOwnershipMismatch:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}
