package usecase

import (
	"context"
	"errors"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrTransport covers network-level fetch failures. Retryable.
	ErrTransport = errors.New("transport failure")
	// ErrNoData is the upstream "payload legitimately absent" signal.
	ErrNoData = errors.New("upstream has no data")
	// ErrParse covers malformed upstream payloads. Retried once.
	ErrParse = errors.New("malformed payload")
	// ErrPersistence covers store transaction failures. Retryable.
	ErrPersistence = errors.New("persistence failure")
	// ErrPlan means the manager could not enumerate work. Fatal for the pass.
	ErrPlan = errors.New("sync planning failed")
)

const (
	errorKindTransport   = "transport"
	errorKindNoData      = "no_data"
	errorKindParse       = "parse"
	errorKindPersistence = "persistence"
	errorKindCancelled   = "cancelled"
	errorKindUnknown     = "unknown"
)

func classifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoData):
		return errorKindNoData
	case errors.Is(err, ErrParse):
		return errorKindParse
	case errors.Is(err, ErrPersistence):
		return errorKindPersistence
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errorKindCancelled
	case errors.Is(err, ErrTransport):
		return errorKindTransport
	default:
		return errorKindUnknown
	}
}

// retryableKind reports whether a failed outcome of this kind may be
// handed to another retry round. Parse failures get exactly one retry.
func retryableKind(kind string, attempt int) bool {
	switch kind {
	case errorKindNoData, errorKindCancelled:
		return false
	case errorKindParse:
		return attempt == 0
	default:
		return true
	}
}
