package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/codegenius/internal/resilience"
)

// Error codes reported by Code.
const (
	CodeUnknown          = "UNKNOWN"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUpstream         = "UPSTREAM"
	CodeExhaustedRetries = "EXHAUSTED_RETRIES"
	CodeCircuitOpen      = "CIRCUIT_OPEN"
	CodeCanceled         = "CANCELED"
)

// InvalidInputError reports a request that can never succeed, such as blank
// code or an empty transcript. It is never retried.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// UpstreamTransientError wraps a failed model call.
type UpstreamTransientError struct {
	Op  Operation
	Err error
}

func (e *UpstreamTransientError) Error() string {
	return fmt.Sprintf("%s: model call failed: %v", e.Op, e.Err)
}

func (e *UpstreamTransientError) Unwrap() error {
	return e.Err
}

// Code returns the error code for err, or CodeUnknown.
func Code(err error) string {
	var (
		invalid   *InvalidInputError
		exhausted *resilience.ExhaustedRetriesError
		upstream  *UpstreamTransientError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return CodeInvalidInput
	case errors.Is(err, resilience.ErrCircuitOpen):
		return CodeCircuitOpen
	case errors.As(err, &exhausted):
		return CodeExhaustedRetries
	case errors.As(err, &upstream):
		return CodeUpstream
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCanceled
	default:
		return CodeUnknown
	}
}

func invalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
