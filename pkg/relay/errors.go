package relay

import (
	"context"
	"errors"
)

var (
	// ErrInvalidRequest indicates a request that does not satisfy protocol invariants.
	ErrInvalidRequest = errors.New("relay: invalid request")
	// ErrQuotaRejected indicates admission was refused outright (backpressure).
	ErrQuotaRejected = errors.New("relay: quota rejected")
	// ErrBackpressure indicates a quota delay exceeded the caller's patience budget.
	ErrBackpressure = errors.New("relay: backpressure")
	// ErrTranslationTransient indicates a retryable remote failure.
	ErrTranslationTransient = errors.New("relay: transient translation failure")
	// ErrTranslationPermanent indicates a non-retryable remote failure.
	ErrTranslationPermanent = errors.New("relay: permanent translation failure")
	// ErrQuotaExceeded indicates the remote side reported quota exhaustion.
	ErrQuotaExceeded = errors.New("relay: remote quota exceeded")
	// ErrStorageWrite indicates a persistence failure. It never overrides a
	// successful translation outcome.
	ErrStorageWrite = errors.New("relay: storage write failed")
	// ErrTimeout indicates the overall request deadline was exceeded.
	ErrTimeout = errors.New("relay: request deadline exceeded")
)

// FailureKind is the stable error classification surfaced to callers.
type FailureKind string

const (
	// FailureKindNone marks a successful outcome.
	FailureKindNone FailureKind = ""
	// FailureKindInvalidRequest marks requests refused before dispatch.
	FailureKindInvalidRequest FailureKind = "invalid_request"
	// FailureKindQuotaRejected marks governor rejections.
	FailureKindQuotaRejected FailureKind = "quota_rejected"
	// FailureKindBackpressure marks delays that exceeded the wait budget.
	FailureKindBackpressure FailureKind = "backpressure"
	// FailureKindTransient marks exhausted transient retries.
	FailureKindTransient FailureKind = "transient"
	// FailureKindPermanent marks permanent remote failures.
	FailureKindPermanent FailureKind = "permanent"
	// FailureKindQuotaExceeded marks remote-side quota exhaustion.
	FailureKindQuotaExceeded FailureKind = "quota_exceeded"
	// FailureKindTimeout marks exceeded request deadlines.
	FailureKindTimeout FailureKind = "timeout"
)

// ClassifyFailure maps an error chain to its stable failure kind.
//
// Every terminal dispatcher error resolves to exactly one kind; callers never
// observe an unclassified failure.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureKindNone
	case errors.Is(err, ErrInvalidRequest):
		return FailureKindInvalidRequest
	case errors.Is(err, ErrQuotaRejected):
		return FailureKindQuotaRejected
	case errors.Is(err, ErrBackpressure):
		return FailureKindBackpressure
	case errors.Is(err, ErrQuotaExceeded):
		return FailureKindQuotaExceeded
	case errors.Is(err, ErrTranslationPermanent):
		return FailureKindPermanent
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureKindTimeout
	default:
		return FailureKindTransient
	}
}
