package relay

import (
	"context"
	"time"
)

// AdmissionDecision is the governor's verdict for one remote call.
type AdmissionDecision string

const (
	// AdmissionAllowed permits the remote call to proceed now.
	AdmissionAllowed AdmissionDecision = "allowed"
	// AdmissionDelayed asks the caller to retry at Admission.RetryAt.
	AdmissionDelayed AdmissionDecision = "delayed"
	// AdmissionRejected refuses the remote call outright.
	AdmissionRejected AdmissionDecision = "rejected"
)

// Admission carries one governor verdict.
type Admission struct {
	// Decision is the admission verdict.
	Decision AdmissionDecision
	// RetryAt is the earliest re-entry time for delayed admissions.
	RetryAt time.Time
	// Reason carries optional human-readable context for refusals.
	Reason string
}

// Governor tracks the remote-call budget and admits, delays, or rejects
// translation attempts.
//
// Implementations must be concurrency-safe; the governor is the only shared
// mutable quota state and is owned by the composition root.
type Governor interface {
	// Admit requests budget for one remote call translating cost characters.
	Admit(ctx context.Context, cost int) (Admission, error)
	// Release returns one delayed waiter slot after its wait completes or is
	// abandoned. Every AdmissionDelayed verdict must be paired with one
	// Release call.
	Release()
	// Commit records cost characters as spent after a successful remote call.
	Commit(ctx context.Context, cost int) error
}
