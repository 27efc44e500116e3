package relay

import (
	"context"
	"time"
)

// AttemptRecord is the durable row mirroring one terminal translation attempt.
// Records are created once and never mutated after insert.
type AttemptRecord struct {
	// ID is a stable identifier for this record.
	ID string
	// RequestID links the record to its originating request.
	RequestID string
	// RequesterID is the opaque requester identity.
	RequesterID string
	// SourceTextHash is the hex SHA-256 digest of the source text.
	SourceTextHash string
	// SourceChars is the source text length in characters.
	SourceChars int
	// SourceLang is the requested source language, empty when auto-detected.
	SourceLang string
	// TargetLang is the requested target language.
	TargetLang string
	// TranslatedText is the rendered translation for successful attempts.
	TranslatedText string
	// DetectedSourceLang is the backend-reported source language.
	DetectedSourceLang string
	// Latency is the total request resolution time.
	Latency time.Duration
	// CacheHit reports whether the attempt was served from cache.
	CacheHit bool
	// Success reports whether the attempt reached the Completed state.
	Success bool
	// FailureKind is the stable failure classification for failed attempts.
	FailureKind FailureKind
	// ErrorDetail carries optional failure context.
	ErrorDetail string
	// CreatedAt records when the attempt terminated.
	CreatedAt time.Time
}

// Recorder appends one durable record per terminal translation attempt.
//
// Every admitted request yields exactly one record, success or failure, so the
// audit trail has no gaps. Record must not block indefinitely; implementations
// apply their own bounded write timeout and retry policy.
type Recorder interface {
	Record(ctx context.Context, record AttemptRecord) error
}
