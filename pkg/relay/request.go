package relay

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TranslationRequest describes one inbound translation demand derived from a
// chat message. A request is immutable once created.
type TranslationRequest struct {
	// ID is a stable identifier for this request instance.
	ID string
	// SourceText is the untranslated message body.
	SourceText string
	// SourceLang is the optional ISO 639 source language code.
	//
	// Empty means the backend should detect the source language.
	SourceLang string
	// TargetLang is the ISO 639 target language code.
	TargetLang string
	// RequesterID is the opaque chat-platform identity of the requester.
	RequesterID string
	// SubmittedAt records when the request entered the dispatcher.
	SubmittedAt time.Time
}

// NewRequest builds one request with a generated ID and UTC submission time.
func NewRequest(sourceText, sourceLang, targetLang, requesterID string) TranslationRequest {
	return TranslationRequest{
		ID:          uuid.NewString(),
		SourceText:  sourceText,
		SourceLang:  strings.TrimSpace(sourceLang),
		TargetLang:  strings.TrimSpace(targetLang),
		RequesterID: strings.TrimSpace(requesterID),
		SubmittedAt: time.Now().UTC(),
	}
}

// Validate checks the request contract.
func (r TranslationRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.SourceText) == "" {
		return fmt.Errorf("%w: missing source text", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.TargetLang) == "" {
		return fmt.Errorf("%w: missing target language", ErrInvalidRequest)
	}
	if r.SubmittedAt.IsZero() {
		return fmt.Errorf("%w: missing submitted_at", ErrInvalidRequest)
	}

	return nil
}

// TranslationResult is produced exactly once per accepted request.
// Ownership transfers to the caller after return.
type TranslationResult struct {
	// Request is the originating request.
	Request TranslationRequest
	// TranslatedText is the rendered translation.
	TranslatedText string
	// DetectedSourceLang is the source language reported by the backend,
	// or the requested source language when detection was skipped.
	DetectedSourceLang string
	// Latency is the total time spent resolving the request.
	Latency time.Duration
	// CacheHit reports whether the result was served without a remote call.
	CacheHit bool
}

// TranslateInput is the neutral payload sent to one backend provider.
type TranslateInput struct {
	// Text is the content to translate.
	Text string
	// SourceLang optionally pins the source language.
	SourceLang string
	// TargetLang is the required target language.
	TargetLang string
}

// Validate checks one provider input contract.
func (in TranslateInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return fmt.Errorf("validate translate input: missing text")
	}
	if strings.TrimSpace(in.TargetLang) == "" {
		return fmt.Errorf("validate translate input: missing target language")
	}

	return nil
}

// TranslatedPayload is the neutral result returned by one backend provider.
type TranslatedPayload struct {
	// Text is the translated content.
	Text string
	// DetectedSourceLang is the backend-reported source language when available.
	DetectedSourceLang string
}
