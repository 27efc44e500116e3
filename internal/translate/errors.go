package translate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"lingorelay/pkg/relay"

	openai "github.com/openai/openai-go/v3"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// normalizeError maps raw backend errors onto the relay failure taxonomy.
//
// Transient failures (timeouts, 5xx-equivalents, connection resets, open
// breaker) wrap ErrTranslationTransient and are retried. Remote quota
// exhaustion wraps ErrQuotaExceeded and is never retried. Everything the
// backend refuses as malformed wraps ErrTranslationPermanent.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}

	// Already classified by a nested adapter layer.
	if errors.Is(err, relay.ErrTranslationTransient) ||
		errors.Is(err, relay.ErrTranslationPermanent) ||
		errors.Is(err, relay.ErrQuotaExceeded) {
		return err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open: %w", relay.ErrTranslationTransient, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: attempt timed out: %w", relay.ErrTranslationTransient, err)
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: connection failure: %w", relay.ErrTranslationTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: network timeout: %w", relay.ErrTranslationTransient, err)
	}

	if status, ok := statusCodeOf(err); ok {
		return classifyStatus(status, err)
	}

	return fmt.Errorf("%w: %w", relay.ErrTranslationTransient, err)
}

// statusCodeOf extracts an HTTP-equivalent status code from known backend
// error types.
func statusCodeOf(err error) (int, bool) {
	var openAIErr *openai.Error
	if errors.As(err, &openAIErr) {
		return openAIErr.StatusCode, true
	}

	var googleErr genai.APIError
	if errors.As(err, &googleErr) {
		return googleErr.Code, true
	}

	return 0, false
}

func classifyStatus(status int, err error) error {
	switch {
	case status == 429:
		return fmt.Errorf("%w: %w", relay.ErrQuotaExceeded, err)
	case status >= 500:
		return fmt.Errorf("%w: backend status %d: %w", relay.ErrTranslationTransient, status, err)
	case status == 408:
		return fmt.Errorf("%w: backend status %d: %w", relay.ErrTranslationTransient, status, err)
	case status >= 400:
		return fmt.Errorf("%w: backend status %d: %w", relay.ErrTranslationPermanent, status, err)
	default:
		return fmt.Errorf("%w: backend status %d: %w", relay.ErrTranslationTransient, status, err)
	}
}

// retryable reports whether one normalized error warrants another attempt.
func retryable(err error) bool {
	return errors.Is(err, relay.ErrTranslationTransient)
}
