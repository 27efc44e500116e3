// Package translate wraps a backend translation provider with bounded
// timeouts, retry with backoff and jitter, a circuit breaker, and error
// normalization onto the relay failure taxonomy.
package translate

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"lingorelay/pkg/relay"

	"github.com/sony/gobreaker"
)

const (
	defaultAttemptTimeout = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultBackoffBase    = 500 * time.Millisecond
	maxBackoffInterval    = 15 * time.Second

	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

// Option mutates client configuration.
type Option func(*Client)

// WithAttemptTimeout bounds each remote attempt.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		if timeout > 0 {
			client.attemptTimeout = timeout
		}
	}
}

// WithMaxAttempts bounds retries for transient failures.
func WithMaxAttempts(attempts int) Option {
	return func(client *Client) {
		if attempts > 0 {
			client.maxAttempts = attempts
		}
	}
}

// WithBackoffBase sets the first retry backoff interval.
func WithBackoffBase(base time.Duration) Option {
	return func(client *Client) {
		if base > 0 {
			client.backoffBase = base
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithSleep injects the retry wait function for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(client *Client) {
		if sleep != nil {
			client.sleep = sleep
		}
	}
}

// WithJitter injects the backoff jitter source for tests.
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(client *Client) {
		if jitter != nil {
			client.jitter = jitter
		}
	}
}

// Client is the translation client adapter. It owns retry policy, so backend
// SDK retries should be disabled at the composition root.
type Client struct {
	backend relay.Translator
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	attemptTimeout time.Duration
	maxAttempts    int
	backoffBase    time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	jitter         func(max time.Duration) time.Duration
}

// NewClient wraps one backend provider.
func NewClient(backend relay.Translator, options ...Option) (*Client, error) {
	if backend == nil {
		return nil, fmt.Errorf("new translate client: nil backend")
	}

	client := &Client{
		backend:        backend,
		logger:         slog.Default(),
		attemptTimeout: defaultAttemptTimeout,
		maxAttempts:    defaultMaxAttempts,
		backoffBase:    defaultBackoffBase,
		sleep:          sleepWithContext,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
	for _, option := range options {
		option(client)
	}

	client.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "translation-backend",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
	})

	return client, nil
}

// Translate performs one translation with bounded retries.
//
// Requests between effectively identical languages return the input text
// without a remote call.
func (c *Client) Translate(ctx context.Context, in relay.TranslateInput) (relay.TranslatedPayload, error) {
	if ctx == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("translate: nil context")
	}
	if err := in.Validate(); err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("%w: %w", relay.ErrTranslationPermanent, err)
	}
	if !relay.IsSupportedLanguage(in.TargetLang) {
		return relay.TranslatedPayload{}, fmt.Errorf(
			"%w: unsupported target language %q",
			relay.ErrTranslationPermanent,
			in.TargetLang,
		)
	}

	if relay.SameLanguage(in.SourceLang, in.TargetLang) {
		return relay.TranslatedPayload{
			Text:               in.Text,
			DetectedSourceLang: in.SourceLang,
		}, nil
	}

	effective := in
	effective.TargetLang = relay.EffectiveTargetLang(in.TargetLang)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		payload, err := c.attempt(ctx, effective)
		if err == nil {
			return payload, nil
		}

		lastErr = err
		if !retryable(err) {
			return relay.TranslatedPayload{}, err
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := c.nextBackoff(attempt)
		c.logger.WarnContext(ctx, "transient translation failure, backing off",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if waitErr := c.sleep(ctx, delay); waitErr != nil {
			return relay.TranslatedPayload{}, fmt.Errorf(
				"translate retry wait after attempt %d: %w",
				attempt,
				waitErr,
			)
		}
	}

	return relay.TranslatedPayload{}, fmt.Errorf(
		"translate exhausted %d attempts: %w",
		c.maxAttempts,
		lastErr,
	)
}

// attempt runs one bounded remote call through the circuit breaker.
func (c *Client) attempt(ctx context.Context, in relay.TranslateInput) (relay.TranslatedPayload, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (any, error) {
		return c.backend.Translate(attemptCtx, in)
	})
	if err != nil {
		return relay.TranslatedPayload{}, normalizeError(err)
	}

	payload, ok := result.(relay.TranslatedPayload)
	if !ok {
		return relay.TranslatedPayload{}, fmt.Errorf(
			"%w: unexpected breaker result type %T",
			relay.ErrTranslationTransient,
			result,
		)
	}

	return payload, nil
}

// nextBackoff doubles the base interval per attempt and adds jitter up to the
// computed interval, clamped to the maximum.
func (c *Client) nextBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	interval := c.backoffBase
	for i := 1; i < attempt; i++ {
		interval *= 2
		if interval >= maxBackoffInterval {
			interval = maxBackoffInterval
			break
		}
	}

	jittered := interval + c.jitter(interval)
	if jittered > maxBackoffInterval {
		jittered = maxBackoffInterval
	}

	return jittered
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep with context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ relay.Translator = (*Client)(nil)
