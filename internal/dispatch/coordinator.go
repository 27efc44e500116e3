// Package dispatch owns the per-request translation pipeline: cache lookup,
// quota admission, the remote call, and durable audit persistence.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"lingorelay/pkg/relay"
)

const (
	defaultRequestDeadline = 30 * time.Second
	defaultMaxQuotaWait    = 10 * time.Second
)

// Option mutates Coordinator construction parameters.
type Option func(*Coordinator)

// WithRequestDeadline overrides the overall per-request deadline.
func WithRequestDeadline(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.requestDeadline = d
		}
	}
}

// WithMaxQuotaWait overrides the longest admission delay honored before the
// request fails with backpressure.
func WithMaxQuotaWait(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.maxQuotaWait = d
		}
	}
}

// WithLogger overrides the coordinator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics overrides the metrics sink.
func WithMetrics(sink relay.MetricsSink) Option {
	return func(c *Coordinator) {
		if sink != nil {
			c.metrics = sink
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithSleep overrides the admission wait primitive for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// Coordinator routes one translation request through the dispatch state
// machine and guarantees exactly one terminal outcome per request.
//
// The coordinator is stateless between requests; all shared mutable state
// lives behind the injected collaborators, so one instance serves concurrent
// requests.
type Coordinator struct {
	cache      relay.PairCache
	governor   relay.Governor
	translator relay.Translator
	recorder   relay.Recorder

	logger  *slog.Logger
	metrics relay.MetricsSink

	requestDeadline time.Duration
	maxQuotaWait    time.Duration

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCoordinator builds one dispatch coordinator over its collaborators.
func NewCoordinator(
	cache relay.PairCache,
	governor relay.Governor,
	translator relay.Translator,
	recorder relay.Recorder,
	opts ...Option,
) (*Coordinator, error) {
	if cache == nil {
		return nil, fmt.Errorf("new coordinator: nil cache")
	}
	if governor == nil {
		return nil, fmt.Errorf("new coordinator: nil governor")
	}
	if translator == nil {
		return nil, fmt.Errorf("new coordinator: nil translator")
	}
	if recorder == nil {
		return nil, fmt.Errorf("new coordinator: nil recorder")
	}

	c := &Coordinator{
		cache:           cache,
		governor:        governor,
		translator:      translator,
		recorder:        recorder,
		logger:          slog.Default(),
		metrics:         relay.NopMetrics{},
		requestDeadline: defaultRequestDeadline,
		maxQuotaWait:    defaultMaxQuotaWait,
		clock:           time.Now,
		sleep:           sleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Dispatch resolves one translation request to a terminal outcome.
//
// Exactly one durable AttemptRecord is written per terminal state, success or
// failure, except for requests refused by validation before entering the
// pipeline. Cancellation is honored at the cache, quota, and pre-call
// suspension points; once the remote call has been issued the paid work is
// kept, so persistence and cache insertion complete even when the caller has
// gone away.
func (c *Coordinator) Dispatch(ctx context.Context, request relay.TranslationRequest) (relay.TranslationResult, error) {
	if err := request.Validate(); err != nil {
		c.metrics.IncCounter(relay.MetricRequestsFailed, 1)
		return relay.TranslationResult{}, err
	}

	started := c.clock()
	deadline := started.Add(c.requestDeadline)

	// The request context bounds the cancellable front half of the pipeline.
	reqCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	c.logger.DebugContext(reqCtx, "dispatching request",
		"stage", StageReceived,
		"request_id", request.ID,
		"target_lang", request.TargetLang,
	)

	key := relay.NewPairKey(request.SourceText, request.SourceLang, request.TargetLang)
	text, hit := c.cache.Lookup(key)
	c.logger.DebugContext(reqCtx, "cache lookup",
		"stage", StageCacheCheck,
		"request_id", request.ID,
		"hit", hit,
	)
	if hit {
		c.metrics.IncCounter(relay.MetricCacheHits, 1)
		result := relay.TranslationResult{
			Request:        request,
			TranslatedText: text,
			Latency:        c.clock().Sub(started),
			CacheHit:       true,
		}
		c.persist(ctx, c.buildRecord(request, result, nil))
		c.metrics.IncCounter(relay.MetricRequestsCompleted, 1)

		return result, nil
	}
	c.metrics.IncCounter(relay.MetricCacheMisses, 1)

	cost := utf8.RuneCountInString(request.SourceText)
	if err := c.awaitAdmission(reqCtx, request, cost, deadline); err != nil {
		return relay.TranslationResult{}, c.fail(ctx, request, started, err)
	}

	// The remote call and everything after it run detached from caller
	// cancellation. The overall deadline still applies so an abandoned call
	// cannot outlive the request budget.
	callCtx, cancelCall := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancelCall()

	c.logger.DebugContext(callCtx, "calling translation backend",
		"stage", StageCalling,
		"request_id", request.ID,
		"source_chars", cost,
	)

	callStarted := c.clock()
	c.metrics.IncCounter(relay.MetricRemoteCalls, 1)
	payload, err := c.translator.Translate(callCtx, relay.TranslateInput{
		Text:       request.SourceText,
		SourceLang: request.SourceLang,
		TargetLang: request.TargetLang,
	})
	c.metrics.ObserveDuration(relay.MetricRemoteLatency, c.clock().Sub(callStarted))
	if err != nil {
		c.metrics.IncCounter(relay.MetricRemoteErrors, 1)
		return relay.TranslationResult{}, c.fail(ctx, request, started, err)
	}

	if err := c.governor.Commit(callCtx, cost); err != nil {
		c.logger.WarnContext(callCtx, "failed to commit quota spend",
			"request_id", request.ID,
			"error", err,
		)
	}

	result := relay.TranslationResult{
		Request:            request,
		TranslatedText:     payload.Text,
		DetectedSourceLang: payload.DetectedSourceLang,
		Latency:            c.clock().Sub(started),
	}

	c.cache.Insert(key, payload.Text)
	c.persist(ctx, c.buildRecord(request, result, nil))
	c.metrics.IncCounter(relay.MetricRequestsCompleted, 1)
	c.logger.DebugContext(callCtx, "request completed",
		"stage", StageCompleted,
		"request_id", request.ID,
		"latency", result.Latency,
	)

	if ctx.Err() != nil {
		// The caller gave up mid-call. The translation is cached and audited
		// above; only the response is suppressed.
		return relay.TranslationResult{}, fmt.Errorf("dispatch request %s: %w", request.ID, ctx.Err())
	}

	return result, nil
}

// awaitAdmission loops on the governor until the request is admitted, the
// wait budget is exhausted, or the verdict is a refusal.
func (c *Coordinator) awaitAdmission(ctx context.Context, request relay.TranslationRequest, cost int, deadline time.Time) error {
	for {
		admission, err := c.governor.Admit(ctx, cost)
		if err != nil {
			return fmt.Errorf("admit request %s: %w", request.ID, err)
		}

		switch admission.Decision {
		case relay.AdmissionAllowed:
			c.metrics.IncCounter(relay.MetricQuotaAllowed, 1)
			c.logger.DebugContext(ctx, "admission granted",
				"stage", StageQuotaCheck,
				"request_id", request.ID,
			)
			return nil

		case relay.AdmissionDelayed:
			c.metrics.IncCounter(relay.MetricQuotaDelayed, 1)
			wait := admission.RetryAt.Sub(c.clock())
			if wait > c.maxQuotaWait || c.clock().Add(wait).After(deadline) {
				c.governor.Release()
				return fmt.Errorf("admit request %s: wait of %s exceeds budget: %w",
					request.ID, wait, relay.ErrBackpressure)
			}
			c.logger.DebugContext(ctx, "delaying for quota window",
				"stage", StageDelayed,
				"request_id", request.ID,
				"wait", wait,
			)
			err := c.sleep(ctx, wait)
			c.governor.Release()
			if err != nil {
				return c.convertWaitError(request, err)
			}

		case relay.AdmissionRejected:
			c.metrics.IncCounter(relay.MetricQuotaRejected, 1)
			return fmt.Errorf("admit request %s: %s: %w", request.ID, admission.Reason, relay.ErrQuotaRejected)

		default:
			return fmt.Errorf("admit request %s: unknown admission decision %q", request.ID, admission.Decision)
		}
	}
}

// convertWaitError maps an interrupted admission wait to the stable error
// surface: deadline expiry becomes ErrTimeout, caller cancellation passes
// through.
func (c *Coordinator) convertWaitError(request relay.TranslationRequest, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("admit request %s: %w", request.ID, relay.ErrTimeout)
	}

	return fmt.Errorf("admit request %s: %w", request.ID, err)
}

// fail records one failing terminal outcome and returns the classified error.
func (c *Coordinator) fail(ctx context.Context, request relay.TranslationRequest, started time.Time, err error) error {
	kind := relay.ClassifyFailure(err)
	c.logger.WarnContext(ctx, "request failed",
		"stage", StageFailed,
		"request_id", request.ID,
		"failure_kind", string(kind),
		"error", err,
	)

	record := c.buildRecord(request, relay.TranslationResult{
		Request: request,
		Latency: c.clock().Sub(started),
	}, err)
	c.persist(ctx, record)
	c.metrics.IncCounter(relay.MetricRequestsFailed, 1)

	return err
}

// buildRecord assembles the durable audit row for one terminal outcome.
func (c *Coordinator) buildRecord(request relay.TranslationRequest, result relay.TranslationResult, failure error) relay.AttemptRecord {
	key := relay.NewPairKey(request.SourceText, request.SourceLang, request.TargetLang)
	record := relay.AttemptRecord{
		ID:                 uuid.NewString(),
		RequestID:          request.ID,
		RequesterID:        request.RequesterID,
		SourceTextHash:     key.TextHash,
		SourceChars:        utf8.RuneCountInString(request.SourceText),
		SourceLang:         request.SourceLang,
		TargetLang:         request.TargetLang,
		TranslatedText:     result.TranslatedText,
		DetectedSourceLang: result.DetectedSourceLang,
		Latency:            result.Latency,
		CacheHit:           result.CacheHit,
		Success:            failure == nil,
		FailureKind:        relay.ClassifyFailure(failure),
		CreatedAt:          c.clock().UTC(),
	}
	if failure != nil {
		record.ErrorDetail = failure.Error()
	}

	return record
}

// persist writes one audit record detached from caller cancellation.
//
// A persistence failure never flips the dispatch outcome; the attempt is
// counted as unaudited and the request result stands.
func (c *Coordinator) persist(ctx context.Context, record relay.AttemptRecord) {
	persistCtx := context.WithoutCancel(ctx)
	if err := c.recorder.Record(persistCtx, record); err != nil {
		c.metrics.IncCounter(relay.MetricPersistFailures, 1)
		c.logger.ErrorContext(persistCtx, "failed to persist attempt record",
			"stage", StagePersisting,
			"request_id", record.RequestID,
			"error", err,
		)
	}
}

// sleepWithContext waits for d or until ctx is done, whichever comes first.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
