package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"lingorelay/pkg/relay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[relay.PairKey]string
	inserts int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[relay.PairKey]string{}}
}

func (f *fakeCache) Lookup(key relay.PairKey) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.entries[key]
	return text, ok
}

func (f *fakeCache) Insert(key relay.PairKey, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = text
	f.inserts++
}

type fakeGovernor struct {
	mu         sync.Mutex
	admissions []relay.Admission
	admits     int
	releases   int
	committed  int
}

func (f *fakeGovernor) Admit(_ context.Context, _ int) (relay.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admits >= len(f.admissions) {
		return relay.Admission{Decision: relay.AdmissionAllowed}, nil
	}
	admission := f.admissions[f.admits]
	f.admits++
	return admission, nil
}

func (f *fakeGovernor) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
}

func (f *fakeGovernor) Commit(_ context.Context, cost int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed += cost
	return nil
}

type fakeTranslator struct {
	mu      sync.Mutex
	payload relay.TranslatedPayload
	err     error
	calls   int
	block   chan struct{}
}

func (f *fakeTranslator) Translate(ctx context.Context, _ relay.TranslateInput) (relay.TranslatedPayload, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return relay.TranslatedPayload{}, ctx.Err()
		}
	}
	if f.err != nil {
		return relay.TranslatedPayload{}, f.err
	}
	return f.payload, nil
}

func (f *fakeTranslator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []relay.AttemptRecord
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, record relay.AttemptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecorder) recorded() []relay.AttemptRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]relay.AttemptRecord(nil), f.records...)
}

type countingSink struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newCountingSink() *countingSink {
	return &countingSink{counters: map[string]int64{}}
}

func (s *countingSink) IncCounter(name string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
}

func (s *countingSink) SetGauge(string, float64) {}

func (s *countingSink) ObserveDuration(string, time.Duration) {}

func (s *countingSink) counter(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

type harness struct {
	cache      *fakeCache
	governor   *fakeGovernor
	translator *fakeTranslator
	recorder   *fakeRecorder
	sink       *countingSink
}

func newHarness(t *testing.T, opts ...Option) (*Coordinator, *harness) {
	t.Helper()

	h := &harness{
		cache:      newFakeCache(),
		governor:   &fakeGovernor{},
		translator: &fakeTranslator{payload: relay.TranslatedPayload{Text: "bonjour", DetectedSourceLang: "en"}},
		recorder:   &fakeRecorder{},
		sink:       newCountingSink(),
	}
	opts = append([]Option{WithMetrics(h.sink)}, opts...)
	coordinator, err := NewCoordinator(h.cache, h.governor, h.translator, h.recorder, opts...)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}

	return coordinator, h
}

func testRequest() relay.TranslationRequest {
	return relay.NewRequest("hello", "en", "fr", "user-1")
}

func TestDispatchTranslatesCacheMiss(t *testing.T) {
	coordinator, h := newHarness(t)
	request := testRequest()

	result, err := coordinator.Dispatch(context.Background(), request)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.TranslatedText != "bonjour" {
		t.Errorf("TranslatedText = %q, want %q", result.TranslatedText, "bonjour")
	}
	if result.DetectedSourceLang != "en" {
		t.Errorf("DetectedSourceLang = %q, want %q", result.DetectedSourceLang, "en")
	}
	if result.CacheHit {
		t.Error("CacheHit = true, want false")
	}
	if h.translator.callCount() != 1 {
		t.Errorf("translator calls = %d, want 1", h.translator.callCount())
	}
	if h.governor.committed != 5 {
		t.Errorf("committed chars = %d, want 5", h.governor.committed)
	}
	if h.cache.inserts != 1 {
		t.Errorf("cache inserts = %d, want 1", h.cache.inserts)
	}

	records := h.recorder.recorded()
	if len(records) != 1 {
		t.Fatalf("recorded %d records, want 1", len(records))
	}
	record := records[0]
	if !record.Success {
		t.Error("record.Success = false, want true")
	}
	if record.RequestID != request.ID {
		t.Errorf("record.RequestID = %q, want %q", record.RequestID, request.ID)
	}
	if record.SourceChars != 5 {
		t.Errorf("record.SourceChars = %d, want 5", record.SourceChars)
	}
	if got := h.sink.counter(relay.MetricRequestsCompleted); got != 1 {
		t.Errorf("requests_completed = %d, want 1", got)
	}
}

func TestDispatchServesCacheHitWithoutRemoteCall(t *testing.T) {
	coordinator, h := newHarness(t)
	request := testRequest()
	key := relay.NewPairKey(request.SourceText, request.SourceLang, request.TargetLang)
	h.cache.Insert(key, "bonjour")
	h.cache.inserts = 0

	result, err := coordinator.Dispatch(context.Background(), request)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !result.CacheHit {
		t.Error("CacheHit = false, want true")
	}
	if result.TranslatedText != "bonjour" {
		t.Errorf("TranslatedText = %q, want %q", result.TranslatedText, "bonjour")
	}
	if h.translator.callCount() != 0 {
		t.Errorf("translator calls = %d, want 0", h.translator.callCount())
	}
	if h.governor.admits != 0 {
		t.Errorf("governor admits = %d, want 0", h.governor.admits)
	}

	records := h.recorder.recorded()
	if len(records) != 1 {
		t.Fatalf("recorded %d records, want 1", len(records))
	}
	if !records[0].CacheHit {
		t.Error("record.CacheHit = false, want true")
	}
	if got := h.sink.counter(relay.MetricCacheHits); got != 1 {
		t.Errorf("cache_hits = %d, want 1", got)
	}
}

func TestDispatchHonorsShortDelayThenProceeds(t *testing.T) {
	var slept time.Duration
	coordinator, h := newHarness(t,
		WithSleep(func(_ context.Context, d time.Duration) error {
			slept = d
			return nil
		}),
	)
	h.governor.admissions = []relay.Admission{
		{Decision: relay.AdmissionDelayed, RetryAt: time.Now().Add(50 * time.Millisecond)},
		{Decision: relay.AdmissionAllowed},
	}

	if _, err := coordinator.Dispatch(context.Background(), testRequest()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if slept <= 0 {
		t.Errorf("slept = %v, want > 0", slept)
	}
	if h.governor.releases != 1 {
		t.Errorf("governor releases = %d, want 1", h.governor.releases)
	}
	if got := h.sink.counter(relay.MetricQuotaDelayed); got != 1 {
		t.Errorf("quota_delayed = %d, want 1", got)
	}
	if h.translator.callCount() != 1 {
		t.Errorf("translator calls = %d, want 1", h.translator.callCount())
	}
}

func TestDispatchConvertsLongDelayToBackpressure(t *testing.T) {
	coordinator, h := newHarness(t, WithMaxQuotaWait(time.Second))
	h.governor.admissions = []relay.Admission{
		{Decision: relay.AdmissionDelayed, RetryAt: time.Now().Add(time.Minute)},
	}

	_, err := coordinator.Dispatch(context.Background(), testRequest())
	if !errors.Is(err, relay.ErrBackpressure) {
		t.Fatalf("Dispatch() error = %v, want ErrBackpressure", err)
	}
	if h.governor.releases != 1 {
		t.Errorf("governor releases = %d, want 1", h.governor.releases)
	}
	if h.translator.callCount() != 0 {
		t.Errorf("translator calls = %d, want 0", h.translator.callCount())
	}

	records := h.recorder.recorded()
	if len(records) != 1 {
		t.Fatalf("recorded %d records, want 1", len(records))
	}
	if records[0].FailureKind != relay.FailureKindBackpressure {
		t.Errorf("record.FailureKind = %q, want %q", records[0].FailureKind, relay.FailureKindBackpressure)
	}
}

func TestDispatchFailsOnQuotaRejection(t *testing.T) {
	coordinator, h := newHarness(t)
	h.governor.admissions = []relay.Admission{
		{Decision: relay.AdmissionRejected, Reason: "monthly character budget exhausted"},
	}

	_, err := coordinator.Dispatch(context.Background(), testRequest())
	if !errors.Is(err, relay.ErrQuotaRejected) {
		t.Fatalf("Dispatch() error = %v, want ErrQuotaRejected", err)
	}
	if h.translator.callCount() != 0 {
		t.Errorf("translator calls = %d, want 0", h.translator.callCount())
	}
	if got := h.sink.counter(relay.MetricQuotaRejected); got != 1 {
		t.Errorf("quota_rejected = %d, want 1", got)
	}

	records := h.recorder.recorded()
	if len(records) != 1 {
		t.Fatalf("recorded %d records, want 1", len(records))
	}
	if records[0].FailureKind != relay.FailureKindQuotaRejected {
		t.Errorf("record.FailureKind = %q, want %q", records[0].FailureKind, relay.FailureKindQuotaRejected)
	}
}

func TestDispatchRecordsRemoteFailure(t *testing.T) {
	coordinator, h := newHarness(t)
	h.translator.err = fmt.Errorf("backend said no: %w", relay.ErrTranslationPermanent)

	_, err := coordinator.Dispatch(context.Background(), testRequest())
	if !errors.Is(err, relay.ErrTranslationPermanent) {
		t.Fatalf("Dispatch() error = %v, want ErrTranslationPermanent", err)
	}
	if h.governor.committed != 0 {
		t.Errorf("committed chars = %d, want 0", h.governor.committed)
	}
	if h.cache.inserts != 0 {
		t.Errorf("cache inserts = %d, want 0", h.cache.inserts)
	}
	if got := h.sink.counter(relay.MetricRemoteErrors); got != 1 {
		t.Errorf("remote_errors = %d, want 1", got)
	}

	records := h.recorder.recorded()
	if len(records) != 1 {
		t.Fatalf("recorded %d records, want 1", len(records))
	}
	record := records[0]
	if record.Success {
		t.Error("record.Success = true, want false")
	}
	if record.FailureKind != relay.FailureKindPermanent {
		t.Errorf("record.FailureKind = %q, want %q", record.FailureKind, relay.FailureKindPermanent)
	}
	if record.ErrorDetail == "" {
		t.Error("record.ErrorDetail is empty, want failure context")
	}
}

func TestDispatchRejectsInvalidRequestWithoutRecord(t *testing.T) {
	coordinator, h := newHarness(t)
	request := testRequest()
	request.SourceText = "   "

	_, err := coordinator.Dispatch(context.Background(), request)
	if !errors.Is(err, relay.ErrInvalidRequest) {
		t.Fatalf("Dispatch() error = %v, want ErrInvalidRequest", err)
	}
	if len(h.recorder.recorded()) != 0 {
		t.Errorf("recorded %d records, want 0", len(h.recorder.recorded()))
	}
	if h.governor.admits != 0 {
		t.Errorf("governor admits = %d, want 0", h.governor.admits)
	}
}

func TestDispatchResultStandsWhenPersistenceFails(t *testing.T) {
	coordinator, h := newHarness(t)
	h.recorder.err = fmt.Errorf("write attempt record: %w", relay.ErrStorageWrite)

	result, err := coordinator.Dispatch(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if result.TranslatedText != "bonjour" {
		t.Errorf("TranslatedText = %q, want %q", result.TranslatedText, "bonjour")
	}
	if got := h.sink.counter(relay.MetricPersistFailures); got != 1 {
		t.Errorf("persist_failures = %d, want 1", got)
	}
	if got := h.sink.counter(relay.MetricRequestsCompleted); got != 1 {
		t.Errorf("requests_completed = %d, want 1", got)
	}
}

func TestDispatchKeepsPaidWorkAfterCancellation(t *testing.T) {
	coordinator, h := newHarness(t)
	block := make(chan struct{})
	h.translator.block = block

	ctx, cancel := context.WithCancel(context.Background())
	request := testRequest()

	done := make(chan error, 1)
	go func() {
		_, err := coordinator.Dispatch(ctx, request)
		done <- err
	}()

	// Cancel while the remote call is in flight, then let it finish.
	for h.translator.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(block)

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Dispatch() error = %v, want context.Canceled", err)
	}

	key := relay.NewPairKey(request.SourceText, request.SourceLang, request.TargetLang)
	if text, ok := h.cache.Lookup(key); !ok || text != "bonjour" {
		t.Errorf("cache entry after cancellation = (%q, %v), want (bonjour, true)", text, ok)
	}
	records := h.recorder.recorded()
	if len(records) != 1 {
		t.Fatalf("recorded %d records, want 1", len(records))
	}
	if !records[0].Success {
		t.Error("record.Success = false, want true")
	}
}

func TestDispatchConvertsDeadlineToTimeout(t *testing.T) {
	coordinator, h := newHarness(t, WithRequestDeadline(10*time.Millisecond), WithMaxQuotaWait(time.Minute))
	h.governor.admissions = []relay.Admission{
		{Decision: relay.AdmissionDelayed, RetryAt: time.Now().Add(5 * time.Millisecond)},
		{Decision: relay.AdmissionDelayed, RetryAt: time.Now().Add(30 * time.Second)},
	}

	_, err := coordinator.Dispatch(context.Background(), testRequest())
	if !errors.Is(err, relay.ErrBackpressure) && !errors.Is(err, relay.ErrTimeout) {
		t.Fatalf("Dispatch() error = %v, want backpressure or timeout", err)
	}
	if h.governor.releases == 0 {
		t.Error("governor releases = 0, want at least 1")
	}
	if h.translator.callCount() != 0 {
		t.Errorf("translator calls = %d, want 0", h.translator.callCount())
	}
}
