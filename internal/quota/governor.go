// Package quota enforces the remote-call budget: a fixed admission window for
// call counts and a persisted monthly character ledger.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lingorelay/pkg/relay"
)

const (
	defaultWindowLength = time.Minute
	defaultCallLimit    = 300
	defaultMaxWaiters   = 32
)

// Option mutates governor configuration.
type Option func(*Governor)

// WithWindow sets the fixed admission window length.
func WithWindow(length time.Duration) Option {
	return func(governor *Governor) {
		if length > 0 {
			governor.windowLength = length
		}
	}
}

// WithCallLimit sets the per-window remote call limit.
func WithCallLimit(limit int) Option {
	return func(governor *Governor) {
		if limit > 0 {
			governor.limit = limit
		}
	}
}

// WithMaxWaiters sets the hard cap on queued delayed requests.
func WithMaxWaiters(maxWaiters int) Option {
	return func(governor *Governor) {
		if maxWaiters >= 0 {
			governor.maxWaiters = maxWaiters
		}
	}
}

// WithLedger attaches a monthly character ledger consulted before window
// admission.
func WithLedger(ledger *Ledger) Option {
	return func(governor *Governor) {
		governor.ledger = ledger
	}
}

// WithClock injects a time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(governor *Governor) {
		if clock != nil {
			governor.clock = clock
		}
	}
}

// Governor is a fixed-window admission controller for remote translation
// calls. When a window is exhausted it delays callers until the window end
// instead of rejecting outright, up to a hard cap of queued waiters.
type Governor struct {
	windowLength time.Duration
	limit        int
	maxWaiters   int
	clock        func() time.Time
	ledger       *Ledger

	mu          sync.Mutex
	windowStart time.Time
	callsMade   int
	waiters     int
}

// New creates a governor with production defaults.
func New(options ...Option) *Governor {
	governor := &Governor{
		windowLength: defaultWindowLength,
		limit:        defaultCallLimit,
		maxWaiters:   defaultMaxWaiters,
		clock:        time.Now,
	}
	for _, option := range options {
		option(governor)
	}

	return governor
}

// Admit requests budget for one remote call translating cost characters.
//
// The call counter never exceeds the configured limit within one window; the
// window resets exactly when the current time crosses its end.
func (g *Governor) Admit(ctx context.Context, cost int) (relay.Admission, error) {
	if ctx == nil {
		return relay.Admission{}, fmt.Errorf("quota admit: nil context")
	}
	if err := ctx.Err(); err != nil {
		return relay.Admission{}, fmt.Errorf("quota admit: %w", err)
	}
	if cost < 0 {
		return relay.Admission{}, fmt.Errorf("quota admit: negative cost %d", cost)
	}

	if g.ledger != nil {
		exhausted, err := g.ledger.WouldExceed(ctx, cost)
		if err != nil {
			return relay.Admission{}, fmt.Errorf("quota admit ledger check: %w", err)
		}
		if exhausted {
			return relay.Admission{
				Decision: relay.AdmissionRejected,
				Reason:   "monthly character budget exhausted",
			}, nil
		}
	}

	now := g.clock().UTC()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollWindowLocked(now)

	if g.callsMade < g.limit {
		g.callsMade++
		return relay.Admission{Decision: relay.AdmissionAllowed}, nil
	}

	if g.waiters >= g.maxWaiters {
		return relay.Admission{
			Decision: relay.AdmissionRejected,
			Reason:   "admission window exhausted and waiter cap reached",
		}, nil
	}

	g.waiters++

	return relay.Admission{
		Decision: relay.AdmissionDelayed,
		RetryAt:  g.windowStart.Add(g.windowLength),
	}, nil
}

// Release returns one delayed waiter slot.
func (g *Governor) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.waiters > 0 {
		g.waiters--
	}
}

// Commit records cost characters as spent after a successful remote call.
func (g *Governor) Commit(ctx context.Context, cost int) error {
	if g.ledger == nil {
		return nil
	}
	if err := g.ledger.Record(ctx, cost); err != nil {
		return fmt.Errorf("quota commit: %w", err)
	}

	return nil
}

// rollWindowLocked advances the fixed window to cover now.
func (g *Governor) rollWindowLocked(now time.Time) {
	if g.windowStart.IsZero() {
		g.windowStart = now
		return
	}

	windowEnd := g.windowStart.Add(g.windowLength)
	if now.Before(windowEnd) {
		return
	}

	// Advance by whole windows so boundaries stay aligned under idle gaps.
	elapsed := now.Sub(g.windowStart)
	steps := elapsed / g.windowLength
	g.windowStart = g.windowStart.Add(steps * g.windowLength)
	g.callsMade = 0
}

var _ relay.Governor = (*Governor)(nil)
