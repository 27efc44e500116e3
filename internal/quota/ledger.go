package quota

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lingorelay/pkg/relay"
)

const (
	ledgerStateKey      = "usage_tracker"
	defaultMonthlyLimit = 500000
	defaultSafetyFactor = 0.98
)

// LedgerOption mutates ledger configuration.
type LedgerOption func(*Ledger)

// WithMonthlyLimit sets the monthly character budget.
func WithMonthlyLimit(limit int64) LedgerOption {
	return func(ledger *Ledger) {
		if limit > 0 {
			ledger.limit = limit
		}
	}
}

// WithSafetyFactor sets the fraction of the monthly limit treated as safe.
func WithSafetyFactor(factor float64) LedgerOption {
	return func(ledger *Ledger) {
		if factor > 0 && factor <= 1 {
			ledger.safetyFactor = factor
		}
	}
}

// WithLedgerLogger injects a logger.
func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(ledger *Ledger) {
		if logger != nil {
			ledger.logger = logger
		}
	}
}

// WithLedgerClock injects a time source for tests.
func WithLedgerClock(clock func() time.Time) LedgerOption {
	return func(ledger *Ledger) {
		if clock != nil {
			ledger.clock = clock
		}
	}
}

// WithMetrics attaches a sink receiving the monthly usage gauge.
func WithMetrics(sink relay.MetricsSink) LedgerOption {
	return func(ledger *Ledger) {
		if sink != nil {
			ledger.metrics = sink
		}
	}
}

// ledgerState is the persisted usage snapshot.
type ledgerState struct {
	// Month is the UTC calendar month the counter belongs to ("2006-01").
	Month string `json:"month"`
	// CharsUsed is the character count sent to the remote backend this month.
	CharsUsed int64 `json:"chars_used"`
}

// Ledger tracks remote translation character spend per UTC calendar month and
// persists it through a state store so restarts do not reset the budget.
// Rollover into a new month resets the counter.
type Ledger struct {
	limit        int64
	safetyFactor float64
	store        relay.StateStore
	logger       *slog.Logger
	clock        func() time.Time
	metrics      relay.MetricsSink

	mu     sync.Mutex
	loaded bool
	state  ledgerState
}

// NewLedger creates a monthly usage ledger backed by store.
func NewLedger(store relay.StateStore, options ...LedgerOption) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("new usage ledger: nil state store")
	}

	ledger := &Ledger{
		limit:        defaultMonthlyLimit,
		safetyFactor: defaultSafetyFactor,
		store:        store,
		logger:       slog.Default(),
		clock:        time.Now,
		metrics:      relay.NopMetrics{},
	}
	for _, option := range options {
		option(ledger)
	}

	return ledger, nil
}

// SafeLimit returns the effective budget after the safety factor.
func (l *Ledger) SafeLimit() int64 {
	return int64(float64(l.limit) * l.safetyFactor)
}

// WouldExceed reports whether spending cost more characters would cross the
// safe monthly limit.
func (l *Ledger) WouldExceed(ctx context.Context, cost int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureCurrentMonthLocked(ctx); err != nil {
		return false, err
	}

	return l.state.CharsUsed+int64(cost) > l.SafeLimit(), nil
}

// Record adds cost characters to the current month and persists the state.
func (l *Ledger) Record(ctx context.Context, cost int) error {
	if cost <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureCurrentMonthLocked(ctx); err != nil {
		return err
	}

	l.state.CharsUsed += int64(cost)
	if err := l.saveLocked(ctx); err != nil {
		return err
	}

	l.metrics.SetGauge(relay.MetricMonthlyCharsUsed, float64(l.state.CharsUsed))
	l.logger.DebugContext(ctx, "recorded translation usage",
		"chars", cost,
		"month_total", l.state.CharsUsed,
		"safe_limit", l.SafeLimit(),
	)

	return nil
}

// CharsUsed returns the character spend recorded for the current month.
func (l *Ledger) CharsUsed(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureCurrentMonthLocked(ctx); err != nil {
		return 0, err
	}

	return l.state.CharsUsed, nil
}

// ensureCurrentMonthLocked lazily loads persisted state and handles month
// rollover.
func (l *Ledger) ensureCurrentMonthLocked(ctx context.Context) error {
	currentMonth := l.clock().UTC().Format("2006-01")

	if !l.loaded {
		raw, found, err := l.store.GetState(ctx, ledgerStateKey)
		if err != nil {
			return fmt.Errorf("load usage state: %w", err)
		}
		if found {
			if err := json.Unmarshal(raw, &l.state); err != nil {
				return fmt.Errorf("decode usage state: %w", err)
			}
		} else {
			l.state = ledgerState{Month: currentMonth}
		}
		l.loaded = true
	}

	if l.state.Month != currentMonth {
		l.logger.InfoContext(ctx, "monthly usage rollover, resetting counters",
			"previous_month", l.state.Month,
			"month", currentMonth,
		)
		l.state = ledgerState{Month: currentMonth}
		if err := l.saveLocked(ctx); err != nil {
			return err
		}
		l.metrics.SetGauge(relay.MetricMonthlyCharsUsed, 0)
	}

	return nil
}

func (l *Ledger) saveLocked(ctx context.Context) error {
	raw, err := json.Marshal(l.state)
	if err != nil {
		return fmt.Errorf("encode usage state: %w", err)
	}
	if err := l.store.SetState(ctx, ledgerStateKey, raw); err != nil {
		return fmt.Errorf("save usage state: %w", err)
	}

	return nil
}
