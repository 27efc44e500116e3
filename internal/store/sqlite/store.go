package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lingorelay/pkg/relay"
)

const (
	defaultWriteTimeout = 3 * time.Second
	// Fewer attempts than the translation client; local writes either succeed
	// quickly or the attempt is reported unaudited.
	writeAttempts    = 2
	writeRetryPause  = 100 * time.Millisecond
	timeLayoutStored = time.RFC3339Nano
)

// StoreOption mutates store configuration.
type StoreOption func(*Store)

// WithWriteTimeout bounds each durable write.
func WithWriteTimeout(timeout time.Duration) StoreOption {
	return func(store *Store) {
		if timeout > 0 {
			store.writeTimeout = timeout
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// Store implements the durable attempt recorder plus the user preference and
// application state repositories over one SQLite handle.
type Store struct {
	db           *sql.DB
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, options ...StoreOption) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("new sqlite store: nil db")
	}

	store := &Store{
		db:           db,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, option := range options {
		option(store)
	}

	return store, nil
}

// Record appends one immutable attempt row.
//
// The write is bounded by the configured timeout and retried once; a final
// failure wraps ErrStorageWrite so the dispatcher can mark the attempt
// unaudited without failing the user-visible result.
func (s *Store) Record(ctx context.Context, record relay.AttemptRecord) error {
	if record.ID == "" {
		return fmt.Errorf("%w: missing record id", relay.ErrStorageWrite)
	}

	var lastErr error
	for attempt := 1; attempt <= writeAttempts; attempt++ {
		lastErr = s.insertRecord(ctx, record)
		if lastErr == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			break
		}
		if attempt < writeAttempts {
			s.logger.WarnContext(ctx, "attempt record write failed, retrying",
				"record_id", record.ID,
				"attempt", attempt,
				"error", lastErr,
			)
			time.Sleep(writeRetryPause)
		}
	}

	return fmt.Errorf("%w: record attempt %s: %w", relay.ErrStorageWrite, record.ID, lastErr)
}

func (s *Store) insertRecord(ctx context.Context, record relay.AttemptRecord) error {
	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(writeCtx, `
        INSERT INTO translation_records (
            id, request_id, requester_id, source_text_hash, source_chars,
            source_lang, target_lang, translated_text, detected_source_lang,
            latency_ms, cache_hit, success, failure_kind, error_detail, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.RequestID,
		record.RequesterID,
		record.SourceTextHash,
		record.SourceChars,
		record.SourceLang,
		record.TargetLang,
		record.TranslatedText,
		record.DetectedSourceLang,
		record.Latency.Milliseconds(),
		boolToInt(record.CacheHit),
		boolToInt(record.Success),
		string(record.FailureKind),
		record.ErrorDetail,
		record.CreatedAt.UTC().Format(timeLayoutStored),
	)

	return err
}

// CountRecords returns the stored attempt row count for one request ID.
// Used by diagnostics and tests to verify the audit trail has no gaps.
func (s *Store) CountRecords(ctx context.Context, requestID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM translation_records WHERE request_id = ?",
		requestID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records for request %s: %w", requestID, err)
	}

	return count, nil
}

// GetPreference returns the stored target language for userID.
func (s *Store) GetPreference(ctx context.Context, userID string) (string, bool, error) {
	var locale string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_locale FROM user_preferences WHERE user_id = ?",
		userID,
	).Scan(&locale)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference for user %s: %w", userID, err)
	}

	return locale, true, nil
}

// SetPreference upserts the target language for userID.
func (s *Store) SetPreference(ctx context.Context, userID, lang string) error {
	userID = strings.TrimSpace(userID)
	lang = strings.TrimSpace(lang)
	if userID == "" {
		return fmt.Errorf("set preference: missing user id")
	}
	if !relay.IsSupportedLanguage(lang) {
		return fmt.Errorf("set preference for user %s: unsupported language %q", userID, lang)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(writeCtx, `
        INSERT INTO user_preferences (user_id, user_locale) VALUES (?, ?)
        ON CONFLICT (user_id) DO UPDATE SET user_locale = excluded.user_locale`,
		userID,
		lang,
	)
	if err != nil {
		return fmt.Errorf("set preference for user %s: %w", userID, err)
	}

	return nil
}

// GetState returns the raw state blob for key.
func (s *Store) GetState(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM app_state WHERE key = ?",
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get state %s: %w", key, err)
	}

	return value, true, nil
}

// SetState upserts the raw state blob for key.
func (s *Store) SetState(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("set state: missing key")
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(writeCtx, `
        INSERT INTO app_state (key, value) VALUES (?, ?)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}

	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}

	return 0
}

var (
	_ relay.Recorder        = (*Store)(nil)
	_ relay.PreferenceStore = (*Store)(nil)
	_ relay.StateStore      = (*Store)(nil)
)
