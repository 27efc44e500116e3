package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"lingorelay/pkg/relay"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "lingorelay.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	return store
}

func sampleRecord(id, requestID string) relay.AttemptRecord {
	return relay.AttemptRecord{
		ID:                 id,
		RequestID:          requestID,
		RequesterID:        "user-1",
		SourceTextHash:     "abc123",
		SourceChars:        5,
		TargetLang:         "fr",
		TranslatedText:     "bonjour",
		DetectedSourceLang: "en",
		Latency:            120 * time.Millisecond,
		Success:            true,
		CreatedAt:          time.Now().UTC(),
	}
}

func TestRecordAndCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, sampleRecord("rec-1", "req-1")); err != nil {
		t.Fatalf("record: %v", err)
	}

	failed := sampleRecord("rec-2", "req-2")
	failed.Success = false
	failed.TranslatedText = ""
	failed.FailureKind = relay.FailureKindPermanent
	failed.ErrorDetail = "unsupported target language"
	if err := store.Record(ctx, failed); err != nil {
		t.Fatalf("record failure row: %v", err)
	}

	count, err := store.CountRecords(ctx, "req-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRecordRejectsMissingID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	err := store.Record(context.Background(), relay.AttemptRecord{RequestID: "req-1"})
	if !errors.Is(err, relay.ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, found, err := store.GetPreference(ctx, "user-1"); err != nil || found {
		t.Fatalf("get empty preference: found=%v err=%v", found, err)
	}

	if err := store.SetPreference(ctx, "user-1", "fr"); err != nil {
		t.Fatalf("set preference: %v", err)
	}
	if err := store.SetPreference(ctx, "user-1", "de"); err != nil {
		t.Fatalf("update preference: %v", err)
	}

	lang, found, err := store.GetPreference(ctx, "user-1")
	if err != nil {
		t.Fatalf("get preference: %v", err)
	}
	if !found || lang != "de" {
		t.Fatalf("preference = %q found=%v, want de/true", lang, found)
	}
}

func TestSetPreferenceRejectsUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	if err := store.SetPreference(context.Background(), "user-1", "xx"); err == nil {
		t.Fatal("expected unsupported language error")
	}
}

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if _, found, err := store.GetState(ctx, "usage_tracker"); err != nil || found {
		t.Fatalf("get empty state: found=%v err=%v", found, err)
	}

	if err := store.SetState(ctx, "usage_tracker", []byte(`{"month":"2026-08"}`)); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if err := store.SetState(ctx, "usage_tracker", []byte(`{"month":"2026-09"}`)); err != nil {
		t.Fatalf("overwrite state: %v", err)
	}

	value, found, err := store.GetState(ctx, "usage_tracker")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if !found || string(value) != `{"month":"2026-09"}` {
		t.Fatalf("state = %q found=%v, want overwritten blob", value, found)
	}
}
