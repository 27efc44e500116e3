package relay

import "context"

// StateStore persists small JSON-encoded application state blobs by key.
type StateStore interface {
	// GetState returns the raw state blob for key.
	//
	// When no entry exists, found is false and err is nil.
	GetState(ctx context.Context, key string) (value []byte, found bool, err error)
	// SetState upserts the raw state blob for key.
	SetState(ctx context.Context, key string, value []byte) error
}

// PreferenceStore persists per-user preferred target languages.
type PreferenceStore interface {
	// GetPreference returns the stored target language for userID.
	//
	// When the user has no stored preference, found is false and err is nil.
	GetPreference(ctx context.Context, userID string) (lang string, found bool, err error)
	// SetPreference upserts the target language for userID.
	SetPreference(ctx context.Context, userID, lang string) error
}
