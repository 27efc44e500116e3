package relay

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PairKey identifies one cached translation by content hash and language pair.
type PairKey struct {
	// TextHash is the hex SHA-256 digest of the source text.
	TextHash string
	// SourceLang is the requested source language, empty when auto-detected.
	SourceLang string
	// TargetLang is the requested target language.
	TargetLang string
}

// NewPairKey derives one cache key from request fields.
func NewPairKey(sourceText, sourceLang, targetLang string) PairKey {
	digest := sha256.Sum256([]byte(sourceText))

	return PairKey{
		TextHash:   hex.EncodeToString(digest[:]),
		SourceLang: strings.TrimSpace(sourceLang),
		TargetLang: strings.TrimSpace(targetLang),
	}
}

// PairCache is a bounded in-memory translation cache.
//
// A miss is the absence of an entry, never an error. Implementations must be
// concurrency-safe because dispatch workers consult the cache in parallel; no
// cross-call atomicity is required between Lookup and Insert.
type PairCache interface {
	// Lookup returns the cached translation for key when present.
	Lookup(key PairKey) (text string, ok bool)
	// Insert stores one translation, evicting least-recently-used entries
	// beyond capacity.
	Insert(key PairKey, text string)
}
