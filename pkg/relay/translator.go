package relay

import "context"

// Translator is the neutral backend provider contract.
//
// Implementations should keep transport details hidden and return errors that
// wrap the relay taxonomy sentinels so the dispatcher can classify them.
type Translator interface {
	// Translate performs one remote translation call.
	Translate(ctx context.Context, in TranslateInput) (TranslatedPayload, error)
}

// TranslatorRegistry resolves configured backend providers by stable name.
//
// Implementations must be concurrency-safe because dispatch workers can
// resolve providers in parallel.
type TranslatorRegistry interface {
	// Resolve returns one configured provider by name.
	Resolve(provider string) (Translator, error)
}
