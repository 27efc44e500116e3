package translate

import (
	"fmt"
	"strings"

	"lingorelay/pkg/relay"
)

// Registry resolves configured translation backends by stable provider key.
//
// The provider map is copied on construction and remains immutable afterward,
// so Resolve is concurrency-safe for parallel dispatch workers.
type Registry struct {
	providers map[string]relay.Translator
}

// NewRegistry constructs one immutable translation provider registry.
func NewRegistry(providers map[string]relay.Translator) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("new translator registry: empty providers")
	}

	cloned := make(map[string]relay.Translator, len(providers))
	for key, provider := range providers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("new translator registry: empty provider key")
		}
		if provider == nil {
			return nil, fmt.Errorf("new translator registry: provider %s is nil", trimmedKey)
		}
		if _, exists := cloned[trimmedKey]; exists {
			return nil, fmt.Errorf("new translator registry: duplicate provider key %s", trimmedKey)
		}
		cloned[trimmedKey] = provider
	}

	return &Registry{providers: cloned}, nil
}

// Resolve returns one configured provider by key.
func (r *Registry) Resolve(provider string) (relay.Translator, error) {
	if r == nil {
		return nil, fmt.Errorf("resolve translator: nil registry")
	}

	trimmed := strings.TrimSpace(provider)
	if trimmed == "" {
		return nil, fmt.Errorf("resolve translator: empty provider key")
	}

	resolved, exists := r.providers[trimmed]
	if !exists {
		return nil, fmt.Errorf("resolve translator: provider %s is not configured", trimmed)
	}

	return resolved, nil
}

var _ relay.TranslatorRegistry = (*Registry)(nil)
