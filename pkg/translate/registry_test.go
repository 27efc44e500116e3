package translate

import (
	"context"
	"testing"

	"lingorelay/pkg/relay"
)

type staticTranslator struct {
	name string
}

func (s staticTranslator) Translate(_ context.Context, _ relay.TranslateInput) (relay.TranslatedPayload, error) {
	return relay.TranslatedPayload{Text: s.name}, nil
}

func TestNewRegistryRejectsInvalidProviders(t *testing.T) {
	cases := []struct {
		name      string
		providers map[string]relay.Translator
	}{
		{name: "nil map", providers: nil},
		{name: "empty map", providers: map[string]relay.Translator{}},
		{name: "empty key", providers: map[string]relay.Translator{"  ": staticTranslator{}}},
		{name: "nil provider", providers: map[string]relay.Translator{"google": nil}},
		{
			name: "duplicate after trim",
			providers: map[string]relay.Translator{
				"google":  staticTranslator{name: "a"},
				"google ": staticTranslator{name: "b"},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegistry(tc.providers); err == nil {
				t.Error("NewRegistry() error = nil, want error")
			}
		})
	}
}

func TestResolve(t *testing.T) {
	registry, err := NewRegistry(map[string]relay.Translator{
		"google": staticTranslator{name: "google"},
		"openai": staticTranslator{name: "openai"},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	provider, err := registry.Resolve("openai")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	payload, err := provider.Translate(context.Background(), relay.TranslateInput{})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if payload.Text != "openai" {
		t.Errorf("resolved provider = %q, want %q", payload.Text, "openai")
	}

	if _, err := registry.Resolve("deepl"); err == nil {
		t.Error("Resolve(unknown) error = nil, want error")
	}
	if _, err := registry.Resolve(""); err == nil {
		t.Error("Resolve(empty) error = nil, want error")
	}
}
