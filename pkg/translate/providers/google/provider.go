package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"lingorelay/pkg/relay"

	"google.golang.org/genai"
)

const (
	defaultAPIVersion = "v1beta"
	defaultModel      = "gemini-2.0-flash"

	responseMIMEJSON = "application/json"

	translateInstruction = "You are a translation engine. Translate the user " +
		"message into the requested target language. Respond with a JSON " +
		"object containing exactly two fields: \"translation\" with the " +
		"translated text, and \"detected_source_lang\" with the ISO 639 code " +
		"of the source language. Preserve meaning, tone, and formatting. Do " +
		"not add commentary."
)

// ProviderConfig configures one Google-backed translation provider instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests.
	APIKey string
	// BaseURL optionally overrides the backend endpoint.
	BaseURL string
	// APIVersion optionally overrides the backend API version.
	//
	// Zero defaults to v1beta.
	APIVersion string
	// Model optionally overrides the translation model.
	Model string
	// Temperature optionally controls output randomness.
	//
	// Translation wants determinism; zero keeps the provider default of 0.
	Temperature *float64
}

// Provider is a relay translation backend over the Google Gen AI API.
type Provider struct {
	models      googleModelsClient
	model       string
	temperature *float32
}

type googleModelsClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// New builds one Google translation provider instance.
func New(cfg ProviderConfig) (*Provider, error) {
	normalized, err := normalizeProviderConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new google provider: %w", err)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  normalized.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    normalized.BaseURL,
			APIVersion: normalized.APIVersion,
		},
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("new google client: %w", err)
	}
	if client == nil || client.Models == nil {
		return nil, fmt.Errorf("new google client: models client is nil")
	}

	provider := &Provider{
		models: client.Models,
		model:  normalized.Model,
	}
	if normalized.Temperature != nil {
		temperature := float32(*normalized.Temperature)
		provider.temperature = &temperature
	}

	return provider, nil
}

// Translate performs one remote translation call.
func (p *Provider) Translate(ctx context.Context, in relay.TranslateInput) (relay.TranslatedPayload, error) {
	if p == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("google translate: nil provider")
	}
	if ctx == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("google translate: nil context")
	}
	if p.models == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("google translate: models client is nil")
	}
	if err := in.Validate(); err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("google translate: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  string(genai.RoleUser),
			Parts: []*genai.Part{{Text: buildUserPrompt(in)}},
		},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: translateInstruction}},
		},
		ResponseMIMEType: responseMIMEJSON,
	}
	if p.temperature != nil {
		temperature := *p.temperature
		config.Temperature = &temperature
	}

	response, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("google translate call: %w", err)
	}

	payload, err := mapResponse(response, in.SourceLang)
	if err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("google translate map response: %w", err)
	}

	return payload, nil
}

func buildUserPrompt(in relay.TranslateInput) string {
	var builder strings.Builder
	builder.WriteString("Target language: ")
	builder.WriteString(in.TargetLang)
	builder.WriteString("\n")
	if in.SourceLang != "" {
		builder.WriteString("Source language: ")
		builder.WriteString(in.SourceLang)
		builder.WriteString("\n")
	}
	builder.WriteString("Text:\n")
	builder.WriteString(in.Text)

	return builder.String()
}

type translationEnvelope struct {
	Translation        string `json:"translation"`
	DetectedSourceLang string `json:"detected_source_lang"`
}

func mapResponse(response *genai.GenerateContentResponse, requestedSourceLang string) (relay.TranslatedPayload, error) {
	if response == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("nil response")
	}

	text := collectResponseText(response)
	if strings.TrimSpace(text) == "" {
		return relay.TranslatedPayload{}, fmt.Errorf("empty response text")
	}

	var envelope translationEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("decode envelope: %w", err)
	}
	if strings.TrimSpace(envelope.Translation) == "" {
		return relay.TranslatedPayload{}, fmt.Errorf("envelope missing translation")
	}

	detected := strings.TrimSpace(envelope.DetectedSourceLang)
	if detected == "" {
		detected = requestedSourceLang
	}

	return relay.TranslatedPayload{
		Text:               envelope.Translation,
		DetectedSourceLang: detected,
	}, nil
}

func collectResponseText(response *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range response.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			builder.WriteString(part.Text)
		}
	}

	return builder.String()
}

func normalizeProviderConfig(cfg ProviderConfig) (ProviderConfig, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.APIVersion = strings.TrimSpace(cfg.APIVersion)
	cfg.Model = strings.TrimSpace(cfg.Model)

	if cfg.APIKey == "" {
		return ProviderConfig{}, fmt.Errorf("missing api_key")
	}
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("parse base_url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return ProviderConfig{}, fmt.Errorf("parse base_url: must include scheme and host")
		}
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature != nil && *cfg.Temperature < 0 {
		return ProviderConfig{}, fmt.Errorf("temperature must be >= 0")
	}

	return cfg, nil
}

var _ relay.Translator = (*Provider)(nil)
