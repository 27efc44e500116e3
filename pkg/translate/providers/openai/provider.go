package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"lingorelay/pkg/relay"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultModel = "gpt-4o-mini"

	translateInstruction = "You are a translation engine. Translate the user " +
		"message into the requested target language. Respond with a JSON " +
		"object containing exactly two fields: \"translation\" with the " +
		"translated text, and \"detected_source_lang\" with the ISO 639 code " +
		"of the source language. Preserve meaning, tone, and formatting. Do " +
		"not add commentary."
)

// ProviderConfig configures one OpenAI-backed translation provider instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests.
	APIKey string
	// BaseURL optionally overrides the OpenAI endpoint.
	BaseURL string
	// Organization optionally sets the OpenAI organization header.
	Organization string
	// Model optionally overrides the translation model.
	Model string
	// MaxRetries optionally overrides the SDK retry count.
	//
	// The relay client adapter owns retry policy, so the composition root
	// normally pins this to zero. Nil keeps the SDK default behavior.
	MaxRetries *int
}

// Provider is a relay translation backend over OpenAI chat completions.
type Provider struct {
	completions chatCompletionsClient
	model       string
}

type chatCompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type chatCompletionServiceAdapter struct {
	service openai.ChatCompletionService
}

func (a chatCompletionServiceAdapter) New(
	ctx context.Context,
	body openai.ChatCompletionNewParams,
	opts ...option.RequestOption,
) (*openai.ChatCompletion, error) {
	return a.service.New(ctx, body, opts...)
}

// New builds one OpenAI translation provider instance.
func New(cfg ProviderConfig) (*Provider, error) {
	normalized, err := normalizeProviderConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new openai provider: %w", err)
	}

	options := make([]option.RequestOption, 0, 4)
	options = append(options, option.WithAPIKey(normalized.APIKey))
	if normalized.BaseURL != "" {
		options = append(options, option.WithBaseURL(normalized.BaseURL))
	}
	if normalized.Organization != "" {
		options = append(options, option.WithOrganization(normalized.Organization))
	}
	if normalized.MaxRetries != nil {
		options = append(options, option.WithMaxRetries(*normalized.MaxRetries))
	}

	client := openai.NewClient(options...)

	return &Provider{
		completions: chatCompletionServiceAdapter{service: client.Chat.Completions},
		model:       normalized.Model,
	}, nil
}

// Translate performs one remote translation call.
func (p *Provider) Translate(ctx context.Context, in relay.TranslateInput) (relay.TranslatedPayload, error) {
	if p == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("openai translate: nil provider")
	}
	if ctx == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("openai translate: nil context")
	}
	if p.completions == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("openai translate: completions client is nil")
	}
	if err := in.Validate(); err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("openai translate: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(translateInstruction),
			openai.UserMessage(buildUserPrompt(in)),
		},
	}

	completion, err := p.completions.New(ctx, params)
	if err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("openai translate call: %w", err)
	}

	payload, err := mapCompletion(completion, in.SourceLang)
	if err != nil {
		return relay.TranslatedPayload{}, fmt.Errorf("openai translate map response: %w", err)
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

func mapCompletion(completion *openai.ChatCompletion, requestedSourceLang string) (relay.TranslatedPayload, error) {
	if completion == nil {
		return relay.TranslatedPayload{}, fmt.Errorf("nil completion")
	}
	if len(completion.Choices) == 0 {
		return relay.TranslatedPayload{}, fmt.Errorf("empty choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return relay.TranslatedPayload{}, fmt.Errorf("empty completion content")
	}

	var envelope translationEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
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

func normalizeProviderConfig(cfg ProviderConfig) (ProviderConfig, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Organization = strings.TrimSpace(cfg.Organization)
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
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		return ProviderConfig{}, fmt.Errorf("max_retries must be >= 0")
	}

	return cfg, nil
}

var _ relay.Translator = (*Provider)(nil)
