package google

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"

	"lingorelay/pkg/relay"
)

type stubModelsClient struct {
	response   *genai.GenerateContentResponse
	err        error
	lastModel  string
	lastConfig *genai.GenerateContentConfig
	calls      int
}

func (s *stubModelsClient) GenerateContent(
	_ context.Context,
	model string,
	_ []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	s.calls++
	s.lastModel = model
	s.lastConfig = config
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func responseWithText(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func TestTranslateMapsEnvelope(t *testing.T) {
	stub := &stubModelsClient{
		response: responseWithText(`{"translation":"bonjour","detected_source_lang":"en"}`),
	}
	provider := &Provider{models: stub, model: defaultModel}

	payload, err := provider.Translate(context.Background(), relay.TranslateInput{
		Text:       "hello",
		TargetLang: "fr",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if payload.Text != "bonjour" {
		t.Errorf("Text = %q, want %q", payload.Text, "bonjour")
	}
	if payload.DetectedSourceLang != "en" {
		t.Errorf("DetectedSourceLang = %q, want %q", payload.DetectedSourceLang, "en")
	}
	if stub.lastModel != defaultModel {
		t.Errorf("model = %q, want %q", stub.lastModel, defaultModel)
	}
	if stub.lastConfig == nil || stub.lastConfig.ResponseMIMEType != responseMIMEJSON {
		t.Error("config should request a JSON response")
	}
}

func TestTranslateSkipsThoughtParts(t *testing.T) {
	stub := &stubModelsClient{
		response: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{
					Content: &genai.Content{
						Parts: []*genai.Part{
							{Text: "internal reasoning", Thought: true},
							{Text: `{"translation":"bonjour","detected_source_lang":"en"}`},
						},
					},
				},
			},
		},
	}
	provider := &Provider{models: stub, model: defaultModel}

	payload, err := provider.Translate(context.Background(), relay.TranslateInput{
		Text:       "hello",
		TargetLang: "fr",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if payload.Text != "bonjour" {
		t.Errorf("Text = %q, want %q", payload.Text, "bonjour")
	}
}

func TestTranslateAppliesTemperature(t *testing.T) {
	temperature := float32(0.2)
	stub := &stubModelsClient{
		response: responseWithText(`{"translation":"bonjour"}`),
	}
	provider := &Provider{models: stub, model: defaultModel, temperature: &temperature}

	if _, err := provider.Translate(context.Background(), relay.TranslateInput{
		Text:       "hello",
		TargetLang: "fr",
	}); err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if stub.lastConfig == nil || stub.lastConfig.Temperature == nil {
		t.Fatal("config temperature is nil, want set")
	}
	if *stub.lastConfig.Temperature != temperature {
		t.Errorf("temperature = %v, want %v", *stub.lastConfig.Temperature, temperature)
	}
}

func TestTranslatePropagatesBackendError(t *testing.T) {
	backendErr := errors.New("boom")
	provider := &Provider{models: &stubModelsClient{err: backendErr}, model: defaultModel}

	_, err := provider.Translate(context.Background(), relay.TranslateInput{
		Text:       "hello",
		TargetLang: "fr",
	})
	if !errors.Is(err, backendErr) {
		t.Fatalf("Translate() error = %v, want wrapped backend error", err)
	}
}

func TestTranslateRejectsMalformedResponses(t *testing.T) {
	cases := []struct {
		name     string
		response *genai.GenerateContentResponse
	}{
		{name: "nil response", response: nil},
		{name: "no candidates", response: &genai.GenerateContentResponse{}},
		{name: "empty text", response: responseWithText("   ")},
		{name: "not json", response: responseWithText("bonjour")},
		{name: "missing translation", response: responseWithText(`{"detected_source_lang":"en"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &Provider{models: &stubModelsClient{response: tc.response}, model: defaultModel}
			if _, err := provider.Translate(context.Background(), relay.TranslateInput{
				Text:       "hello",
				TargetLang: "fr",
			}); err == nil {
				t.Error("Translate() error = nil, want mapping failure")
			}
		})
	}
}

func TestNormalizeProviderConfig(t *testing.T) {
	negative := -0.5

	cases := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{name: "missing api key", cfg: ProviderConfig{}, wantErr: true},
		{name: "bad base url", cfg: ProviderConfig{APIKey: "k", BaseURL: "not-a-url"}, wantErr: true},
		{name: "negative temperature", cfg: ProviderConfig{APIKey: "k", Temperature: &negative}, wantErr: true},
		{name: "fills defaults", cfg: ProviderConfig{APIKey: "k"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized, err := normalizeProviderConfig(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Error("normalizeProviderConfig() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeProviderConfig() error = %v", err)
			}
			if normalized.Model != defaultModel {
				t.Errorf("Model = %q, want %q", normalized.Model, defaultModel)
			}
			if normalized.APIVersion != defaultAPIVersion {
				t.Errorf("APIVersion = %q, want %q", normalized.APIVersion, defaultAPIVersion)
			}
		})
	}
}
