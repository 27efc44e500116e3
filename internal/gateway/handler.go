// Package gateway is the chat-platform boundary. It converts neutral inbound
// chat triggers into translation requests and renders outcomes into
// user-visible reply text. The transport itself (event delivery, message
// fetching, reply posting) belongs to the hosting chat integration.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lingorelay/pkg/relay"
)

// User-visible reply templates.
const (
	msgUnsupportedLanguage = "Sorry, `%s` is not a supported language code. Please choose from the list."
	msgPreferenceSaved     = "Your preferred language has been set to **%s** (`%s`)."
	msgPreferenceFailed    = "An error occurred while saving your preference. Please try again later."
	msgNoPreference        = "I don't know your preferred language yet! Please use /set_language to set it up."
	msgEmptyMessage        = "This message has no text to translate."
	msgMonthlyLimit        = "The monthly translation limit has been reached. Please try again next month."
	msgBusy                = "The translation service is busy right now. Please try again in a moment."
	msgUnavailable         = "Translation service is currently unavailable."
)

// Dispatcher resolves one translation request to a terminal outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, request relay.TranslationRequest) (relay.TranslationResult, error)
}

// Inbound is one neutral chat trigger handed to the gateway.
type Inbound struct {
	// MessageText is the body of the message to translate.
	MessageText string
	// RequesterID is the opaque chat-platform identity of the requester.
	RequesterID string
	// Emoji is the reaction emoji for flag-reaction triggers.
	Emoji string
	// TargetLang is the explicit target language for command triggers.
	TargetLang string
}

// Option mutates Handler construction parameters.
type Option func(*Handler)

// WithLogger overrides the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler converts chat triggers into dispatches and outcomes into replies.
type Handler struct {
	dispatcher Dispatcher
	prefs      relay.PreferenceStore
	logger     *slog.Logger
}

// NewHandler builds one gateway handler.
func NewHandler(dispatcher Dispatcher, prefs relay.PreferenceStore, opts ...Option) (*Handler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("new handler: nil dispatcher")
	}
	if prefs == nil {
		return nil, fmt.Errorf("new handler: nil preference store")
	}

	h := &Handler{
		dispatcher: dispatcher,
		prefs:      prefs,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// HandleReaction handles one flag-emoji reaction trigger.
//
// Non-flag emojis are not triggers; handled is false and the caller posts
// nothing. A recognized flag always produces a reply, either the translation
// or a user-visible error string.
func (h *Handler) HandleReaction(ctx context.Context, in Inbound) (reply string, handled bool, err error) {
	target, ok := relay.FlagToLanguage[in.Emoji]
	if !ok {
		return "", false, nil
	}
	if strings.TrimSpace(in.MessageText) == "" {
		return "", false, nil
	}

	h.logger.InfoContext(ctx, "flag reaction trigger",
		"requester_id", in.RequesterID,
		"target_lang", target,
	)

	reply, err = h.translate(ctx, in.MessageText, target, in.RequesterID)
	return reply, true, err
}

// HandleCommand handles one explicit translation command.
//
// An empty TargetLang falls back to the requester's stored preference; a
// requester with no stored preference is prompted to set one.
func (h *Handler) HandleCommand(ctx context.Context, in Inbound) (string, error) {
	if strings.TrimSpace(in.MessageText) == "" {
		return msgEmptyMessage, nil
	}

	target := strings.TrimSpace(in.TargetLang)
	if target == "" {
		stored, ok, err := h.prefs.GetPreference(ctx, in.RequesterID)
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to load language preference",
				"requester_id", in.RequesterID,
				"error", err,
			)
			return msgUnavailable, err
		}
		if !ok {
			return msgNoPreference, nil
		}
		target = stored
	}

	if !relay.IsSupportedLanguage(target) {
		return fmt.Sprintf(msgUnsupportedLanguage, target), nil
	}

	return h.translate(ctx, in.MessageText, target, in.RequesterID)
}

// SetPreference stores one requester's preferred target language and returns
// the confirmation reply (the original /set_language flow).
func (h *Handler) SetPreference(ctx context.Context, requesterID, lang string) (string, error) {
	lang = strings.TrimSpace(lang)
	name, ok := relay.SupportedLanguages[lang]
	if !ok {
		return fmt.Sprintf(msgUnsupportedLanguage, lang), nil
	}

	if err := h.prefs.SetPreference(ctx, requesterID, lang); err != nil {
		h.logger.ErrorContext(ctx, "failed to save language preference",
			"requester_id", requesterID,
			"error", err,
		)
		return msgPreferenceFailed, err
	}

	h.logger.InfoContext(ctx, "language preference saved",
		"requester_id", requesterID,
		"language", lang,
	)

	return fmt.Sprintf(msgPreferenceSaved, name, lang), nil
}

// translate dispatches one request and renders the outcome.
func (h *Handler) translate(ctx context.Context, text, target, requesterID string) (string, error) {
	request := relay.NewRequest(text, "", target, requesterID)
	result, err := h.dispatcher.Dispatch(ctx, request)
	if err != nil {
		return h.renderFailure(ctx, request, err), err
	}

	return result.TranslatedText, nil
}

// renderFailure maps one terminal dispatch error to user-visible reply text.
func (h *Handler) renderFailure(ctx context.Context, request relay.TranslationRequest, err error) string {
	kind := relay.ClassifyFailure(err)
	h.logger.WarnContext(ctx, "translation request failed",
		"request_id", request.ID,
		"failure_kind", string(kind),
		"error", err,
	)

	switch kind {
	case relay.FailureKindQuotaRejected, relay.FailureKindQuotaExceeded:
		return msgMonthlyLimit
	case relay.FailureKindBackpressure, relay.FailureKindTimeout:
		return msgBusy
	case relay.FailureKindInvalidRequest:
		return msgEmptyMessage
	default:
		return msgUnavailable
	}
}
