package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"lingorelay/internal/cache"
	"lingorelay/internal/dispatch"
	"lingorelay/internal/gateway"
	"lingorelay/internal/metrics"
	"lingorelay/internal/quota"
	"lingorelay/internal/store/sqlite"
	translateclient "lingorelay/internal/translate"
	"lingorelay/pkg/relay"
	"lingorelay/pkg/translate"
	"lingorelay/pkg/translate/providers/google"
	"lingorelay/pkg/translate/providers/openai"
)

// consoleRequester identifies the local console session in the preference
// store and the audit trail.
const consoleRequester = "console"

func runService(ctx context.Context) error {
	logger := newLogger(viper.GetString("log.level"))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(viper.GetString("store.path"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}()

	store, err := sqlite.NewStore(db, sqlite.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("new store: %w", err)
	}

	sink := metrics.NewLoggingSink(metrics.NewCollector(), logger)

	ledger, err := quota.NewLedger(store,
		quota.WithMonthlyLimit(viper.GetInt64("quota.monthly_char_limit")),
		quota.WithSafetyFactor(viper.GetFloat64("quota.safety_factor")),
		quota.WithLedgerLogger(logger),
		quota.WithMetrics(sink),
	)
	if err != nil {
		return fmt.Errorf("new usage ledger: %w", err)
	}

	governor := quota.New(
		quota.WithWindow(viper.GetDuration("quota.window")),
		quota.WithCallLimit(viper.GetInt("quota.limit")),
		quota.WithMaxWaiters(viper.GetInt("quota.max_waiters")),
		quota.WithLedger(ledger),
	)

	pairCache := cache.New(
		cache.WithCapacity(viper.GetInt("cache.capacity")),
		cache.WithTTL(viper.GetDuration("cache.ttl")),
	)

	backend, err := buildBackend()
	if err != nil {
		return fmt.Errorf("build translation backend: %w", err)
	}

	client, err := translateclient.NewClient(backend,
		translateclient.WithAttemptTimeout(viper.GetDuration("translate.attempt_timeout")),
		translateclient.WithMaxAttempts(viper.GetInt("translate.max_attempts")),
		translateclient.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("new translation client: %w", err)
	}

	coordinator, err := dispatch.NewCoordinator(pairCache, governor, client, store,
		dispatch.WithRequestDeadline(viper.GetDuration("dispatch.request_deadline")),
		dispatch.WithMaxQuotaWait(viper.GetDuration("dispatch.max_quota_wait")),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(sink),
	)
	if err != nil {
		return fmt.Errorf("new coordinator: %w", err)
	}

	handler, err := gateway.NewHandler(coordinator, store, gateway.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("new gateway handler: %w", err)
	}

	logger.Info("lingorelay ready",
		"provider", viper.GetString("translate.provider"),
		"store_path", viper.GetString("store.path"),
	)

	if err := serveConsole(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve console: %w", err)
	}

	logger.Info("lingorelay shut down")

	return nil
}

// buildBackend constructs every configured provider and resolves the active one.
func buildBackend() (relay.Translator, error) {
	providers := make(map[string]relay.Translator)

	if apiKey := viper.GetString("translate.google.api_key"); apiKey != "" {
		var temperature *float64
		if viper.IsSet("translate.google.temperature") {
			value := viper.GetFloat64("translate.google.temperature")
			temperature = &value
		}
		provider, err := google.New(google.ProviderConfig{
			APIKey:      apiKey,
			BaseURL:     viper.GetString("translate.google.base_url"),
			Model:       viper.GetString("translate.google.model"),
			Temperature: temperature,
		})
		if err != nil {
			return nil, err
		}
		providers["google"] = provider
	}

	if apiKey := viper.GetString("translate.openai.api_key"); apiKey != "" {
		provider, err := openai.New(openai.ProviderConfig{
			APIKey:  apiKey,
			BaseURL: viper.GetString("translate.openai.base_url"),
			Model:   viper.GetString("translate.openai.model"),
		})
		if err != nil {
			return nil, err
		}
		providers["openai"] = provider
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("no translation backend configured: set translate.google.api_key or translate.openai.api_key")
	}

	registry, err := translate.NewRegistry(providers)
	if err != nil {
		return nil, err
	}

	return registry.Resolve(viper.GetString("translate.provider"))
}

// serveConsole runs a line-oriented session against the gateway until ctx is
// canceled or stdin closes.
//
// Input forms:
//
//	/set <lang>        store the session's preferred language
//	/to <lang> <text>  translate text to an explicit language
//	<flag> <text>      translate text to the flag emoji's language
//	<text>             translate text to the stored preference
func serveConsole(ctx context.Context, handler *gateway.Handler) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if reply := handleConsoleLine(ctx, handler, line); reply != "" {
				fmt.Println(reply)
			}
		}
	}
}

func handleConsoleLine(ctx context.Context, handler *gateway.Handler, line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(line, "/set "):
		reply, _ := handler.SetPreference(ctx, consoleRequester, strings.TrimSpace(strings.TrimPrefix(line, "/set ")))
		return reply

	case strings.HasPrefix(line, "/to "):
		rest := strings.TrimSpace(strings.TrimPrefix(line, "/to "))
		lang, text, _ := strings.Cut(rest, " ")
		reply, _ := handler.HandleCommand(ctx, gateway.Inbound{
			MessageText: strings.TrimSpace(text),
			RequesterID: consoleRequester,
			TargetLang:  lang,
		})
		return reply
	}

	if emoji, text, ok := strings.Cut(line, " "); ok {
		reply, handled, _ := handler.HandleReaction(ctx, gateway.Inbound{
			MessageText: strings.TrimSpace(text),
			RequesterID: consoleRequester,
			Emoji:       emoji,
		})
		if handled {
			return reply
		}
	}

	reply, _ := handler.HandleCommand(ctx, gateway.Inbound{
		MessageText: line,
		RequesterID: consoleRequester,
	})
	return reply
}
