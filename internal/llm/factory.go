package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/studyctl/internal/store"
)

// ProviderOptions are the collaborators of a Provider built by NewProvider.
type ProviderOptions struct {
	// Events receives one record per request. Required.
	Events store.EventRepo
	Logger *slog.Logger
	// OnRetry observes retried attempts, labelled with the provider name
	// and RetryReason.
	OnRetry func(provider, reason string)
}

// NewProvider creates the assistant provider named by cfg, wrapped so
// that every attempt is recorded and transient failures are retried:
// caller, retry, logging, base.
func NewProvider(ctx context.Context, cfg Config, opts ProviderOptions) (Provider, error) {
	if opts.Events == nil {
		return nil, fmt.Errorf("llm provider %q: event repo is required", cfg.Provider)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base, err := newBaseProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	retryOpts := []RetryOption{RetryLogger(logger.With("provider", cfg.Provider))}
	if opts.OnRetry != nil {
		name := cfg.Provider
		retryOpts = append(retryOpts, OnRetry(func(reason string) { opts.OnRetry(name, reason) }))
	}
	logged := WithLogging(base, cfg.Provider, opts.Events, logger)
	return WithRetry(logged, cfg.Retry, retryOpts...), nil
}

func newBaseProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		return NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		return NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
