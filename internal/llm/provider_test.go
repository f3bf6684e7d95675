package llm

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abhisek/studyctl/internal/store"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: "first reply", Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Text: "second reply"},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "first"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp1.Text != "first reply" {
		t.Fatalf("expected 'first reply', got %q", resp1.Text)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "second"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp2.Text != "second reply" {
		t.Fatalf("expected 'second reply', got %q", resp2.Text)
	}
}

func TestMockProvider_EmptyQueueEchoes(t *testing.T) {
	mock := NewMockProvider()
	resp, err := mock.Generate(context.Background(), Request{Messages: []Message{
		{Role: RoleUser, Content: "what is osmosis?"},
		{Role: RoleAssistant, Content: "water moving"},
		{Role: RoleUser, Content: "across what?"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Text, "across what?") {
		t.Fatalf("expected echo of last user message, got %q", resp.Text)
	}
	if resp.Usage.OutputTokens == 0 {
		t.Fatal("expected non-zero usage from echo")
	}
}

func TestMockProvider_StrictEmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	mock.Strict = true
	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error from empty queue")
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: "hi"},
	)

	req := Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	}
	_, _ = mock.Generate(context.Background(), req)

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].System != "sys" {
		t.Fatalf("expected system 'sys', got %q", mock.Calls[0].System)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{RetryAfter: 0}},
	)

	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestMockProvider_ModelID(t *testing.T) {
	mock := NewMockProvider()
	if mock.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", mock.ModelID())
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithPurpose(ctx, PurposeExchange)
	if p := PurposeFrom(ctx); p != "exchange" {
		t.Fatalf("expected 'exchange', got %q", p)
	}
	if s := SessionFrom(ctx); s != "" {
		t.Fatalf("expected no session, got %q", s)
	}

	ctx = WithSession(ctx, "s-1")
	if p, s := PurposeFrom(ctx), SessionFrom(ctx); p != "exchange" || s != "s-1" {
		t.Fatalf("attribution lost: purpose %q session %q", p, s)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "anthropic without key",
			cfg:     Config{Provider: "anthropic"},
			wantErr: true,
		},
		{
			name:    "anthropic with key",
			cfg:     Config{Provider: "anthropic", Anthropic: AnthropicConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openai without key",
			cfg:     Config{Provider: "openai"},
			wantErr: true,
		},
		{
			name:    "openai with key",
			cfg:     Config{Provider: "openai", OpenAI: OpenAIConfig{APIKey: "sk-test"}},
			wantErr: false,
		},
		{
			name:    "openrouter with key",
			cfg:     Config{Provider: "openrouter", OpenRouter: OpenRouterConfig{APIKey: "sk-or"}},
			wantErr: false,
		},
		{
			name:    "mock needs no key",
			cfg:     Config{Provider: "mock"},
			wantErr: false,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STUDYCTL_LLM_PROVIDER", "openai")
	t.Setenv("STUDYCTL_OPENAI_API_KEY", "sk-env")
	t.Setenv("STUDYCTL_OPENAI_MODEL", "gpt-4.1-mini")
	t.Setenv("STUDYCTL_LLM_MAX_TOKENS", "512")

	cfg := ConfigFromEnv()
	if cfg.Provider != "openai" || cfg.OpenAI.APIKey != "sk-env" || cfg.OpenAI.Model != "gpt-4.1-mini" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.MaxTokens != 512 {
		t.Fatalf("expected max tokens 512, got %d", cfg.MaxTokens)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestExchangeCost(t *testing.T) {
	got := ExchangeCost("gpt-4o-mini", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	if math.Abs(got-0.75) > 1e-9 {
		t.Fatalf("expected 0.75, got %v", got)
	}

	// Unknown models use the fallback rate rather than costing nothing.
	unknown := ExchangeCost("some-new-model", Usage{InputTokens: 1000, OutputTokens: 1000})
	if unknown <= 0 {
		t.Fatalf("expected positive fallback cost, got %v", unknown)
	}
	if LookupCost("some-new-model") != nil {
		t.Fatal("expected nil cost for unknown model")
	}
}

func TestLoggingProvider_RecordsEvents(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "llm.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mock := NewMockProvider(
		MockResponse{Text: "a reply", Usage: Usage{InputTokens: 12, OutputTokens: 4}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
	)
	p := WithLogging(mock, "mock", s.EventRepo(), nil)
	ctx := WithSession(WithPurpose(context.Background(), PurposeExchange), "s-7")

	req := Request{System: "be kind", Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	if _, err := p.Generate(ctx, req); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := p.Generate(ctx, req); err == nil {
		t.Fatal("expected second call to fail")
	}

	events, err := s.EventRepo().QueryLLMEvents(context.Background(), store.QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	failed, ok := events[0], events[1]
	if failed.Success || failed.ErrorMessage == "" {
		t.Errorf("expected failed event first, got %+v", failed)
	}
	if !ok.Success || ok.InputTokens != 12 || ok.ResponseBody != "a reply" || ok.Purpose != "exchange" || ok.SessionID != "s-7" {
		t.Errorf("unexpected success event: %+v", ok)
	}
	if !strings.Contains(ok.RequestBody, "[system]") || !strings.Contains(ok.RequestBody, "hello") {
		t.Errorf("request body not serialized: %q", ok.RequestBody)
	}
}
