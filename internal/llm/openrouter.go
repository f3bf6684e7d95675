package llm

import (
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterAppName = "studyctl"
)

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible API through
// the OpenAI provider. Model ids such as "anthropic/claude-3-haiku" are
// passed through unchanged.
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
// Requests carry OpenRouter's app attribution headers so study traffic
// can be told apart on the account dashboard.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenRouterBaseURL
	}
	app := cfg.AppName
	if app == "" {
		app = defaultOpenRouterAppName
	}
	config.HTTPClient = &http.Client{Transport: &attributionTransport{
		base:    http.DefaultTransport,
		title:   app,
		referer: cfg.SiteURL,
	}}

	return &OpenRouterProvider{OpenAIProvider: &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}}, nil
}

// attributionTransport adds the X-Title and HTTP-Referer headers.
type attributionTransport struct {
	base    http.RoundTripper
	title   string
	referer string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("X-Title", t.title)
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	return t.base.RoundTrip(req)
}
