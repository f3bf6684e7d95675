package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/abhisek/studyctl/internal/backend"
	"github.com/abhisek/studyctl/internal/llm"
	"github.com/abhisek/studyctl/internal/metrics"
	"github.com/abhisek/studyctl/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the study backend HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		logger := slog.Default()

		var (
			m        *metrics.Metrics
			gatherer prometheus.Gatherer
		)
		if cfg.Server.MetricsEnabled {
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			m = metrics.New(reg)
			gatherer = reg
		}

		provider, llmCfg, err := resolveProvider(cmd, llm.ProviderOptions{
			Events:  st.EventRepo(),
			Logger:  logger,
			OnRetry: m.LLMRetried,
		})
		if err != nil {
			return err
		}

		svc, err := backend.New(backend.Options{
			Store:    st,
			Provider: provider,
			Limits: backend.Limits{
				Daily:  cfg.Costs.DailyLimit,
				Weekly: cfg.Costs.WeeklyLimit,
			},
			SystemPrompt:  cfg.Server.SystemPrompt,
			MaxTokens:     llmCfg.MaxTokens,
			LLMTimeout:    llmCfg.Timeout,
			ExchangeRate:  rate.Limit(cfg.Server.ExchangesPerMinute / 60),
			ExchangeBurst: cfg.Server.ExchangeBurst,
			Metrics:       m,
			Logger:        logger,
		})
		if err != nil {
			return fmt.Errorf("create backend: %w", err)
		}

		srv, err := server.New(server.Options{
			Service:  svc,
			Metrics:  m,
			Gatherer: gatherer,
			Logger:   logger,
			Build:    version,
		})
		if err != nil {
			return err
		}
		return srv.Run(ctx, cfg.Server.Addr)
	},
}

// resolveProvider builds the assistant provider. An explicit
// STUDYCTL_LLM_PROVIDER wins; otherwise the first standard API key found
// is used. With neither, the server runs without the conversational
// condition.
func resolveProvider(cmd *cobra.Command, opts llm.ProviderOptions) (llm.Provider, llm.Config, error) {
	logger := opts.Logger
	llmCfg := llm.ConfigFromEnv()
	if name, _ := cmd.Flags().GetString("llm-provider"); name != "" {
		llmCfg.Provider = name
	} else if os.Getenv("STUDYCTL_LLM_PROVIDER") == "" {
		discovered, ok := llm.DiscoverConfig()
		if !ok {
			logger.Warn("no LLM provider configured, conversational sessions will be refused")
			return nil, llmCfg, nil
		}
		llmCfg = discovered
	}
	if err := llmCfg.Validate(); err != nil {
		return nil, llmCfg, fmt.Errorf("llm config: %w", err)
	}
	provider, err := llm.NewProvider(cmd.Context(), llmCfg, opts)
	if err != nil {
		return nil, llmCfg, err
	}
	logger.Info("llm provider ready", "provider", llmCfg.Provider, "model", provider.ModelID())
	return provider, llmCfg, nil
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.Flags().String("llm-provider", "", "LLM provider: anthropic, openai, gemini, openrouter or mock")
}
