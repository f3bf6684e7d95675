// Package server exposes the study backend over HTTP.
//
// All study routes live under /api and identify the caller with the
// X-Participant-ID header. Registration is the only route that does not
// require it.
//
//	POST   /api/participants                      register
//	GET    /api/participants/me                   profile
//	POST   /api/participants/me/consent           record consent
//	POST   /api/participants/me/assessments/:kind pre or post assessment
//	POST   /api/participants/me/interaction       failsafe interaction flag
//	GET    /api/participants/me/cost-limits       cost ledger
//	POST   /api/sessions                          start or resume
//	GET    /api/sessions/:id
//	PUT    /api/sessions/:id/phase
//	POST   /api/sessions/:id/complete
//	PUT    /api/sessions/:id/time
//	POST   /api/sessions/:id/events
//	POST   /api/sessions/:id/conversation         start conversation
//	DELETE /api/sessions/:id/conversation         end conversation
//	POST   /api/sessions/:id/exchanges
//	GET    /api/version
//	GET    /healthz
//	GET    /metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abhisek/studyctl/internal/backend"
	"github.com/abhisek/studyctl/internal/metrics"
)

// Options configures a Server.
type Options struct {
	Service *backend.Service
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// Build is reported by /api/version.
	Build string
}

// Server is the HTTP front of a backend.Service.
type Server struct {
	svc     *backend.Service
	metrics *metrics.Metrics
	log     *slog.Logger
	engine  *gin.Engine
	build   string
}

// New builds the router.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: service is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		svc:     opts.Service,
		metrics: opts.Metrics,
		log:     opts.Logger.With("component", "server"),
		build:   opts.Build,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.observe())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/version", s.handleVersion)
	api.POST("/participants", s.handleRegister)

	me := api.Group("/participants/me", s.requireParticipant())
	me.GET("", s.handleProfile)
	me.POST("/consent", s.handleConsent)
	me.POST("/assessments/:kind", s.handleAssessment)
	me.POST("/interaction", s.handleInteractionComplete)
	me.GET("/cost-limits", s.handleCostLimits)

	sessions := api.Group("/sessions", s.requireParticipant())
	sessions.POST("", s.handleStartSession)
	sessions.GET("/:id", s.handleGetSession)
	sessions.PUT("/:id/phase", s.handleUpdatePhase)
	sessions.POST("/:id/complete", s.handleCompleteSession)
	sessions.PUT("/:id/time", s.handleUpdateTime)
	sessions.POST("/:id/events", s.handleLogEvent)
	sessions.POST("/:id/conversation", s.handleStartConversation)
	sessions.DELETE("/:id/conversation", s.handleEndConversation)
	sessions.POST("/:id/exchanges", s.handleExchange)

	s.engine = r
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
