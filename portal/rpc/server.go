// Package rpc is the HTTP surface of the orchestrator. It answers JSON queries over the
// connection graph, planner, community pool and transfer ledger, streams action progress
// over a websocket, and optionally drives an operator-held transfer session.
package rpc

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/skalenetwork/portal-sub000/portal/graph"
	"github.com/skalenetwork/portal-sub000/portal/ledger"
	"github.com/skalenetwork/portal-sub000/portal/pool"
	"github.com/skalenetwork/portal-sub000/portal/progress"
	"github.com/skalenetwork/portal-sub000/portal/router"
	"github.com/skalenetwork/portal-sub000/portal/tasks"
	"github.com/skalenetwork/portal-sub000/portal/transfer"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "rpc").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l.With().Str("component", "rpc").Logger()
}

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         *int
	MaxConcurrentRequests *int
	// PoolRefresh is how often a watched community pool status is recomputed.
	PoolRefresh time.Duration
	OTelConfig  *OTelConfig
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() *ServerConfig {
	rateLimit := 0
	maxConcurrentRequests := 200
	return &ServerConfig{
		Address:               "localhost:8080",
		AllowedOrigins:        []string{"http://localhost:3000", "http://localhost:8080"},
		EnableMetrics:         true,
		RatePerMinute:         &rateLimit,
		MaxConcurrentRequests: &maxConcurrentRequests,
		PoolRefresh:           10 * time.Second,
		OTelConfig:            DefaultOTelConfig(),
	}
}

// Services are the components the server exposes. Pool and Tasks are optional, without them
// the pool endpoint answers 404. Session is the operator's own transfer session, the session
// endpoints are only mounted when it is set.
type Services struct {
	Graph   *graph.Graph
	Planner *router.Planner
	Ledger  *ledger.Ledger
	Bus     *progress.Bus
	Pool    *pool.Accountant
	Tasks   *tasks.Runner
	Session *transfer.Session
}

// Server wraps the HTTP server and provides lifecycle management
type Server struct {
	config       *ServerConfig
	httpServer   *http.Server
	handler      http.Handler
	api          *api
	otelShutdown func(context.Context) error
}

// NewServer creates a new HTTP server with the given configuration
func NewServer(ctx context.Context, config *ServerConfig, svc Services) (*Server, error) {
	if config == nil {
		config = DefaultServerConfig()
	}

	var otelShutdown func(context.Context) error
	if config.OTelConfig.enabled() {
		shutdown, err := NewOTelSDK(ctx, config.OTelConfig)
		if err != nil {
			// serve without telemetry
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
		} else {
			otelShutdown = shutdown
		}
	}

	mux := chi.NewMux()
	mux.Use(zerologMiddleware)
	mux.Use(zerologRecoverer)
	mux.Use(middleware.RequestID)
	mux.Use(realIPMiddleware)
	if config.OTelConfig != nil && config.OTelConfig.EnableTracing {
		mux.Use(tracingMiddleware)
	}
	if config.RatePerMinute != nil && *config.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(*config.RatePerMinute, 1*time.Minute))
	}

	if config.EnableMetrics || (config.OTelConfig != nil && config.OTelConfig.UsePrometheus) {
		mux.Handle("/server/metrics", promhttp.Handler())
	}
	mux.Get("/server/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "portal"})
	})
	mux.Get("/server/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	a := newAPI(ctx, svc, config.PoolRefresh)
	mux.Route("/api/v1", func(r chi.Router) {
		r.Use(noCacheMiddleware)
		// the stream is long lived, it neither holds a throttle slot nor runs under the request timeout
		r.Get("/progress/stream", a.stream)

		r.Group(func(r chi.Router) {
			if config.MaxConcurrentRequests != nil && *config.MaxConcurrentRequests > 0 {
				r.Use(middleware.Throttle(*config.MaxConcurrentRequests))
			}
			r.Use(middleware.Compress(5))
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/chains", a.chains)
			r.Get("/tokens", a.tokens)
			r.Get("/tokens/wrapped", a.wrappedTokens)
			r.Get("/plan", a.plan)
			r.Get("/pool/{address}", a.poolStatus)
			r.Get("/transfers", a.transfers)
			r.Get("/stats", a.stats)

			if a.op != nil {
				r.Get("/session", a.getSession)
				r.Post("/session/select", a.selectTransfer)
				r.Post("/session/check", a.checkStep)
				r.Post("/session/execute", a.executeStep)
				r.Post("/session/unwrap", a.unwrapAll)
			}
		})
	})

	handler := newCORSHandler(config.AllowedOrigins, mux)
	httpServer := &http.Server{
		Addr:              config.Address,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		config:       config,
		httpServer:   httpServer,
		handler:      handler,
		api:          a,
		otelShutdown: otelShutdown,
	}, nil
}

// Handler returns the routed handler without the h2c wrapper.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving without TLS
func (s *Server) Start() error {
	s.logServerInfo("http")
	return s.httpServer.ListenAndServe()
}

// StartTLS begins serving with TLS
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logServerInfo("https")
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) logServerInfo(protocol string) {
	Logger.Info().
		Str("address", s.config.Address).
		Str("protocol", protocol).
		Msg("Portal server starting")

	Logger.Info().Msg("Available endpoints:")
	Logger.Info().Msg("\tAPI: /api/v1/*")
	Logger.Info().Msg("\tProgress stream: /api/v1/progress/stream")
	if s.api.op != nil {
		Logger.Info().Msg("\tSession: /api/v1/session/*")
	}
	Logger.Info().Msg("\tHealth: /server/health")
	Logger.Info().Msg("\tReady: /server/ready")
	if s.config.EnableMetrics || (s.config.OTelConfig != nil && s.config.OTelConfig.UsePrometheus) {
		Logger.Info().Msg("\tMetrics: /server/metrics")
	}
}

// Shutdown stops the pool watchers, drains the HTTP server and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down server...")

	s.api.close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			Logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			return err
		}
	}

	Logger.Info().Msg("Server shutdown complete")
	return nil
}
