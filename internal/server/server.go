package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencode-ai/llmcall/internal/event"
	"github.com/opencode-ai/llmcall/internal/logging"
	"github.com/opencode-ai/llmcall/internal/orchestrator"
	"github.com/opencode-ai/llmcall/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxBodyBytes limits request bodies. Audio blocks make bodies large.
	MaxBodyBytes int64
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		CORSOrigins:  []string{"*"},
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // No write timeout for SSE and long model calls
		MaxBodyBytes: 32 << 20,
	}
}

// ConfigFrom applies the server section of an llmcall config to the
// defaults.
func ConfigFrom(sc *types.ServerConfig) *Config {
	cfg := DefaultConfig()
	if sc == nil {
		return cfg
	}
	if sc.Port != 0 {
		cfg.Port = sc.Port
	}
	if len(sc.CORSOrigins) > 0 {
		cfg.CORSOrigins = sc.CORSOrigins
	}
	return cfg
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	orch    *orchestrator.Orchestrator
	bus     *event.Bus
}

// New creates a new Server. bus is the bus the orchestrator publishes to; it
// backs the event stream. A nil bus means the global bus.
func New(cfg *Config, orch *orchestrator.Orchestrator, bus *event.Bus) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if bus == nil {
		bus = event.Default()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		orch:   orch,
		bus:    bus,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.config.MaxBodyBytes > 0 {
		s.router.Use(middleware.RequestSize(s.config.MaxBodyBytes))
	}
}

// requestLogger logs one line per request through the server component
// logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logging.Component("server").Info().
			Str("requestID", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	logging.Component("server").Info().Int("port", s.config.Port).Msg("listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
