package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/arcadewallet/service/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP sidecar that exposes the game operations to local clients.
type Server struct {
	addr         string
	game         Game
	writeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server. confirmationTimeout bounds how long a mutation
// can block, so the write timeout is derived from it.
// If m is nil, the /metrics endpoint is not served.
func New(addr string, g Game, confirmationTimeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:         addr,
		game:         g,
		writeTimeout: confirmationTimeout + 30*time.Second,
		metrics:      m,
		logger:       logger,
	}
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.InstrumentHandler(s.metrics, name, h))
	}

	route("POST /api/v1/signers", "/api/v1/signers", handleDeriveSigner(s.game, s.logger))
	route("POST /api/v1/address", "/api/v1/address", handleAddress(s.game, s.logger))
	route("POST /api/v1/balance", "/api/v1/balance", handleNativeBalance(s.game, s.logger))
	route("POST /api/v1/token-balance", "/api/v1/token-balance", handleTokenBalance(s.game, s.logger))
	route("POST /api/v1/buy", "/api/v1/buy", handleBuyToken(s.game, s.logger))
	route("POST /api/v1/score", "/api/v1/score", handleSaveScore(s.game, s.logger))
	route("GET /api/v1/score", "/api/v1/score", handleGetScore(s.game, s.logger))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "metrics", s.metrics != nil)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
// In-flight submissions finish; their transactions cannot be recalled anyway.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
