// Package api exposes trust score evaluation over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"solana-risk-engine/internal/domain"
	"solana-risk-engine/internal/storage"
)

// Evaluator evaluates one token at a height.
type Evaluator interface {
	EvaluateToken(ctx context.Context, mint string, asOfHeight int64) (*domain.TrustScoreReport, error)
}

// SlotGetter resolves the current ledger height when a request omits it.
type SlotGetter interface {
	GetSlot(ctx context.Context) (int64, error)
}

// PurchaseLister lists the latest buys of a mint within its transfer window.
type PurchaseLister interface {
	RecentPurchases(ctx context.Context, mint string, asOfHeight int64, limit int) ([]domain.TransferEvent, bool, error)
}

// HealthCheck probes one backend. A nil error means ready.
type HealthCheck func(ctx context.Context) error

// Options for creating Server.
type Options struct {
	Addr        string
	Evaluator   Evaluator
	Reports     storage.ReportStore
	History     storage.SignalHistoryStore // optional, serves /history
	Purchases   PurchaseLister             // optional, serves /purchases
	ReportCache storage.ReportCache        // optional, consulted before evaluating
	Slots       SlotGetter                 // optional, required for requests without height
	Metrics     http.Handler               // optional, served on /metrics
	Checks      map[string]HealthCheck     // optional, run by /health

	RateLimitRPS   float64 // per client; <= 0 disables
	RateLimitBurst int
	EvalTimeout    time.Duration // Default: 30s

	ReadTimeout  time.Duration // Default: 10s
	WriteTimeout time.Duration // Default: 60s

	Logger *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	evaluator   Evaluator
	reports     storage.ReportStore
	history     storage.SignalHistoryStore
	purchases   PurchaseLister
	reportCache storage.ReportCache
	slots       SlotGetter
	checks      map[string]HealthCheck
	evalTimeout time.Duration
	logger      *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(opts Options) *Server {
	if opts.EvalTimeout <= 0 {
		opts.EvalTimeout = 30 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		router:      mux.NewRouter(),
		evaluator:   opts.Evaluator,
		reports:     opts.Reports,
		history:     opts.History,
		purchases:   opts.Purchases,
		reportCache: opts.ReportCache,
		slots:       opts.Slots,
		checks:      opts.Checks,
		evalTimeout: opts.EvalTimeout,
		logger:      logger,
	}

	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware(logger))
	s.router.Use(RecoveryMiddleware(logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if opts.Metrics != nil {
		s.router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.Use(RateLimitMiddleware(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)))
	v1.HandleFunc("/tokens/{mint}/score", s.handleScore).Methods(http.MethodGet)
	v1.HandleFunc("/tokens/{mint}/reports", s.handleReports).Methods(http.MethodGet)
	if s.history != nil {
		v1.HandleFunc("/tokens/{mint}/history", s.handleHistory).Methods(http.MethodGet)
	}
	if s.purchases != nil {
		v1.HandleFunc("/tokens/{mint}/purchases", s.handlePurchases).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. Returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("api server shutting down")
	return s.httpServer.Shutdown(ctx)
}
