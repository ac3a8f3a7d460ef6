package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/ajo/internal/auth"
	"github.com/mmynk/ajo/internal/config"
	"github.com/mmynk/ajo/internal/engine"
	"github.com/mmynk/ajo/internal/events"
	"github.com/mmynk/ajo/internal/metrics"
	"github.com/mmynk/ajo/internal/middleware"
	"github.com/mmynk/ajo/internal/service"
	"github.com/mmynk/ajo/internal/status"
	"github.com/mmynk/ajo/internal/storage"
	"github.com/mmynk/ajo/internal/storage/memory"
	"github.com/mmynk/ajo/internal/storage/sqlite"
	"github.com/mmynk/ajo/internal/telemetry"
	"github.com/mmynk/ajo/pkg/logging"
)

const (
	serviceName = "ajo"
	version     = "0.1.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  serviceName,
		Version:      version,
		Endpoint:     cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
		Storage:      cfg.Storage,
		PayoutPolicy: cfg.PayoutPolicy,
	})
	if err != nil {
		slog.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	policy, err := engine.ParsePayoutPolicy(cfg.PayoutPolicy)
	if err != nil {
		slog.Error("Invalid payout policy", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	ledger := engine.New(store,
		engine.WithPayoutPolicy(policy),
		engine.WithRefundVotingPeriod(int64(cfg.RefundVoting/time.Second)),
		engine.WithLogger(logger),
		engine.WithEmitter(events.NewEmitter(events.LogSink{Logger: logger}, m)),
	)
	svc := service.NewLedgerService(ledger, status.NewProjector(store))

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authInterceptor := middleware.RequireAuth(jwtManager)
	if cfg.PublicReads {
		authInterceptor = middleware.OptionalAuth(jwtManager)
	}

	ledgerPath, ledgerHandler := service.NewLedgerServiceHandler(svc, connect.WithInterceptors(
		m.Interceptor(),
		authInterceptor,
		middleware.LoggingInterceptor(),
	))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())
	r.Handle(ledgerPath+"*", ledgerHandler)

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Connect server starting",
			"address", server.Addr,
			"storage", cfg.Storage,
			"payout_policy", string(policy),
			"public_reads", cfg.PublicReads,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage == "memory" {
		slog.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), nil
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Storage initialized", "database", cfg.DBPath)
	return store, nil
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, "+middleware.ErrorKindHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
