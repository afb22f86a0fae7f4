package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/efreitasn/papertrader/internal/auth"
	"github.com/efreitasn/papertrader/internal/config"
	"github.com/efreitasn/papertrader/internal/handler"
	"github.com/efreitasn/papertrader/internal/ledger"
	"github.com/efreitasn/papertrader/internal/quote"
	"github.com/efreitasn/papertrader/internal/service"
	"github.com/efreitasn/papertrader/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("driver", cfg.StoreDriver),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer st.Close()

	oracle, err := openOracle(cfg, logger)
	if err != nil {
		logger.Error("failed to set up quotes",
			slog.String("provider", cfg.QuoteProvider),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		logger.Error("invalid bcrypt cost", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sessions := auth.NewSessionManager(cfg.SessionTTL, cfg.SessionSweepInterval)

	eng := ledger.New()
	accountSvc := service.NewAccountService(st, eng, hasher, sessions, logger)
	tradeSvc := service.NewTradeService(st, eng, oracle, cfg.QuoteTimeout, logger)

	// Router.
	router := handler.NewRouter(accountSvc, tradeSvc, logger)

	// Sweep expired sessions until shutdown.
	sessions.Start(ctx)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("store", cfg.StoreDriver),
			slog.String("quotes", cfg.QuoteProvider),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then the session sweeper.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}

// openStore connects the configured ledger backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	case config.StorePostgres:
		return store.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return store.NewSQLiteStore(ctx, cfg.SQLitePath)
	}
}

// openOracle builds the configured price source.
func openOracle(cfg *config.Config, logger *slog.Logger) (quote.Oracle, error) {
	if cfg.QuoteProvider == config.QuoteStatic {
		return quote.LoadStatic(cfg.QuotesFile)
	}
	return quote.NewClient(cfg.QuoteBaseURL, cfg.EODHDAPIKey,
		quote.WithExchange(cfg.QuoteExchange),
		quote.WithTimeout(cfg.QuoteTimeout),
		quote.WithRetries(cfg.QuoteRetries, 200*time.Millisecond),
		quote.WithLogger(logger),
	), nil
}
