/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load env configuration (.env tolerated), apply flag overrides, validate
  2. Build the zap logger
  3. Open the backend (sqlite, memory or firestore)
  4. Load the rule table (RULES_FILE or built-in defaults)
  5. Start the live ledger view and the rollover watcher
  6. Configure HTTP router and identity verifier
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (overrides APP_PORT)
  -db       SQLite database path (overrides SQLITE_DB_PATH)
            Use ":memory:" for in-memory database
  -backend  sqlite | memory | firestore (overrides DATA_BACKEND)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the view and the rollover watcher
  4. Close the backend
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/commission.db"

  # Run with in-memory store and demo roster
  SEED_ROSTER=true ./server -backend=memory

  # Run against Firestore with Firebase Auth
  DATA_BACKEND=firestore AUTH_MODE=firebase FIREBASE_PROJECT_ID=my-project ./server

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go, store/firestore/firestore.go: Backends
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"

	"github.com/warp/commission-engine/api"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/config"
	"github.com/warp/commission-engine/factory"
	"github.com/warp/commission-engine/identity"
	"github.com/warp/commission-engine/ledger"
	"github.com/warp/commission-engine/ledger/store"
	"github.com/warp/commission-engine/observability"
	"github.com/warp/commission-engine/store/firestore"
	"github.com/warp/commission-engine/store/sqlite"
)

// backend is what the server needs from a store, plus Close.
type backend interface {
	api.Backend
	io.Closer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	// Flags
	port := flag.Int("port", 0, "HTTP server port (overrides APP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")
	backendName := flag.String("backend", "", "sqlite | memory | firestore (overrides DATA_BACKEND)")
	flag.Parse()

	if *port != 0 {
		cfg.App.Port = strconv.Itoa(*port)
	}
	if *dbPath != "" {
		cfg.Storage.SQLitePath = *dbPath
	}
	if *backendName != "" {
		cfg.Storage.Backend = *backendName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	cal, err := cfg.BuildCalendar()
	if err != nil {
		return err
	}
	target, err := cfg.LeaderboardTarget()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Firebase is only initialized when something uses it
	var app *firebase.App
	if cfg.Storage.Backend == config.BackendFirestore || cfg.Auth.Mode == config.AuthFirebase {
		if app, err = config.NewFirebaseApp(ctx, cfg.Firebase); err != nil {
			return err
		}
	}

	db, err := openBackend(ctx, cfg, app)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("backend ready", zap.String("backend", cfg.Storage.Backend))

	var rules commission.RuleSet
	if cfg.Rules.File != "" {
		if rules, err = factory.NewRuleFactory().LoadFile(cfg.Rules.File); err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		logger.Info("rules loaded", zap.String("file", cfg.Rules.File))
	}

	verifier, err := buildVerifier(ctx, cfg, app)
	if err != nil {
		return err
	}

	// Live ledger view; handlers read from it while it is live and from the
	// store while it resubscribes
	viewCtx, stopView := context.WithCancel(ctx)
	defer stopView()
	view := ledger.NewView(func(lines []ledger.PayoutLine) {
		logger.Debug("ledger snapshot", zap.Int("lines", len(lines)))
	})
	go view.Follow(viewCtx, db, ledger.Backoff{Min: time.Second, Max: 30 * time.Second},
		func(err error, wait time.Duration) {
			logger.Warn("ledger feed lost; reads fall back to the store",
				zap.Error(err), zap.Duration("retry_in", wait))
		})

	metrics := observability.NewMetrics()
	handler := api.NewHandler(db, api.Options{
		Calendar: cal,
		Rules:    rules,
		Target:   target,
		Logger:   logger,
		Metrics:  metrics,
		View:     view,
	})

	if cfg.App.SeedRoster {
		if err := handler.SeedRoster(ctx); err != nil {
			return fmt.Errorf("seed roster: %w", err)
		}
		logger.Info("demo roster seeded")
	}

	rollovers := api.NewRolloverWatcher(handler)
	rollovers.Start()
	defer rollovers.Stop()

	router := api.NewRouter(handler, api.RouterConfig{
		Verifier:       verifier,
		AllowedOrigins: cfg.App.AllowedOrigins,
		RequestTimeout: cfg.App.RequestTimeout(),
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.App.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("auth_mode", cfg.Auth.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, app *firebase.App) (backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return store.NewMemory(), nil
	case config.BackendFirestore:
		return firestore.NewFromApp(ctx, app)
	default:
		s, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, nil
	}
}

func buildVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (identity.Verifier, error) {
	switch cfg.Auth.Mode {
	case config.AuthStatic:
		return identity.NewStaticVerifier(cfg.Auth.StaticToken), nil
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firebase auth client: %w", err)
		}
		return identity.NewFirebaseVerifier(client), nil
	default:
		return identity.Anonymous(), nil
	}
}
