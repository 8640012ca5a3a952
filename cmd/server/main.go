/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the fee ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env, YAML file, FEELEDGER_* env)
  2. Initialize SQLite store
  3. Choose the writer locker (in-process or PostgreSQL advisory locks)
  4. Wire the engine, receipt renderer and notifier
  5. Configure HTTP router
  6. Start the status sweep scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port, overrides server.port
  -db      SQLite database path, overrides store.path
           Use ":memory:" for in-memory database

LOCKING:
  lock.driver=memory is correct only while this process is the sole
  writer. Run several server processes against one store only with
  lock.driver=postgres.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running sweep)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the locker and database connections

EXAMPLES:
  ./server -config=./fees.yaml
  ./server -db=":memory:" -port=3000
  FEELEDGER_LOCK_DRIVER=postgres FEELEDGER_LOCK_DSN=postgres://... ./server

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - cmd/feectl: Operator CLI
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/fee-ledger/api"
	"github.com/warp/fee-ledger/config"
	"github.com/warp/fee-ledger/ledger"
	"github.com/warp/fee-ledger/notify"
	"github.com/warp/fee-ledger/receipt"
	"github.com/warp/fee-ledger/store/pglock"
	"github.com/warp/fee-ledger/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	// Initialize store
	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	locker, closeLocker, err := newLocker(cfg.Lock)
	if err != nil {
		log.Fatalf("Failed to initialize locker: %v", err)
	}
	defer closeLocker()

	engine := ledger.NewEngine(store, locker)
	engine.Recorder.Prefix = cfg.Receipt.Prefix
	engine.Recorder.CountryCode = cfg.Notify.CountryCode

	handler := api.NewHandler(
		engine,
		receipt.NewPDFRenderer(cfg.Receipt.Institute),
		notify.New(cfg.Receipt.Institute, cfg.Notify.CountryCode),
	)
	handler.Auth = api.NewAuth(cfg.Auth.PasswordHash, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if handler.Auth == nil {
		log.Println("[Auth] No password configured, API is public")
	}

	// Create router
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	scheduler := api.NewStatusSweepScheduler(engine, cfg.Sweep.Schedule)
	scheduler.Enabled = cfg.Sweep.Enabled
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", cfg.Server.Port)
		log.Printf("🧾 Receipts %s-<year>-NNNN, lock driver %s", cfg.Receipt.Prefix, cfg.Lock.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		return
	}

	log.Println("Server stopped")
}

func newLocker(cfg config.LockConfig) (ledger.Locker, func(), error) {
	switch cfg.Driver {
	case config.LockPostgres:
		l, err := pglock.New(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return l, func() { l.Close() }, nil
	default:
		return ledger.NewKeyedMutex(), func() {}, nil
	}
}
