/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the studio reservation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env + environment), then apply flags
  2. Open the store selected by DB_DRIVER
  3. Connect the calendar notifier (RabbitMQ, or log only)
  4. Connect Redis for rate limiting (optional)
  5. Build the engine, handler and router
  6. Start the calendar resync scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory SQLite database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close broker, Redis and database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/studio.db"

  # Run against PostgreSQL
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server

ENVIRONMENT:
  See config/config.go.

SEE ALSO:
  - api/server.go: Router configuration
  - studio/engine.go: Engine wiring
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

	"github.com/warp/studio-engine/api"
	"github.com/warp/studio-engine/config"
	"github.com/warp/studio-engine/notify"
	"github.com/warp/studio-engine/store/postgres"
	"github.com/warp/studio-engine/store/sqlite"
	"github.com/warp/studio-engine/studio"
	memstore "github.com/warp/studio-engine/studio/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	// Initialize store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer closeStore()

	// Calendar sync
	var notifier studio.CalendarNotifier = notify.LogNotifier{}
	if cfg.RabbitMQURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, logging calendar changes instead: %v", err)
		} else {
			defer amqpNotifier.Close()
			notifier = amqpNotifier
		}
	}

	// Rate limiting
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	if cfg.JWTSecret == "" {
		log.Printf("Warning: JWT_SECRET is empty, every authenticated route will return 401")
	}

	engine := studio.New(store, studio.Options{
		Notifier:       notifier,
		PeriodType:     cfg.BillingPeriod,
		CancelDeadline: cfg.CancelDeadline,
		GrantOnAssign:  cfg.PlanGrantOnAssign,
	})

	handler := api.NewHandler(engine)

	// Calendar resync
	scheduler := api.NewCalendarSyncScheduler(engine.Locks)
	scheduler.CheckInterval = cfg.CalendarResync
	scheduler.Enabled = cfg.CalendarResync > 0
	handler.Scheduler = scheduler
	scheduler.Start()
	router := api.NewRouter(handler, api.RouterOptions{
		Auth:            api.NewAuthenticator(cfg.JWTSecret),
		RateLimiter:     api.NewRateLimiter(cfg.RateLimit, rdb),
		CORSOrigins:     cfg.CORSOrigins,
		EnableScenarios: cfg.EnableScenarios,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%s (store: %s)", cfg.Port, cfg.DBDriver)
		log.Printf("📊 API available at http://localhost:%s/api", cfg.Port)
		if cfg.EnableScenarios {
			log.Printf("🧪 Demo scenarios enabled for admins, /api/scenarios/reset wipes the %s store", cfg.DBDriver)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	scheduler.Stop()

	log.Println("Server stopped")
}

// openStore returns the store for cfg.DBDriver and its close function.
func openStore(cfg config.Config) (studio.Store, func(), error) {
	switch cfg.DBDriver {
	case "memory":
		return memstore.NewMemory(), func() {}, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}
