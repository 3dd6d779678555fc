/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the pension simulator server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment), apply flag overrides
  2. Configure logging
  3. Load statistics tables (fail fast on a bad document)
  4. Initialize SQLite store
  5. Create calculator, API handler and router
  6. Start the retention scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for in-memory database
  -stats   Statistics JSON document (overrides STATISTICS_FILE)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the retention scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/pension.db" -stats="./data/statistics.json"
  ./server -db=":memory:" -port=3000
  CALCULATION_RETENTION=720h LOG_FORMAT=json ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - indices/loader.go: Statistics document format
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/warp/pension-engine/api"
	"github.com/warp/pension-engine/config"
	"github.com/warp/pension-engine/indices"
	"github.com/warp/pension-engine/pension"
	"github.com/warp/pension-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Flags
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	statsPath := flag.String("stats", cfg.StatisticsFile, "Statistics JSON document")
	flag.Parse()

	cfg.Port = *port
	cfg.DatabasePath = *dbPath
	cfg.StatisticsFile = *statsPath

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.ConfigureLogging(); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	// Statistics
	tables, err := indices.LoadFile(cfg.StatisticsFile)
	if err != nil {
		log.WithError(err).WithField("file", cfg.StatisticsFile).Fatal("Failed to load statistics")
	}
	log.WithFields(log.Fields{
		"file":        cfg.StatisticsFile,
		"scenario":    tables.Meta().Scenario,
		"prepared_on": tables.Meta().PreparedOn,
	}).Info("Statistics loaded")

	// Initialize store
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	// Initialize handler
	calc := pension.NewCalculator(tables, cfg.Settings())
	handler := api.NewHandler(store, calc)
	handler.AdminEnabled = !cfg.IsProduction()

	router := api.NewRouter(handler, cfg.AllowedOrigins)

	retention := api.NewRetentionScheduler(store, cfg.CalculationRetention)
	retention.Start()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: api.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"addr":        cfg.Addr(),
			"environment": cfg.Environment,
			"admin":       handler.AdminEnabled,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	retention.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
