/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine API server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create recurring engine and API handler
  4. Configure HTTP router
  5. Optionally start the in-process sweep scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: ledger.db)
                   Use ":memory:" for in-memory database
  -sweep-interval  Interval for the in-process sweep scheduler
                   (default: 1h; 0 disables it — use cmd/sweep from cron)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the sweep scheduler
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run with in-memory database and no background sweeps
  ./server -db=":memory:" -sweep-interval=0

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: In-process sweep scheduler
  - cmd/sweep: Cron-style sweep binary
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

	"github.com/fintrack/ledger-engine/api"
	"github.com/fintrack/ledger-engine/recurring"
	"github.com/fintrack/ledger-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "ledger.db", "SQLite database path")
	sweepInterval := flag.Duration("sweep-interval", 1*time.Hour, "in-process sweep interval (0 disables)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	stores := recurring.Stores{
		Schedules:    store,
		Transactions: store,
		Accounts:     store,
		Categories:   store,
	}
	service := recurring.NewService(stores)

	// Initialize handler and router
	handler := api.NewHandler(service, stores)
	router := api.NewRouter(handler)

	// Background sweep scheduler
	scheduler := api.NewSweepScheduler(service)
	if *sweepInterval > 0 {
		scheduler.CheckInterval = *sweepInterval
	} else {
		scheduler.Enabled = false
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
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
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
