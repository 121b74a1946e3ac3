package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/whatsapp-session-service/internal/driver"
	"github.com/teresa-solution/whatsapp-session-service/internal/monitoring"
	"github.com/teresa-solution/whatsapp-session-service/internal/notify"
	"github.com/teresa-solution/whatsapp-session-service/internal/service"
	"github.com/teresa-solution/whatsapp-session-service/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var (
		httpPort       = flag.Int("http-port", 8081, "Port for health checks and metrics")
		dbHost         = flag.String("db-host", "localhost", "Database host")
		dbPort         = flag.Int("db-port", 5432, "Database port")
		dbUser         = flag.String("db-user", "admin", "Database user")
		dbPass         = flag.String("db-pass", "securepassword", "Database password")
		dbName         = flag.String("db-name", "session_registry", "Database name")
		redisAddr      = flag.String("redis-addr", "localhost:6379", "Redis address for session event fan-out")
		authRoot       = flag.String("auth-dir", "./wa-auth", "Root directory for per-session auth stores")
		maxSessions    = flag.Int("max-sessions", 10, "Global cap on concurrent sessions")
		pairingTimeout = flag.Duration("pairing-timeout", 5*time.Minute, "Deadline for sessions stuck in pairing (0 disables)")
	)
	flag.Parse()

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		*dbHost, *dbPort, *dbUser, *dbPass, *dbName)

	repo, err := store.NewSessionRepository(dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer repo.Close()

	notifier := notify.NewNotifier(*redisAddr)
	defer notifier.Close()

	registry := service.NewRegistry()
	manager := service.NewManager(service.Config{
		AuthRoot:       *authRoot,
		MaxSessions:    *maxSessions,
		PairingTimeout: *pairingTimeout,
	}, registry, repo, notifier, driver.WhatsmeowFactory{}, nil)

	// Initialize metrics
	monitoring.InitMetrics()

	log.Info().Msg("Starting WhatsApp Session Service")

	manager.Hydrate(context.Background())
	manager.StartCleanup()

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		httpServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", *httpPort),
			Handler: mux,
		}

		log.Info().Msgf("HTTP server for health checks and metrics started on port %d", *httpPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	manager.Shutdown()
	log.Info().Msg("Server exiting")
}
