package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"civilregistry/internal/audit"
	"civilregistry/internal/auth"
	"civilregistry/internal/citizens"
	"civilregistry/internal/config"
	"civilregistry/internal/handlers"
	"civilregistry/internal/logging"
	"civilregistry/internal/metrics"
	"civilregistry/internal/middleware"
	"civilregistry/internal/phone"
	"civilregistry/internal/proxy"
	"civilregistry/internal/registry"
	"civilregistry/internal/search"
	"civilregistry/internal/storage"
	"civilregistry/internal/storage/postgres"
	"civilregistry/internal/storage/sqlite"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize database
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	revoked, closeRevoked, err := openRevocationList(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize revocation list: %w", err)
	}
	defer closeRevoked()

	// Initialize services
	userService := auth.NewUserService(store)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	sessions := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionMaxAge, cfg.SecureCookie)
	recorder := audit.NewRecorder(store, logger, m, cfg.AuditWriteTimeout)
	defer recorder.Wait()

	registryClient := registry.NewClient(cfg.RegistryBaseURL, cfg.RegistryTimeout, logger, m)
	phoneClient := phone.NewClient(phone.Config{
		BaseURL:  cfg.PhoneBaseURL,
		Username: cfg.PhoneUsername,
		Password: cfg.PhonePassword,
		Timeout:  cfg.PhoneTimeout,
	}, logger, m)
	localCitizens := citizens.NewService(store)
	orchestrator := search.NewOrchestrator(registryClient, localCitizens, phoneClient, recorder)

	// Ensure default admin user exists
	created, err := userService.EnsureDefaultAdmin(ctx, cfg.DefaultAdmin, cfg.DefaultPassword)
	if err != nil {
		logger.Warn("failed to create default admin", zap.Error(err))
	} else if created {
		logger.Info("created default admin", zap.String("username", cfg.DefaultAdmin))
	}

	router := handlers.NewRouter(handlers.Routes{
		Auth:     handlers.NewAuthHandler(userService, tokens, sessions, revoked, recorder, logger),
		Users:    handlers.NewUserHandler(userService, recorder, logger),
		Citizens: handlers.NewCitizenHandler(orchestrator, localCitizens, recorder, logger),
		Logs:     handlers.NewLogHandler(audit.NewService(store, store), recorder, logger),
		Proxy: handlers.NewProxyHandler(cfg.RegistryBaseURL, cfg.PhoneBaseURL,
			proxy.NewForwarder("registry", cfg.RegistryTimeout, logger, m),
			proxy.NewForwarder("phone", cfg.PhoneTimeout, logger, m),
			recorder, logger),
		Health:         handlers.NewHealthHandler(version),
		Gate:           middleware.NewAuthMiddleware(tokens, sessions, revoked, userService, logger),
		Logger:         logger,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting civil registry service",
			zap.String("addr", srv.Addr),
			zap.String("version", version),
			zap.String("db_driver", cfg.DBDriver),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	default:
		logger.Info("using sqlite database", zap.String("data_dir", cfg.DataDir))
		return sqlite.New(cfg.DataDir)
	}
}

// openRevocationList shares revoked tokens through Redis when configured so
// every instance honours a logout; otherwise the list is process-local.
func openRevocationList(ctx context.Context, cfg *config.Config, logger *zap.Logger) (auth.RevocationList, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory token revocation list")
		return auth.NewMemoryRevocationList(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("using redis token revocation list", zap.String("addr", opts.Addr))
	return auth.NewRedisRevocationList(client), func() { _ = client.Close() }, nil
}
