package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mohmed402/wasel/internal/api"
	"github.com/mohmed402/wasel/internal/cache"
	"github.com/mohmed402/wasel/internal/cart"
	"github.com/mohmed402/wasel/internal/config"
	"github.com/mohmed402/wasel/internal/database"
	"github.com/mohmed402/wasel/internal/events"
	"github.com/mohmed402/wasel/internal/metrics"
	"github.com/mohmed402/wasel/internal/ratelimit"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the HTTP API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()

	pipeline, launcher, err := newPipeline(cfg, log, m, "")
	if err != nil {
		return err
	}

	gate := ratelimit.NewGate(ratelimit.Options{
		MaxConcurrent:     cfg.Scraper.MaxConcurrent,
		LaunchesPerMinute: cfg.Scraper.LaunchesPerMinute,
		AcquireTimeout:    cfg.Scraper.AcquireTimeout,
	})
	opts := []cart.ServiceOption{cart.WithGate(gate)}
	if cfg.Scraper.CacheTTL > 0 {
		opts = append(opts, cart.WithCache(cache.NewResults(cfg.Scraper.CacheSize, cfg.Scraper.CacheTTL)))
	}

	deps := api.Deps{Browser: launcher}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: int32(cfg.Database.MaxConns),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			cancel()
			db.Close()
		}()

		if err := db.Migrate(ctx); err != nil {
			return err
		}

		publisher := events.NewPublisher(db, log, events.Options{
			Stream: cfg.Redis.Stream,
			Emit:   cfg.Redis.Enabled,
		})
		opts = append(opts, cart.WithRecorder(publisher))

		deps.Database = db
		deps.Customers = database.NewCustomerRepository(db)
		deps.Orders = database.NewOrderRepository(db)
		deps.Accounts = database.NewAccountRepository(db)
		deps.Runs = database.NewExtractionRunRepository(db)

		if cfg.Redis.Enabled {
			relay, err := startRelay(ctx, cfg, db, log, m)
			if err != nil {
				return err
			}
			deps.Outbox = relay
		}
	}

	deps.Extractor = cart.NewService(pipeline, log, m, opts...)

	handlers := api.NewHandlers(deps, log)
	router := api.NewRouter(handlers, m, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ScrapeTimeout:  cfg.Server.ScrapeTimeout,
		DefaultTimeout: cfg.Server.ReadTimeout,
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", server.Addr, "database", cfg.Database.Enabled, "redis", cfg.Redis.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down server...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}

// startRelay connects to Redis and runs the outbox relay until ctx ends.
func startRelay(ctx context.Context, cfg *config.Config, db *database.DB, log *slog.Logger, m *metrics.Metrics) (*database.Relay, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	relay := database.NewRelay(
		database.NewOutboxRepository(db, cfg.Redis.Stream),
		redisClient,
		log,
		m,
		database.RelayConfig{
			PollInterval: cfg.Relay.PollInterval,
			BatchSize:    cfg.Relay.BatchSize,
			StreamMaxLen: int64(cfg.Relay.StreamMaxLen),
		},
	)

	go func() {
		defer redisClient.Close()
		if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("relay stopped with error", "error", err)
		}
	}()

	return relay, nil
}
