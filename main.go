package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"klik-api/cache"
	"klik-api/config"
	"klik-api/database"
	"klik-api/jobs"
	"klik-api/middleware"
	"klik-api/realtime"
	"klik-api/routes"
	"klik-api/services"
	"klik-api/storage"
)

func main() {
	root := &cobra.Command{
		Use:           "klik-api",
		Short:         "Klik social network API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			if seed {
				if err := database.SeedData(db); err != nil {
					slog.Warn("failed to seed database", "error", err)
				}
			}
			return serve(cmd.Context(), cfg, db)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "seed development data on start")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate an empty database with development data",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			return database.SeedData(db)
		},
	}
}

// bootstrap loads configuration, installs the logger and opens the database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	setupLogger(cfg)

	db, err := database.Initialize(cfg.DBDriver, cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func serve(parent context.Context, cfg *config.Config, db *gorm.DB) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	hub := realtime.NewHub(64)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		bridge := realtime.NewRedisBridge(client, hub)
		if err := bridge.Start(ctx); err != nil {
			return fmt.Errorf("failed to start realtime bridge: %w", err)
		}
		hub.SetBridge(bridge)
		slog.Info("realtime events shared through redis", "addr", cfg.RedisAddr)
	}

	emailService := services.NewEmailService(cfg)
	profileCache := cache.New(5*time.Minute, 10*time.Minute)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)

	go emailService.Run(ctx, time.Minute)
	go profileCache.Run(ctx, time.Minute)
	go rateLimiter.Run(ctx, 5*time.Minute)

	retention := jobs.NewNotificationRetentionJob(services.NewNotificationService(db, hub), cfg.NotificationRetention(), 24*time.Hour)
	retention.Start(ctx)
	defer retention.Stop()

	router := routes.NewRouter(routes.Deps{
		DB:          db,
		Config:      cfg,
		Email:       emailService,
		Store:       store,
		Hub:         hub,
		Cache:       profileCache,
		RateLimiter: rateLimiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting Klik API server", "port", cfg.Port, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server exited")
	return nil
}

// newStore connects to MinIO when an endpoint is configured and otherwise
// keeps uploads in memory.
func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorageEndpoint == "" {
		slog.Warn("STORAGE_ENDPOINT not set, keeping uploads in memory")
		return storage.NewMemoryStore(cfg.StoragePublicURL + "/" + cfg.StorageBucket), nil
	}
	store, err := storage.NewMinIOStore(ctx, storage.MinIOOptions{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		PublicURL: cfg.StoragePublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to object storage: %w", err)
	}
	return store, nil
}
