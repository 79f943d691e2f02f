package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/spendwise/internal/api"
	"github.com/mmynk/spendwise/internal/auth"
	"github.com/mmynk/spendwise/internal/cache"
	"github.com/mmynk/spendwise/internal/config"
	"github.com/mmynk/spendwise/internal/forecast"
	"github.com/mmynk/spendwise/internal/metrics"
	"github.com/mmynk/spendwise/internal/notify"
	"github.com/mmynk/spendwise/internal/service"
	"github.com/mmynk/spendwise/internal/storage"
	"github.com/mmynk/spendwise/internal/storage/mongo"
	"github.com/mmynk/spendwise/internal/storage/sqlite"
)

const (
	cacheCleanupInterval = time.Minute
	shutdownTimeout      = 15 * time.Second
	mongoConnectTimeout  = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, slog.Default())
		},
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorageBackend == config.BackendMongo {
		ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
		defer cancel()
		store, err := mongo.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP_URL not set; OTPs will only be logged")
		return notify.NewLogNotifier(logger), func() {}, nil
	}
	n, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, nil, err
	}
	return n, func() {
		if err := n.Close(); err != nil {
			logger.Error("Failed to close AMQP notifier", "error", err)
		}
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "backend", cfg.StorageBackend)

	notifier, closeNotifier, err := openNotifier(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	defer closeNotifier()

	m := metrics.New()
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	authService := service.NewAuthService(store, auth.NewPasswordAuthenticator(store), jwtManager, notifier, logger).
		WithObserver(m)
	caches := cache.NewManager()
	authService.RegisterCaches(caches)
	caches.StartCleanup(cacheCleanupInterval)
	defer caches.Stop()

	srv := api.NewServer(api.Deps{
		Auth:         authService,
		Groups:       service.NewGroupService(store, logger).WithObserver(m),
		Transactions: service.NewTransactionService(store, cfg.SummaryLocation(), logger),
		Friends:      service.NewFriendService(store, logger),
		Predictions: service.NewPredictionService(store,
			forecast.NewClient(cfg.ForecastURL, cfg.ForecastTimeout), logger),
		JWT:        jwtManager,
		Users:      store,
		Metrics:    m,
		Logger:     logger,
		CORSOrigin: cfg.CORSOrigin,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h2c.NewHandler(srv.Handler(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", "address", httpServer.Addr, "url", fmt.Sprintf("http://localhost%s", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
