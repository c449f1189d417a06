package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	c "github.com/fjod/go_cart/bag-service/internal/cache"
	"github.com/fjod/go_cart/bag-service/internal/catalog"
	"github.com/fjod/go_cart/bag-service/internal/config"
	h "github.com/fjod/go_cart/bag-service/internal/http"
	"github.com/fjod/go_cart/bag-service/internal/logger"
	"github.com/fjod/go_cart/bag-service/internal/poller"
	"github.com/fjod/go_cart/bag-service/internal/repository"
	s "github.com/fjod/go_cart/bag-service/internal/service"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("bag service failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Session store
	var repo repository.BagRepository
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		repo = repository.NewMemoryRepository()
		slog.Warn("using in-memory session store; bags are lost on restart")
	default:
		mongoDB, err := repository.ConnectMongoDB(ctx, repository.MongoSettings{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDBName,
			MaxPoolSize:    cfg.MongoMaxPoolSize,
			MinPoolSize:    cfg.MongoMinPoolSize,
			ConnectTimeout: cfg.MongoConnectTimeout,
		})
		if err != nil {
			return err
		}
		defer mongoDB.Client().Disconnect(context.Background())

		mongoRepo := repository.NewMongoRepository(mongoDB)
		if err := mongoRepo.CreateIndexes(ctx, cfg.SessionTTL); err != nil {
			return err
		}
		repo = mongoRepo
		slog.Info("connected to MongoDB", slog.String("database", cfg.MongoDBName))
	}

	// Bag cache
	var bagCache c.BagCache = c.NopCache{}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
		bagCache = c.NewRedisCache(redisClient, cfg.CacheTTL)
		slog.Info("redis ping succeeded", slog.String("addr", cfg.RedisAddr))
	}

	// Catalog
	catalogRepo, err := catalog.NewRepository(cfg.CatalogDriver, cfg.CatalogDSN)
	if err != nil {
		return err
	}
	defer catalogRepo.Close()
	if err := catalogRepo.RunMigrations(); err != nil {
		return err
	}
	breaker := catalog.NewBreaker(catalogRepo, catalog.BreakerSettings{
		Name:        "catalog",
		MaxFailures: uint32(cfg.CatalogMaxFailures),
		OpenTimeout: cfg.CatalogOpenTimeout,
	})
	slog.Info("catalog ready", slog.String("driver", cfg.CatalogDriver))

	bags := s.NewBagService(repo, bagCache, breaker)

	// Checkout consumer
	if len(cfg.KafkaBrokers) > 0 {
		p := poller.NewPoller(bags, cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
		defer p.Close()
		// runs before the closers above
		stopPoller := p.Start(ctx)
		defer stopPoller()
		slog.Info("checkout consumer started", slog.String("topic", cfg.KafkaTopic))
	}

	handler := h.NewBagHandler(bags, cfg.RequestTimeout, cfg.MaxRequestBodySize)
	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:    cfg.RequestTimeout,
		SessionCookieName: cfg.SessionCookieName,
		SessionTTL:        cfg.SessionTTL,
	}, handler, breaker.State)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("bag service starting", slog.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server exited")
	return nil
}
