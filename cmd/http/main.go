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

	"fsanano/inventory/internal/auth"
	"fsanano/inventory/internal/cart"
	"fsanano/inventory/internal/config"
	"fsanano/inventory/internal/events"
	"fsanano/inventory/internal/handler"
	"fsanano/inventory/internal/metrics"
	"fsanano/inventory/internal/report"
	"fsanano/inventory/internal/repository"
	"fsanano/inventory/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server exiting")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Setup Database
	if cfg.RunMigrations {
		if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("connected to database")

	// 3. Setup Logic
	txManager := repository.NewTxManager(dbPool)
	products := repository.NewProductRepository(dbPool)
	orders := repository.NewOrderRepository(dbPool)
	users := repository.NewUserRepository(dbPool)
	categories := repository.NewCategoryRepository(dbPool)
	activity := repository.NewActivityRepository(dbPool)

	m := metrics.New()
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)

	checkoutOpts := []service.CheckoutOption{
		service.WithTaxRate(cfg.TaxRate),
		service.WithLogger(logger),
		service.WithObserver(m),
	}

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		outbox := repository.NewOutboxRepository(dbPool)
		writer := events.NewKafkaWriter(cfg.Kafka.Brokers)
		defer writer.Close()

		checkoutOpts = append(checkoutOpts, service.WithOutbox(outbox, cfg.Kafka.Topic))
		publisher = events.NewPublisher(outbox, writer, logger)
		logger.Info("order events enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	svc := handler.Services{
		Auth:     service.NewAuthService(users, tokens),
		Products: service.NewProductService(txManager, products, categories, activity),
		Checkout: service.NewCheckoutService(txManager, products, orders, activity, checkoutOpts...),
		Orders:   service.NewOrderService(orders),
		Reports:  service.NewReportService(products, activity, report.NewRenderer()),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		svc.Cart = cart.NewStore(rdb)
		logger.Info("cart storage enabled", "redis", cfg.RedisAddr)
	}

	h := handler.NewHandler(svc, tokens, m, logger)

	// 4. Setup Server
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           otelhttp.NewHandler(h, "inventory"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Run Server with Graceful Shutdown
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
