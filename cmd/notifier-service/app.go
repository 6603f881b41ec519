package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"notifyx/internal/channel"
	"notifyx/internal/config"
	"notifyx/internal/constants"
	"notifyx/internal/dispatch"
	"notifyx/internal/logger"
	"notifyx/internal/status"
	"notifyx/internal/store"
	"notifyx/pkg/bootstrap"
	"notifyx/pkg/circuitbreaker"
	"notifyx/pkg/health"
	"notifyx/pkg/logging"
	"notifyx/pkg/metrics"
	"notifyx/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redisClient    *redis.Client
	dispatcher     *dispatch.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("notifier-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.redisClient = rdb

	a.initDispatcher()

	if err := a.InitConsumer("notifier-service"); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "notifier-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterDispatchMetrics()
	metrics.RegisterStoreMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initDispatcher() {
	var st store.Store = store.NewRedisStore(a.redisClient)
	if a.Config.CircuitBreaker.Enabled {
		breaker := circuitbreaker.NewWrapper(circuitbreaker.Config{
			Name:         "redis-store",
			MaxRequests:  a.Config.CircuitBreaker.MaxRequests,
			Interval:     a.Config.CircuitBreaker.Interval,
			Timeout:      a.Config.CircuitBreaker.Timeout,
			FailureRatio: a.Config.CircuitBreaker.FailureRatio,
			MinRequests:  a.Config.CircuitBreaker.MinRequests,
		})
		st = store.NewBreakerStore(st, breaker)
	}

	tracker := status.NewTracker(st, a.Logger, a.Config.Storage.TTL(), a.Config.Storage.MaxPerUser)

	registry := channel.NewRegistry()
	registry.Register(channel.NewWebhookChannel(a.Config.Webhook.Timeout(), a.Logger))

	a.dispatcher = dispatch.NewService(registry, tracker, a.Logger, a.Config.Dispatch.Workers)
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redisClient))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(h)
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
	}
}

func (a *App) topic() string {
	if a.Config.Broker.Kafka.Topic != "" {
		return a.Config.Broker.Kafka.Topic
	}
	return constants.DefaultTopic
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	topic := a.topic()
	g.Go(func() error {
		consumeCtx := logging.WithServiceName(gCtx, "notifier-service")
		a.Logger.InfowCtx(consumeCtx, "Starting envelope consumer",
			"topic", topic,
		)
		return a.Consumer.Consume(gCtx, topic, a.dispatcher.Handle)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "notifier-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down notifier service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redisClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
