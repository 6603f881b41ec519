package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"notifyx/internal/config"
	"notifyx/internal/constants"
	"notifyx/internal/ingest"
	"notifyx/internal/logger"
	"notifyx/internal/messages"
	"notifyx/internal/status"
	"notifyx/internal/store"
	"notifyx/pkg/bootstrap"
	"notifyx/pkg/circuitbreaker"
	"notifyx/pkg/health"
	"notifyx/pkg/logging"
	"notifyx/pkg/metrics"
	"notifyx/pkg/middleware"
	"notifyx/pkg/ratelimit"
	"notifyx/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redisClient    *redis.Client
	handler        *ingest.Handler
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("api-service")
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

	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "api-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterIngestMetrics()
	metrics.RegisterStoreMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer(a.buildHandler())
	return nil
}

func (a *App) buildHandler() *ingest.Handler {
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

	ttl := a.Config.Storage.TTL()
	repo := messages.NewRepository(st, a.Logger, ttl, a.Config.Storage.MaxPerUser, a.Config.Storage.MaxPerProject)
	tracker := status.NewTracker(st, a.Logger, ttl, a.Config.Storage.MaxPerUser)

	svc := ingest.NewService(repo, tracker, a.Producer, a.Logger, a.topic())
	return ingest.NewHandler(svc, repo, tracker, a.Logger)
}

func (a *App) topic() string {
	if a.Config.Broker.Kafka.Topic != "" {
		return a.Config.Broker.Kafka.Topic
	}
	return constants.DefaultTopic
}

func (a *App) initHTTPServer(handler *ingest.Handler) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	if a.Config.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		if a.Config.RateLimit.RPS > 0 {
			rlCfg.RPS = a.Config.RateLimit.RPS
		}
		if a.Config.RateLimit.Burst > 0 {
			rlCfg.Burst = a.Config.RateLimit.Burst
		}
		if a.Config.RateLimit.CleanupInterval > 0 {
			rlCfg.CleanupInterval = time.Duration(a.Config.RateLimit.CleanupInterval) * time.Second
		}
		if a.Config.RateLimit.MaxAge > 0 {
			rlCfg.MaxAge = time.Duration(a.Config.RateLimit.MaxAge) * time.Second
		}
		router.Use(ratelimit.Middleware(rlCfg))
	}

	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewRedisChecker(a.redisClient))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
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

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "api-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down API service")

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
