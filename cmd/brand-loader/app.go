package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"fipeline/internal/catalog"
	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/loader"
	"fipeline/internal/logger"
	"fipeline/internal/upstream"
	"fipeline/pkg/bootstrap"
	"fipeline/pkg/circuitbreaker"
	"fipeline/pkg/health"
	"fipeline/pkg/logging"
	"fipeline/pkg/metrics"
	"fipeline/pkg/middleware"
	"fipeline/pkg/tracing"
)

const serviceName = "brand-loader"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	postgresDB     *sql.DB
	loader         *loader.Loader
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	postgresDB, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	a.postgresDB = postgresDB

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		initCtx := logging.WithServiceName(ctx, serviceName)
		a.Logger.WarnwCtx(initCtx, "Redis initialization failed, continuing without cache invalidation",
			"error", err,
		)
	} else {
		a.redis = rdb
	}

	if err := a.InitProducer(serviceName); err != nil {
		return fmt.Errorf("failed to initialize producer: %w", err)
	}

	a.initLoader()

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterLoaderMetrics()
	metrics.RegisterUpstreamMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()

	return nil
}

func (a *App) initLoader() {
	limiter := upstream.NewQuotaLimiter(
		a.Config.Upstream.Quota.MaxRequests,
		a.Config.Upstream.Quota.Window,
		a.Config.Upstream.Quota.SmoothingInterval,
	)

	var breaker *circuitbreaker.Wrapper
	if a.Config.CircuitBreaker.Enabled {
		breaker = circuitbreaker.NewWrapper(circuitbreaker.DefaultConfig("upstream"))
	}

	client := upstream.NewClient(a.Config.Upstream, limiter, breaker, a.Logger)
	brands := catalog.NewBrandRepository(a.postgresDB)

	var cache catalog.CacheStore
	if a.redis != nil {
		cache = catalog.NewRedisCacheStore(a.redis)
	}

	a.loader = loader.NewLoader(client, brands, cache, a.Producer, a.Config.Broker.Kafka, a.Logger)
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	handler := loader.NewHandler(a.loader, a.Logger)
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	if a.postgresDB != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
	}
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, gin.H{
			"status":    h.Status,
			"timestamp": h.Timestamp.Format(time.RFC3339),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: router,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		srvCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(srvCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down brand loader")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(a.redis, a.postgresDB)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
