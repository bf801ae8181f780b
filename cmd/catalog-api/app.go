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

	"fipeline/internal/api"
	"fipeline/internal/catalog"
	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/logger"
	"fipeline/pkg/bootstrap"
	"fipeline/pkg/health"
	"fipeline/pkg/logging"
	"fipeline/pkg/metrics"
	"fipeline/pkg/middleware"
	"fipeline/pkg/ratelimit"
	"fipeline/pkg/tracing"
)

const serviceName = "catalog-api"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	postgresDB     *sql.DB
	service        *catalog.Service
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
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	a.redis = rdb

	a.service = catalog.NewService(
		catalog.NewBrandRepository(a.postgresDB),
		catalog.NewVehicleRepository(a.postgresDB),
		catalog.NewRedisCacheStore(a.redis),
		a.Config.Cache.BrandsTTL,
		a.Config.Cache.VehiclesTTL,
		a.Logger,
	)

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterCacheMetrics()
	if a.Config.API.RateLimit.Enabled {
		metrics.RegisterAPIMetrics()
	}

	a.initHTTPServer()

	return nil
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
	if a.Config.API.RateLimit.Enabled {
		rlConfig := ratelimit.DefaultConfig()
		if a.Config.API.RateLimit.RPS > 0 {
			rlConfig.RPS = a.Config.API.RateLimit.RPS
		}
		if a.Config.API.RateLimit.Burst > 0 {
			rlConfig.Burst = a.Config.API.RateLimit.Burst
		}
		router.Use(ratelimit.RateLimitMiddleware(rlConfig))
	}

	handler := api.NewHandler(a.service, a.Logger)
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
	healthRegistry.Register(health.NewRedisChecker(a.redis))

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
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
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
	a.Logger.InfowCtx(shutdownCtx, "Shutting down catalog API")

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
