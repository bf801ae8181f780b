package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"fipeline/internal/catalog"
	"fipeline/internal/config"
	"fipeline/internal/constants"
	"fipeline/internal/logger"
	"fipeline/internal/processor"
	"fipeline/internal/upstream"
	"fipeline/pkg/bootstrap"
	"fipeline/pkg/circuitbreaker"
	"fipeline/pkg/health"
	"fipeline/pkg/logging"
	"fipeline/pkg/metrics"
	"fipeline/pkg/tracing"
)

const serviceName = "vehicle-processor"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	postgresDB     *sql.DB
	consumer       *processor.Consumer
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
		a.Logger.WarnwCtx(initCtx, "Redis initialization failed, continuing without cache",
			"error", err,
		)
	} else {
		a.redis = rdb
	}

	if err := a.InitProducer(serviceName); err != nil {
		return fmt.Errorf("failed to initialize producer: %w", err)
	}

	topic := a.Config.Broker.Kafka.BrandsTopic
	if topic == "" {
		topic = constants.DefaultBrandsTopic
	}
	if err := a.InitReader(topic, serviceName); err != nil {
		return fmt.Errorf("failed to initialize reader: %w", err)
	}

	a.initConsumer()

	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterConsumerMetrics()
	metrics.RegisterUpstreamMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()

	return nil
}

func (a *App) initConsumer() {
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
	vehicles := catalog.NewVehicleRepository(a.postgresDB)
	proc := processor.NewProcessor(client, vehicles, a.Logger)

	a.consumer = processor.NewConsumer(
		a.Reader,
		a.Producer,
		proc,
		a.Config.Broker.Kafka,
		serviceName,
		a.Logger,
	)
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.postgresDB != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.postgresDB))
	}
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewKafkaChecker(a.Config.Broker.Kafka.Brokers))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
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
		return a.consumer.Run(gCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, serviceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down vehicle processor")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			srvCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(srvCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

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
