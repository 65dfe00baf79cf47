package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/obaraelijah/LeafLine-Server/internal/auth"
	"github.com/obaraelijah/LeafLine-Server/internal/config"
	"github.com/obaraelijah/LeafLine-Server/internal/event"
	handler "github.com/obaraelijah/LeafLine-Server/internal/handler/http"
	"github.com/obaraelijah/LeafLine-Server/internal/payment"
	paymock "github.com/obaraelijah/LeafLine-Server/internal/payment/mock"
	"github.com/obaraelijah/LeafLine-Server/internal/payment/stripe"
	"github.com/obaraelijah/LeafLine-Server/internal/repository"
	"github.com/obaraelijah/LeafLine-Server/internal/repository/postgres"
	redisrepo "github.com/obaraelijah/LeafLine-Server/internal/repository/redis"
	"github.com/obaraelijah/LeafLine-Server/internal/service"
	"github.com/obaraelijah/LeafLine-Server/migrations"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
	"github.com/obaraelijah/LeafLine-Server/pkg/health"
	"github.com/obaraelijah/LeafLine-Server/pkg/httpclient"
	pkgkafka "github.com/obaraelijah/LeafLine-Server/pkg/kafka"
	"github.com/obaraelijah/LeafLine-Server/pkg/tracing"
)

const (
	serviceName    = "leafline-server"
	serviceVersion = "0.1.0"
)

// App wires together all dependencies and runs the LeafLine server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracingCfg := cfg.Tracing(serviceName)
	tracingCfg.ServiceVersion = serviceVersion
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, serviceName)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQuery > 0 {
		database.SetSlowQueryLogging(cfg.SlowQuery, logger)
	}

	// Redis only backs duplicate-submission detection, so an outage at
	// startup is logged and checkout runs without it.
	var idemStore *redisrepo.IdempotencyStore
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, idempotency keys will not be enforced",
			slog.String("addr", cfg.Redis().Addr()),
			slog.String("error", err.Error()),
		)
	} else {
		idemStore = redisrepo.NewIdempotencyStore(redisClient)
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	gateway := newGateway(cfg, logger)
	logger.Info("payment gateway initialized", slog.String("provider", gateway.Name()))

	// Build the dependency graph.
	bookRepo := postgres.NewBookRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	checkoutService := service.NewCheckoutService(
		pool,
		bookRepo,
		orderRepo,
		gateway,
		eventProducer,
		idempotencyStore(idemStore),
		service.CheckoutConfig{
			Currency:       cfg.Currency,
			GatewayTimeout: cfg.GatewayTimeout,
			IdempotencyTTL: cfg.IdempotencyTTL,
		},
		logger,
	)
	orderService := service.NewOrderService(orderRepo, eventProducer, logger)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 0)

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	orderHandler := handler.NewOrderHandler(checkoutService, orderService, logger)
	router := handler.NewRouter(orderHandler, healthHandler, jwtManager.Validator(), logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newGateway selects the payment provider named in cfg.
func newGateway(cfg *config.Config, logger *slog.Logger) payment.Gateway {
	if cfg.PaymentProvider == config.ProviderMock {
		logger.Warn("using mock payment gateway, no real payments will be taken")
		return paymock.NewGateway()
	}

	breaker := httpclient.DefaultCircuitBreakerConfig("stripe")
	breaker.MinRequests = cfg.BreakerMinReqs
	breaker.FailureRatio = cfg.BreakerRatio
	breaker.Timeout = cfg.BreakerOpenPeriod

	return stripe.New(stripe.Config{
		SecretKey:         cfg.StripeSecretKey,
		BaseURL:           cfg.StripeBaseURL,
		Timeout:           cfg.GatewayTimeout,
		RequestsPerSecond: cfg.GatewayRPS,
		Burst:             cfg.GatewayBurst,
		Breaker:           breaker,
	}, logger)
}

// idempotencyStore keeps a nil store from becoming a non-nil interface.
func idempotencyStore(s *redisrepo.IdempotencyStore) repository.IdempotencyStore {
	if s == nil {
		return nil
	}
	return s
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops the HTTP server first so in-flight checkouts can finish,
// then flushes spans and closes Kafka, Redis and the Postgres pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
