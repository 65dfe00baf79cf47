package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/obaraelijah/LeafLine-Server/pkg/config"
	"github.com/obaraelijah/LeafLine-Server/pkg/database"
	"github.com/obaraelijah/LeafLine-Server/pkg/tracing"
)

// Payment providers.
const (
	ProviderStripe = "stripe"
	ProviderMock   = "mock"
)

// Config holds all configuration for the LeafLine server.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost     string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string        `env:"POSTGRES_USER" envDefault:"leafline"`
	PostgresPass     string        `env:"POSTGRES_PASSWORD" envDefault:"leafline_secret"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"leafline"`
	PostgresSSL      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PostgresMaxConns int32         `env:"POSTGRES_MAX_CONNS" envDefault:"20"`
	PostgresMinConns int32         `env:"POSTGRES_MIN_CONNS" envDefault:"2"`
	SlowQuery        time.Duration `env:"SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis
	RedisHost      string        `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort      int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Auth
	JWTSecret string `env:"JWT_SECRET"`

	// Payment gateway
	PaymentProvider   string        `env:"PAYMENT_PROVIDER" envDefault:"stripe"`
	StripeSecretKey   string        `env:"STRIPE_SECRET_KEY"`
	StripeBaseURL     string        `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com"`
	Currency          string        `env:"CHECKOUT_CURRENCY" envDefault:"usd"`
	GatewayTimeout    time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`
	GatewayRPS        float64       `env:"GATEWAY_RPS" envDefault:"25"`
	GatewayBurst      int           `env:"GATEWAY_BURST" envDefault:"5"`
	BreakerMinReqs    uint32        `env:"GATEWAY_BREAKER_MIN_REQUESTS" envDefault:"5"`
	BreakerRatio      float64       `env:"GATEWAY_BREAKER_FAILURE_RATIO" envDefault:"0.5"`
	BreakerOpenPeriod time.Duration `env:"GATEWAY_BREAKER_TIMEOUT" envDefault:"30s"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load leafline config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.PaymentProvider {
	case ProviderStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when PAYMENT_PROVIDER=stripe")
		}
	case ProviderMock:
		if c.Environment == "production" {
			return fmt.Errorf("mock payment provider is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown payment provider: %q", c.PaymentProvider)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive, got %s", c.GatewayTimeout)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be within [0, 1], got %v", c.OTELSampleRate)
	}
	return nil
}

// Postgres returns the pool settings for database.NewPostgresPool.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        c.PostgresMinConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// Tracing returns the OpenTelemetry settings.
func (c *Config) Tracing(serviceName string) tracing.Config {
	return tracing.Config{
		ServiceName:  serviceName,
		Environment:  c.Environment,
		OTLPEndpoint: c.OTELEndpoint,
		SampleRate:   c.OTELSampleRate,
		Enabled:      c.OTELEnabled,
	}
}
