package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yungbote/batchflow-backend/internal/data/db"
	"github.com/yungbote/batchflow-backend/internal/observability"
	"github.com/yungbote/batchflow-backend/internal/platform/gcp"
	"github.com/yungbote/batchflow-backend/internal/platform/logger"
)

type Config struct {
	HTTPAddr    string   `env:"HTTP_ADDR" envDefault:":8080"`
	LogMode     string   `env:"LOG_MODE" envDefault:"development"`
	LogRedact   bool     `env:"LOG_REDACTION_ENABLED" envDefault:"true"`
	LogHashSalt string   `env:"LOG_HASH_SALT"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"batchflow.db"`
	// AutoMigrate runs schema migration on startup.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	Postgres   struct {
		DSN      string `env:"POSTGRES_DSN"`
		Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
		User     string `env:"POSTGRES_USER" envDefault:"postgres"`
		Password string `env:"POSTGRES_PASSWORD"`
		Name     string `env:"POSTGRES_NAME" envDefault:"batchflow"`
		SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"20"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"30m"`
	}

	JWTSecretKey   string        `env:"JWT_SECRET_KEY" envDefault:"defaultsecret"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"batchflow"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisNotifyChannel string `env:"REDIS_NOTIFY_CHANNEL" envDefault:"batchflow.events"`

	RendererURL     string        `env:"RENDERER_URL"`
	RendererTimeout time.Duration `env:"RENDERER_TIMEOUT" envDefault:"30s"`

	ReportBucket        string `env:"REPORT_GCS_BUCKET_NAME"`
	ReportPrefix        string `env:"REPORT_GCS_PREFIX" envDefault:"reports"`
	ObjectStorageMode   string `env:"OBJECT_STORAGE_MODE"`
	StorageEmulatorHost string `env:"STORAGE_EMULATOR_HOST"`
	GCPCredentials      string `env:"GOOGLE_APPLICATION_CREDENTIALS_JSON"`

	RetryPolicyFile string `env:"RETRY_POLICY_FILE"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	OtelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"batchflow"`
	OtelEnvironment string  `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OtelVersion     string  `env:"OTEL_SERVICE_VERSION"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`

	EmergencyReasonMinLength int           `env:"EMERGENCY_REASON_MIN_LENGTH" envDefault:"20"`
	DBLockTimeout            time.Duration `env:"DB_LOCK_TIMEOUT" envDefault:"5s"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
	RenderQueueBuffer int           `env:"RENDER_QUEUE_BUFFER" envDefault:"256"`
	SweepInterval     time.Duration `env:"ISSUANCE_SWEEP_INTERVAL" envDefault:"1m"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case "":
		cfg.DBDriver = "postgres"
	case "postgres", "sqlite":
	default:
		return cfg, fmt.Errorf("invalid DB_DRIVER=%q (allowed: postgres, sqlite)", cfg.DBDriver)
	}
	if cfg.EmergencyReasonMinLength < 1 {
		cfg.EmergencyReasonMinLength = 20
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}
	return cfg, nil
}

func (c Config) postgresConfig() db.PostgresConfig {
	return db.PostgresConfig{
		DSN:             c.Postgres.DSN,
		Host:            c.Postgres.Host,
		Port:            c.Postgres.Port,
		User:            c.Postgres.User,
		Password:        c.Postgres.Password,
		Name:            c.Postgres.Name,
		SSLMode:         c.Postgres.SSLMode,
		MaxOpenConns:    c.Postgres.MaxOpenConns,
		MaxIdleConns:    c.Postgres.MaxIdleConns,
		ConnMaxLifetime: c.Postgres.ConnMaxLifetime,
	}
}

func (c Config) newLogger() (*logger.Logger, error) {
	return logger.New(c.LogMode, logger.WithRedaction(c.LogRedact, c.LogHashSalt))
}

func (c Config) reportStoreConfig() gcp.ReportStoreConfig {
	return gcp.ReportStoreConfig{
		Mode:         gcp.StorageMode(c.ObjectStorageMode),
		EmulatorHost: c.StorageEmulatorHost,
		Bucket:       c.ReportBucket,
		Prefix:       c.ReportPrefix,
		Credentials:  c.GCPCredentials,
	}
}

func (c Config) otelConfig() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.OtelEnvironment,
		Version:     c.OtelVersion,
		Endpoint:    c.OtelEndpoint,
		Headers:     observability.ParseOTLPHeaders(c.OtelHeaders),
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}

// issuanceConfigured reports whether this process can render and store reports.
func (c Config) issuanceConfigured() bool {
	return strings.TrimSpace(c.RendererURL) != "" && strings.TrimSpace(c.ReportBucket) != ""
}
