package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"go-ems"`
		Env  string `envconfig:"APP_ENV" default:"development"`
		Port string `envconfig:"PORT" default:"3000"`
	}

	HTTP struct {
		ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"5s"`
		WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"10s"`
		IdleTimeout     time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
		RateLimit       float64       `envconfig:"HTTP_RATE_LIMIT" default:"20"`
		RateBurst       int           `envconfig:"HTTP_RATE_BURST" default:"40"`
		IdempotencyTTL  time.Duration `envconfig:"HTTP_IDEMPOTENCY_TTL" default:"24h"`
	}

	DB struct {
		Host       string `envconfig:"DB_HOST" default:"localhost"`
		Port       string `envconfig:"DB_PORT" default:"5432"`
		User       string `envconfig:"DB_USER" default:"postgres"`
		Password   string `envconfig:"DB_PASSWORD" default:""`
		Name       string `envconfig:"DB_NAME" default:"go_ems"`
		SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"`
		MaxRetries int    `envconfig:"DB_MAX_RETRIES" default:"5"`
	}

	Redis struct {
		Addr       string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
		MaxRetries int    `envconfig:"REDIS_MAX_RETRIES" default:"5"`
	}

	Kafka struct {
		Broker        string        `envconfig:"KAFKA_BROKER"`
		ConsumerGroup string        `envconfig:"KAFKA_CONSUMER_GROUP" default:"go-ems-leave-ledger"`
		AuditGroup    string        `envconfig:"KAFKA_AUDIT_GROUP" default:"go-ems-leave-audit"`
		PollInterval  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"3s"`
	}

	JWT struct {
		Secret string `envconfig:"JWT_SECRET"`
	}

	RBAC struct {
		// Empty uses the embedded model.
		ModelPath        string `envconfig:"RBAC_MODEL_PATH"`
		DefaultRole      string `envconfig:"RBAC_DEFAULT_ROLE" default:"Employee"`
		BootstrapCompany string `envconfig:"RBAC_BOOTSTRAP_COMPANY_ID"`
		BootstrapAdmin   string `envconfig:"RBAC_BOOTSTRAP_ADMIN_ID"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"json"`
	}

	// Days granted to a ledger entry when a quarter is opened for an employee.
	Leave struct {
		SickPerQuarter   int `envconfig:"LEAVE_SICK_PER_QUARTER" default:"3"`
		CasualPerQuarter int `envconfig:"LEAVE_CASUAL_PER_QUARTER" default:"3"`
		PaidPerQuarter   int `envconfig:"LEAVE_PAID_PER_QUARTER" default:"4"`
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.Leave.SickPerQuarter < 0 || cfg.Leave.CasualPerQuarter < 0 || cfg.Leave.PaidPerQuarter < 0 {
		return nil, fmt.Errorf("leave allocation per quarter must not be negative")
	}
	if cfg.IsProduction() && cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}
	if (cfg.RBAC.BootstrapCompany == "") != (cfg.RBAC.BootstrapAdmin == "") {
		return nil, fmt.Errorf("RBAC_BOOTSTRAP_COMPANY_ID and RBAC_BOOTSTRAP_ADMIN_ID must be set together")
	}

	return &cfg, nil
}
