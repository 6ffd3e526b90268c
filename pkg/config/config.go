package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Checkout     CheckoutConfig
	Webhooks     WebhooksConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FORKLINE_APP_ENV" required:"true"`
	Port         string `envconfig:"FORKLINE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FORKLINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FORKLINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FORKLINE_DB_DSN"`
	Driver string `envconfig:"FORKLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FORKLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"FORKLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FORKLINE_DB_USER"`
	LegacyPassword string `envconfig:"FORKLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"FORKLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"FORKLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FORKLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FORKLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FORKLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FORKLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FORKLINE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FORKLINE_REDIS_ADDR"`
	Password     string        `envconfig:"FORKLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"FORKLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FORKLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FORKLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FORKLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FORKLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FORKLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"FORKLINE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FORKLINE_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FORKLINE_AUTO_MIGRATE" default:"false"`
}

// StripeConfig carries the gateway credentials injected into the payment
// adapter and webhook reconciler at construction time.
type StripeConfig struct {
	APIKey  string        `envconfig:"FORKLINE_STRIPE_API_KEY"`
	Secret  string        `envconfig:"FORKLINE_STRIPE_SECRET"`
	Env     string        `envconfig:"FORKLINE_STRIPE_ENV" default:"test"`
	Timeout time.Duration `envconfig:"FORKLINE_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CheckoutConfig struct {
	SuccessURL string `envconfig:"FORKLINE_CHECKOUT_SUCCESS_URL" required:"true"`
	CancelURL  string `envconfig:"FORKLINE_CHECKOUT_CANCEL_URL" required:"true"`
	Currency   string `envconfig:"FORKLINE_CHECKOUT_CURRENCY" default:"usd"`
}

type WebhooksConfig struct {
	IdempotencyTTL time.Duration `envconfig:"FORKLINE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"FORKLINE_DB_HOST": db.LegacyHost,
		"FORKLINE_DB_USER": db.LegacyUser,
		"FORKLINE_DB_NAME": db.LegacyName,
	}
	for _, env := range []string{"FORKLINE_DB_HOST", "FORKLINE_DB_USER", "FORKLINE_DB_NAME"} {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either FORKLINE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
