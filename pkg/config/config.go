package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App              AppConfig
	DB               DBConfig
	Redis            RedisConfig
	JWT              JWTConfig
	PaymentRateLimit PaymentRateLimitConfig
	FeatureFlags     FeatureFlagsConfig
	Razorpay         RazorpayConfig
	Stripe           StripeConfig
	SMTP             SMTPConfig
	Webhooks         WebhookConfig
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
	Env          string `envconfig:"GHARBAZAAR_APP_ENV" required:"true"`
	Port         string `envconfig:"GHARBAZAAR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GHARBAZAAR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GHARBAZAAR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GHARBAZAAR_DB_DSN"`
	Driver string `envconfig:"GHARBAZAAR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GHARBAZAAR_DB_HOST"`
	LegacyPort     int    `envconfig:"GHARBAZAAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GHARBAZAAR_DB_USER"`
	LegacyPassword string `envconfig:"GHARBAZAAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"GHARBAZAAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"GHARBAZAAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GHARBAZAAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GHARBAZAAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GHARBAZAAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GHARBAZAAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GHARBAZAAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GHARBAZAAR_REDIS_ADDR"`
	Password     string        `envconfig:"GHARBAZAAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"GHARBAZAAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GHARBAZAAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GHARBAZAAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GHARBAZAAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GHARBAZAAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GHARBAZAAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GHARBAZAAR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GHARBAZAAR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GHARBAZAAR_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PaymentRateLimitConfig struct {
	Window    time.Duration `envconfig:"GHARBAZAAR_PAYMENT_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"GHARBAZAAR_PAYMENT_RATE_LIMIT_USER_LIMIT" default:"10"`
	IPLimit   int           `envconfig:"GHARBAZAAR_PAYMENT_RATE_LIMIT_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GHARBAZAAR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GHARBAZAAR_AUTO_MIGRATE" default:"false"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"GHARBAZAAR_RAZORPAY_KEY_ID"`
	KeySecret     string `envconfig:"GHARBAZAAR_RAZORPAY_KEY_SECRET"`
	WebhookSecret string `envconfig:"GHARBAZAAR_RAZORPAY_WEBHOOK_SECRET"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"GHARBAZAAR_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"GHARBAZAAR_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"GHARBAZAAR_STRIPE_ENV" default:"test"`
	SuccessURL    string `envconfig:"GHARBAZAAR_STRIPE_SUCCESS_URL"`
	CancelURL     string `envconfig:"GHARBAZAAR_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SMTPConfig struct {
	Host     string `envconfig:"GHARBAZAAR_SMTP_HOST"`
	Port     int    `envconfig:"GHARBAZAAR_SMTP_PORT" default:"587"`
	Username string `envconfig:"GHARBAZAAR_SMTP_USERNAME"`
	Password string `envconfig:"GHARBAZAAR_SMTP_PASSWORD"`
	From     string `envconfig:"GHARBAZAAR_SMTP_FROM"`
	FromName string `envconfig:"GHARBAZAAR_SMTP_FROM_NAME" default:"GharBazaar"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"GHARBAZAAR_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
