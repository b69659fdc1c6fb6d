package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Payments  PaymentsConfig
	Airwallex AirwallexConfig
	Stripe    StripeConfig
	PayPal    PayPalConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
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
	Env          string `envconfig:"TASKHIVE_APP_ENV" required:"true"`
	Port         string `envconfig:"TASKHIVE_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"TASKHIVE_APP_BASE_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"TASKHIVE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TASKHIVE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN         string `envconfig:"TASKHIVE_DB_DSN"`
	Driver      string `envconfig:"TASKHIVE_DB_DRIVER" default:"postgres"`
	AutoMigrate bool   `envconfig:"TASKHIVE_DB_AUTO_MIGRATE" default:"false"`

	LegacyHost     string `envconfig:"TASKHIVE_DB_HOST"`
	LegacyPort     int    `envconfig:"TASKHIVE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TASKHIVE_DB_USER"`
	LegacyPassword string `envconfig:"TASKHIVE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TASKHIVE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TASKHIVE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TASKHIVE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TASKHIVE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TASKHIVE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TASKHIVE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TASKHIVE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TASKHIVE_REDIS_ADDR"`
	Password     string        `envconfig:"TASKHIVE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TASKHIVE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TASKHIVE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TASKHIVE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TASKHIVE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TASKHIVE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TASKHIVE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TASKHIVE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TASKHIVE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TASKHIVE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PaymentsConfig selects the active provider and fixes platform-level amounts.
// The provider value is read once per request and never mutated at runtime;
// changing it requires a process restart.
type PaymentsConfig struct {
	Provider         string        `envconfig:"TASKHIVE_PAYMENTS_PROVIDER" default:"airwallex"`
	ServiceFee       string        `envconfig:"TASKHIVE_PAYMENTS_SERVICE_FEE" default:"2.00"`
	Currency         string        `envconfig:"TASKHIVE_PAYMENTS_CURRENCY" default:"EUR"`
	WebhookReplayTTL time.Duration `envconfig:"TASKHIVE_PAYMENTS_WEBHOOK_REPLAY_TTL" default:"720h"`
}

type AirwallexConfig struct {
	ClientID      string `envconfig:"TASKHIVE_AIRWALLEX_CLIENT_ID"`
	APIKey        string `envconfig:"TASKHIVE_AIRWALLEX_API_KEY"`
	WebhookSecret string `envconfig:"TASKHIVE_AIRWALLEX_WEBHOOK_SECRET"`
	Env           string `envconfig:"TASKHIVE_AIRWALLEX_ENV" default:"demo"`
}

// Environment returns the normalized Airwallex environment (demo/production).
func (a AirwallexConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(a.Env))
	if env == "" {
		return "demo"
	}
	return env
}

type StripeConfig struct {
	APIKey string `envconfig:"TASKHIVE_STRIPE_API_KEY"`
	Secret string `envconfig:"TASKHIVE_STRIPE_SECRET"`
	Env    string `envconfig:"TASKHIVE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID  string `envconfig:"TASKHIVE_PAYPAL_CLIENT_ID"`
	Secret    string `envconfig:"TASKHIVE_PAYPAL_SECRET"`
	WebhookID string `envconfig:"TASKHIVE_PAYPAL_WEBHOOK_ID"`
	Env       string `envconfig:"TASKHIVE_PAYPAL_ENV" default:"sandbox"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"TASKHIVE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"TASKHIVE_PUBSUB_PAYMENTS_TOPIC" default:"th-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TASKHIVE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TASKHIVE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TASKHIVE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
