package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Stripe        StripeConfig
	SMTP          SMTPConfig
	Notifications NotificationsConfig
	Badges        BadgesConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Badges.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FIXERS_APP_ENV" required:"true"`
	Port         string `envconfig:"FIXERS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FIXERS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FIXERS_LOG_WARN_STACK" default:"false"`
	PublicURL    string `envconfig:"FIXERS_PUBLIC_URL" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FIXERS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FIXERS_DB_DSN"`
	SlowQueryThreshold time.Duration `envconfig:"FIXERS_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`

	LegacyHost     string `envconfig:"FIXERS_DB_HOST"`
	LegacyPort     int    `envconfig:"FIXERS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FIXERS_DB_USER"`
	LegacyPassword string `envconfig:"FIXERS_DB_PASSWORD"`
	LegacyName     string `envconfig:"FIXERS_DB_NAME"`
	LegacySSLMode  string `envconfig:"FIXERS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FIXERS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FIXERS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FIXERS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FIXERS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FIXERS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FIXERS_REDIS_ADDR"`
	Password     string        `envconfig:"FIXERS_REDIS_PASSWORD"`
	DB           int           `envconfig:"FIXERS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FIXERS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FIXERS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FIXERS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FIXERS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FIXERS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FIXERS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FIXERS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FIXERS_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FIXERS_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey   string `envconfig:"FIXERS_STRIPE_API_KEY"`
	Secret   string `envconfig:"FIXERS_STRIPE_SECRET"`
	Env      string `envconfig:"FIXERS_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"FIXERS_STRIPE_CURRENCY" default:"usd"`
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
	Host     string `envconfig:"FIXERS_SMTP_HOST"`
	Port     int    `envconfig:"FIXERS_SMTP_PORT" default:"587"`
	Username string `envconfig:"FIXERS_SMTP_USERNAME"`
	Password string `envconfig:"FIXERS_SMTP_PASSWORD"`
	From     string `envconfig:"FIXERS_SMTP_FROM" default:"no-reply@fixers.app"`
}

// Enabled reports whether outbound email is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

type NotificationsConfig struct {
	AdminEmail    string `envconfig:"FIXERS_ADMIN_EMAIL" default:"admin@fixers.app"`
	RetentionDays int    `envconfig:"FIXERS_NOTIFICATION_RETENTION_DAYS" default:"90"`
}

type BadgesConfig struct {
	MaxFailedPaymentAttempts int           `envconfig:"FIXERS_BADGE_MAX_FAILED_PAYMENTS" default:"3"`
	TopPerformerPercent      float64       `envconfig:"FIXERS_BADGE_TOP_PERFORMER_PERCENT" default:"5"`
	StaleRequestTTL          time.Duration `envconfig:"FIXERS_BADGE_STALE_REQUEST_TTL" default:"168h"`
	WebhookIdempotencyTTL    time.Duration `envconfig:"FIXERS_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

func (b BadgesConfig) validate() error {
	if b.MaxFailedPaymentAttempts < 1 {
		return fmt.Errorf("%s must be at least 1", EnvBadgeMaxFailedPayments)
	}
	if b.TopPerformerPercent <= 0 || b.TopPerformerPercent > 100 {
		return fmt.Errorf("%s must be within (0, 100]", EnvBadgeTopPerformerPercent)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FIXERS_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"FIXERS_CRON_LOCK_TTL" default:"30m"`
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
