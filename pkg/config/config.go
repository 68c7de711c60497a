package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Reservation  ReservationConfig
	Settlement   SettlementConfig
	Cron         CronConfig
	Outbox       OutboxConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
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
	Env          string `envconfig:"TOPSHOPES_APP_ENV" required:"true"`
	Port         string `envconfig:"TOPSHOPES_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOPSHOPES_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TOPSHOPES_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TOPSHOPES_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"TOPSHOPES_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TOPSHOPES_DB_DSN"`
	Driver string `envconfig:"TOPSHOPES_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOPSHOPES_DB_HOST"`
	LegacyPort     int    `envconfig:"TOPSHOPES_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOPSHOPES_DB_USER"`
	LegacyPassword string `envconfig:"TOPSHOPES_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOPSHOPES_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOPSHOPES_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOPSHOPES_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOPSHOPES_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOPSHOPES_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOPSHOPES_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TOPSHOPES_DB_SLOW_QUERY" default:"250ms"`
}

// IsSQLite reports whether the sqlite driver was selected (local development only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"TOPSHOPES_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOPSHOPES_REDIS_ADDR"`
	Password     string        `envconfig:"TOPSHOPES_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOPSHOPES_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOPSHOPES_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOPSHOPES_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOPSHOPES_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOPSHOPES_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOPSHOPES_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"TOPSHOPES_REDIS_KEY_PREFIX" default:"ts"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TOPSHOPES_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TOPSHOPES_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TOPSHOPES_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TOPSHOPES_AUTO_MIGRATE" default:"false"`
}

// ReservationConfig tunes the per-unit reservation lease used by the buy path.
type ReservationConfig struct {
	AcquireTimeout time.Duration `envconfig:"TOPSHOPES_RESERVATION_ACQUIRE_TIMEOUT" default:"3s"`
	LeaseTTL       time.Duration `envconfig:"TOPSHOPES_RESERVATION_LEASE_TTL" default:"10s"`
	RetryInterval  time.Duration `envconfig:"TOPSHOPES_RESERVATION_RETRY_INTERVAL" default:"25ms"`
}

type SettlementConfig struct {
	GracePeriod  time.Duration `envconfig:"TOPSHOPES_SETTLEMENT_GRACE_PERIOD" default:"72h"`
	PollInterval time.Duration `envconfig:"TOPSHOPES_SETTLEMENT_POLL_INTERVAL" default:"5s"`
	BatchSize    int           `envconfig:"TOPSHOPES_SETTLEMENT_BATCH_SIZE" default:"25"`
	MaxAttempts  int           `envconfig:"TOPSHOPES_SETTLEMENT_MAX_ATTEMPTS" default:"8"`
	MaxBackoff   time.Duration `envconfig:"TOPSHOPES_SETTLEMENT_MAX_BACKOFF" default:"1h"`
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"TOPSHOPES_CRON_INTERVAL" default:"1m"`
	SweepEvery     time.Duration `envconfig:"TOPSHOPES_CRON_SETTLEMENT_SWEEP_EVERY" default:"10m"`
	RetentionEvery time.Duration `envconfig:"TOPSHOPES_CRON_OUTBOX_RETENTION_EVERY" default:"24h"`
	LockTTL        time.Duration `envconfig:"TOPSHOPES_CRON_LOCK_TTL" default:"2h"`
}

type OutboxConfig struct {
	BatchSize        int `envconfig:"TOPSHOPES_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS   int `envconfig:"TOPSHOPES_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts      int `envconfig:"TOPSHOPES_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays    int `envconfig:"TOPSHOPES_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays int `envconfig:"TOPSHOPES_OUTBOX_DLQ_RETENTION_DAYS" default:"90"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TOPSHOPES_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic  string `envconfig:"TOPSHOPES_PUBSUB_ORDERS_TOPIC" default:"ts-order-events"`
	PayoutsTopic string `envconfig:"TOPSHOPES_PUBSUB_PAYOUTS_TOPIC" default:"ts-payout-events"`
}

type WebhooksConfig struct {
	PaymentGatewaySecret string `envconfig:"TOPSHOPES_PAYMENT_WEBHOOK_SECRET"`
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
