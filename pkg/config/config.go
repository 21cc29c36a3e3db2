package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "DEALGUARD"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "DEALGUARD_APP_ENV"
	EnvPort     = "DEALGUARD_APP_PORT"
	EnvDBDSN    = "DEALGUARD_DB_DSN"
	EnvDBHost   = "DEALGUARD_DB_HOST"
	EnvDBUser   = "DEALGUARD_DB_USER"
	EnvDBName   = "DEALGUARD_DB_NAME"
	EnvRedisURL = "DEALGUARD_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Estimation   EstimationConfig
	Locks        LocksConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"DEALGUARD_APP_ENV" required:"true"`
	Port         string `envconfig:"DEALGUARD_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DEALGUARD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DEALGUARD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DEALGUARD_DB_DSN"`
	Driver string `envconfig:"DEALGUARD_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DEALGUARD_DB_HOST"`
	LegacyPort     int    `envconfig:"DEALGUARD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DEALGUARD_DB_USER"`
	LegacyPassword string `envconfig:"DEALGUARD_DB_PASSWORD"`
	LegacyName     string `envconfig:"DEALGUARD_DB_NAME"`
	LegacySSLMode  string `envconfig:"DEALGUARD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DEALGUARD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DEALGUARD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DEALGUARD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DEALGUARD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DEALGUARD_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DEALGUARD_REDIS_ADDR"`
	Password     string        `envconfig:"DEALGUARD_REDIS_PASSWORD"`
	DB           int           `envconfig:"DEALGUARD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DEALGUARD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DEALGUARD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DEALGUARD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DEALGUARD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DEALGUARD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DEALGUARD_GCP_PROJECT_ID"`
}

// PubSubConfig names the topics fed by the outbox publisher and the
// subscription drained by the simulation worker.
type PubSubConfig struct {
	DecisionsTopic          string `envconfig:"DEALGUARD_PUBSUB_DECISIONS_TOPIC" default:"gate-decisions"`
	SimulationsTopic        string `envconfig:"DEALGUARD_PUBSUB_SIMULATIONS_TOPIC" default:"cog-simulations"`
	NotificationsTopic      string `envconfig:"DEALGUARD_PUBSUB_NOTIFICATIONS_TOPIC" default:"guardrail-notifications"`
	SimulationsSubscription string `envconfig:"DEALGUARD_PUBSUB_SIMULATIONS_SUBSCRIPTION" default:"cog-simulations-worker"`
}

// EstimationConfig bounds the Monte Carlo sampler.
type EstimationConfig struct {
	DefaultRuns int `envconfig:"DEALGUARD_ESTIMATION_DEFAULT_RUNS" default:"1000"`
	MaxRuns     int `envconfig:"DEALGUARD_ESTIMATION_MAX_RUNS" default:"20000"`
}

// LocksConfig tunes the per-deal lock held around ledger writes.
type LocksConfig struct {
	TTL           time.Duration `envconfig:"DEALGUARD_LOCK_TTL" default:"10s"`
	RetryInterval time.Duration `envconfig:"DEALGUARD_LOCK_RETRY_INTERVAL" default:"50ms"`
	MaxRetries    int           `envconfig:"DEALGUARD_LOCK_MAX_RETRIES" default:"40"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DEALGUARD_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DEALGUARD_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DEALGUARD_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DEALGUARD_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DEALGUARD_AUTO_MIGRATE" default:"false"`
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
