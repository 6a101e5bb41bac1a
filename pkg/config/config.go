package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	Idempotency    IdempotencyConfig
	Reconciliation ReconciliationConfig
	FeatureFlags   FeatureFlagsConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
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
	Env          string   `envconfig:"CARDRAIL_APP_ENV" required:"true"`
	Port         string   `envconfig:"CARDRAIL_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CARDRAIL_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CARDRAIL_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CARDRAIL_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CARDRAIL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CARDRAIL_DB_DSN"`
	Driver string `envconfig:"CARDRAIL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDRAIL_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDRAIL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDRAIL_DB_USER"`
	LegacyPassword string `envconfig:"CARDRAIL_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDRAIL_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDRAIL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDRAIL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDRAIL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDRAIL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDRAIL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARDRAIL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARDRAIL_REDIS_ADDR"`
	Password     string        `envconfig:"CARDRAIL_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARDRAIL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARDRAIL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARDRAIL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARDRAIL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARDRAIL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARDRAIL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type IdempotencyConfig struct {
	ProcessingTTL time.Duration `envconfig:"CARDRAIL_IDEMPOTENCY_PROCESSING_TTL" default:"60s"`
	CompletedTTL  time.Duration `envconfig:"CARDRAIL_IDEMPOTENCY_COMPLETED_TTL" default:"24h"`
	CriticalTTL   time.Duration `envconfig:"CARDRAIL_IDEMPOTENCY_CRITICAL_TTL" default:"168h"`
}

type ReconciliationConfig struct {
	FeedURL       string        `envconfig:"CARDRAIL_SETTLEMENT_FEED_URL"`
	FeedAPIKey    string        `envconfig:"CARDRAIL_SETTLEMENT_FEED_API_KEY"`
	Interval      time.Duration `envconfig:"CARDRAIL_RECONCILIATION_INTERVAL" default:"24h"`
	FeedTimeout   time.Duration `envconfig:"CARDRAIL_RECONCILIATION_FEED_TIMEOUT" default:"2m"`
	FeedAttempts  int           `envconfig:"CARDRAIL_RECONCILIATION_FEED_ATTEMPTS" default:"4"`
	LookbackDays  int           `envconfig:"CARDRAIL_RECONCILIATION_LOOKBACK_DAYS" default:"1"`
	StatementsDay int           `envconfig:"CARDRAIL_STATEMENTS_DAY_OF_MONTH" default:"1"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARDRAIL_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARDRAIL_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CARDRAIL_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CARDRAIL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CARDRAIL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BalanceTopic string `envconfig:"CARDRAIL_PUBSUB_BALANCE_TOPIC" default:"cr-balance-events"`
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
