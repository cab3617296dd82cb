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
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	Reconcile    ReconcileConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Inventory.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ASSETLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"ASSETLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ASSETLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ASSETLEDGER_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow list for browser clients.
	CORSOrigins []string `envconfig:"ASSETLEDGER_APP_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ASSETLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ASSETLEDGER_DB_DSN"`
	Driver string `envconfig:"ASSETLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ASSETLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"ASSETLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ASSETLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"ASSETLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"ASSETLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"ASSETLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ASSETLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ASSETLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ASSETLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ASSETLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the threshold above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"ASSETLEDGER_DB_SLOW_QUERY" default:"250ms"`
	// ConnectAttempts bounds the startup ping retries.
	ConnectAttempts uint64 `envconfig:"ASSETLEDGER_DB_CONNECT_ATTEMPTS" default:"5"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"ASSETLEDGER_REDIS_URL"`
	Address      string        `envconfig:"ASSETLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"ASSETLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"ASSETLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ASSETLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ASSETLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ASSETLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ASSETLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ASSETLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ASSETLEDGER_AUTO_MIGRATE" default:"false"`
}

// InventoryConfig tunes the lifecycle engine.
type InventoryConfig struct {
	ReceivingLocation       string        `envconfig:"ASSETLEDGER_INVENTORY_RECEIVING_LOCATION" default:"RECEIVING"`
	OverReceiptTolerancePct int           `envconfig:"ASSETLEDGER_INVENTORY_OVER_RECEIPT_TOLERANCE_PCT" default:"0"`
	MaxRetries              int           `envconfig:"ASSETLEDGER_INVENTORY_MAX_RETRIES" default:"5"`
	RetryBackoff            time.Duration `envconfig:"ASSETLEDGER_INVENTORY_RETRY_BACKOFF" default:"10ms"`
	StatusSource            string        `envconfig:"ASSETLEDGER_INVENTORY_STATUS_SOURCE" default:"static"`
}

func (i InventoryConfig) validate() error {
	if strings.TrimSpace(i.ReceivingLocation) == "" {
		return fmt.Errorf("%s must not be empty", EnvReceivingLocation)
	}
	if i.OverReceiptTolerancePct < 0 {
		return fmt.Errorf("%s must be >= 0", EnvOverReceiptTolerance)
	}
	if i.MaxRetries < 0 {
		return fmt.Errorf("%s must be >= 0", EnvMaxRetries)
	}
	switch strings.ToLower(i.StatusSource) {
	case StatusSourceStatic, StatusSourceDB:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvStatusSource, StatusSourceStatic, StatusSourceDB)
	}
	return nil
}

type ReconcileConfig struct {
	Interval time.Duration `envconfig:"ASSETLEDGER_RECONCILE_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"ASSETLEDGER_RECONCILE_LOCK_TTL" default:"55m"`
	// OutboxRetentionDays bounds how long published outbox rows are kept.
	OutboxRetentionDays int `envconfig:"ASSETLEDGER_OUTBOX_RETENTION_DAYS" default:"30"`
	// MetricsAddr is where the cron worker serves /metrics; empty disables it.
	MetricsAddr string `envconfig:"ASSETLEDGER_CRON_METRICS_ADDR" default:":9092"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ASSETLEDGER_GCP_PROJECT_ID"`
	// Either credential source overrides application default credentials.
	CredentialsJSON        string `envconfig:"ASSETLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ASSETLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	InventoryTopic  string `envconfig:"ASSETLEDGER_PUBSUB_INVENTORY_TOPIC" default:"inventory-events"`
	PurchasingTopic string `envconfig:"ASSETLEDGER_PUBSUB_PURCHASING_TOPIC" default:"purchasing-events"`
	// AuditSubscription is optional; when set the publisher checks it exists on startup.
	AuditSubscription string `envconfig:"ASSETLEDGER_PUBSUB_AUDIT_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ASSETLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ASSETLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ASSETLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// MetricsAddr is where the relay serves /metrics; empty disables it.
	MetricsAddr string `envconfig:"ASSETLEDGER_OUTBOX_METRICS_ADDR" default:":9091"`
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
