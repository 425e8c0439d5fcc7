package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Alarm    AlarmConfig
	Outbox   OutboxConfig
	Eventing EventingConfig
	Flags    FeatureFlagsConfig
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
	Env          string `envconfig:"SNS_APP_ENV" required:"true"`
	Port         string `envconfig:"SNS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SNS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SNS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SNS_DB_DSN"`
	Driver string `envconfig:"SNS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SNS_DB_HOST"`
	Port     int    `envconfig:"SNS_DB_PORT" default:"5432"`
	User     string `envconfig:"SNS_DB_USER"`
	Password string `envconfig:"SNS_DB_PASSWORD"`
	Name     string `envconfig:"SNS_DB_NAME"`
	SSLMode  string `envconfig:"SNS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SNS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SNS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SNS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SNS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SNS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SNS_REDIS_ADDR"`
	Password     string        `envconfig:"SNS_REDIS_PASSWORD"`
	DB           int           `envconfig:"SNS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SNS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SNS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SNS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SNS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SNS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SNS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SNS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SNS_JWT_EXPIRATION_MINUTES" default:"60"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SNS_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SNS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SNS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AlarmTopic        string `envconfig:"SNS_PUBSUB_ALARM_TOPIC" default:"sns-alarm-events"`
	AlarmSubscription string `envconfig:"SNS_PUBSUB_ALARM_SUBSCRIPTION" required:"true"`
}

// AlarmConfig tunes the live push channel behavior.
type AlarmConfig struct {
	ConnectionTimeout time.Duration `envconfig:"SNS_ALARM_CONNECTION_TIMEOUT" default:"1h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SNS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SNS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SNS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SNS_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SNS_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	pieces := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range []string{EnvDBHost, EnvDBUser, EnvDBName} {
		if pieces[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
