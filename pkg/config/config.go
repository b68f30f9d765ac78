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
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Auth          AuthConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Shop          ShopConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	Mail          MailConfig
	Cron          CronConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(cfg.GCP, cfg.PubSub, cfg.Kafka); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MEMENTO_APP_ENV" required:"true"`
	Port         string `envconfig:"MEMENTO_APP_PORT" required:"true"`
	PublicURL    string `envconfig:"MEMENTO_PUBLIC_URL" default:"http://localhost:3000"`
	LogLevel     string `envconfig:"MEMENTO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MEMENTO_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"MEMENTO_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MEMENTO_DB_DSN"`
	Driver string `envconfig:"MEMENTO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MEMENTO_DB_HOST"`
	LegacyPort     int    `envconfig:"MEMENTO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MEMENTO_DB_USER"`
	LegacyPassword string `envconfig:"MEMENTO_DB_PASSWORD"`
	LegacyName     string `envconfig:"MEMENTO_DB_NAME"`
	LegacySSLMode  string `envconfig:"MEMENTO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MEMENTO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MEMENTO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MEMENTO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MEMENTO_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery logs statements slower than this at warn level. Zero disables it.
	SlowQuery time.Duration `envconfig:"MEMENTO_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MEMENTO_REDIS_URL"`
	Address      string        `envconfig:"MEMENTO_REDIS_ADDR"`
	Password     string        `envconfig:"MEMENTO_REDIS_PASSWORD"`
	DB           int           `envconfig:"MEMENTO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MEMENTO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MEMENTO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MEMENTO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MEMENTO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MEMENTO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MEMENTO_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MEMENTO_JWT_ISSUER" default:"memento-mori"`
	ExpirationMinutes      int    `envconfig:"MEMENTO_JWT_EXPIRATION_MINUTES" default:"60"`
	RefreshTokenTTLMinutes int    `envconfig:"MEMENTO_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MEMENTO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MEMENTO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MEMENTO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MEMENTO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MEMENTO_ARGON_KEY_LEN" default:"32"`
}

type AuthConfig struct {
	DelayMin             time.Duration `envconfig:"MEMENTO_AUTH_DELAY_MIN" default:"500ms"`
	DelayMax             time.Duration `envconfig:"MEMENTO_AUTH_DELAY_MAX" default:"1s"`
	VerificationTokenTTL time.Duration `envconfig:"MEMENTO_AUTH_VERIFICATION_TTL" default:"48h"`
	RequireVerifiedEmail bool          `envconfig:"MEMENTO_AUTH_REQUIRE_VERIFIED_EMAIL" default:"true"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MEMENTO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MEMENTO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MEMENTO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MEMENTO_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MEMENTO_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MEMENTO_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MEMENTO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MEMENTO_AUTO_MIGRATE" default:"false"`
}

type ShopConfig struct {
	Currency          string        `envconfig:"MEMENTO_SHOP_CURRENCY" default:"USD"`
	SearchLimit       int           `envconfig:"MEMENTO_SHOP_SEARCH_LIMIT" default:"20"`
	LowStockThreshold int           `envconfig:"MEMENTO_SHOP_LOW_STOCK_THRESHOLD" default:"5"`
	IdempotencyTTL    time.Duration `envconfig:"MEMENTO_SHOP_IDEMPOTENCY_TTL" default:"168h"`
}

type EventingConfig struct {
	Backend        string `envconfig:"MEMENTO_EVENTING_BACKEND" default:"none"`
	BatchSize      int    `envconfig:"MEMENTO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"MEMENTO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"MEMENTO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// NormalizedBackend returns the lower-cased publisher backend name.
func (e EventingConfig) NormalizedBackend() string {
	backend := strings.ToLower(strings.TrimSpace(e.Backend))
	if backend == "" {
		return EventingBackendNone
	}
	return backend
}

func (e EventingConfig) validate(gcp GCPConfig, ps PubSubConfig, k KafkaConfig) error {
	switch e.NormalizedBackend() {
	case EventingBackendNone:
		return nil
	case EventingBackendPubSub:
		if strings.TrimSpace(gcp.ProjectID) == "" {
			return fmt.Errorf("%s is required for the pubsub backend", EnvGCPProjectID)
		}
		if strings.TrimSpace(ps.OrdersTopic) == "" {
			return fmt.Errorf("%s is required for the pubsub backend", EnvPubSubOrdersTopic)
		}
		return nil
	case EventingBackendKafka:
		if len(k.Brokers) == 0 {
			return fmt.Errorf("%s is required for the kafka backend", EnvKafkaBrokers)
		}
		return nil
	default:
		return fmt.Errorf("unknown eventing backend %q", e.Backend)
	}
}

type GCPConfig struct {
	ProjectID string `envconfig:"MEMENTO_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"MEMENTO_PUBSUB_ORDERS_TOPIC"`
	DomainTopic string `envconfig:"MEMENTO_PUBSUB_DOMAIN_TOPIC"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"MEMENTO_KAFKA_BROKERS"`
	OrdersTopic string   `envconfig:"MEMENTO_KAFKA_ORDERS_TOPIC" default:"memento.orders"`
	DomainTopic string   `envconfig:"MEMENTO_KAFKA_DOMAIN_TOPIC" default:"memento.domain"`
	ClientID    string   `envconfig:"MEMENTO_KAFKA_CLIENT_ID" default:"memento-outbox"`
}

type MailConfig struct {
	Enabled  bool   `envconfig:"MEMENTO_MAIL_ENABLED" default:"false"`
	Host     string `envconfig:"MEMENTO_SMTP_HOST" default:"localhost"`
	Port     string `envconfig:"MEMENTO_SMTP_PORT" default:"1025"`
	Username string `envconfig:"MEMENTO_SMTP_USERNAME"`
	Password string `envconfig:"MEMENTO_SMTP_PASSWORD"`
	From     string `envconfig:"MEMENTO_MAIL_FROM" default:"orders@memento-mori.local"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"MEMENTO_CRON_INTERVAL" default:"1h"`
	OutboxRetention time.Duration `envconfig:"MEMENTO_CRON_OUTBOX_RETENTION" default:"720h"`
	DLQRetention    time.Duration `envconfig:"MEMENTO_CRON_DLQ_RETENTION" default:"2160h"`
	LockKey         string        `envconfig:"MEMENTO_CRON_LOCK_KEY" default:"cron:maintenance"`
	LockTTL         time.Duration `envconfig:"MEMENTO_CRON_LOCK_TTL" default:"55m"`
	JobTimeout      time.Duration `envconfig:"MEMENTO_CRON_JOB_TIMEOUT" default:"10m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"MEMENTO_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if sqlite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = "file:memento.db?cache=shared"
		}
		return nil
	}
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
