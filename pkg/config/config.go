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
	Checkout     CheckoutConfig
	VNPay        VNPayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string   `envconfig:"ORDERFLOW_APP_ENV" required:"true"`
	Port         string   `envconfig:"ORDERFLOW_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"ORDERFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"ORDERFLOW_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"ORDERFLOW_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"ORDERFLOW_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERFLOW_SERVICE_KIND" default:"api"`
	// MetricsAddr is where workers serve /metrics; empty disables it.
	MetricsAddr string `envconfig:"ORDERFLOW_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERFLOW_DB_DSN"`
	Driver string `envconfig:"ORDERFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERFLOW_DB_USER"`
	LegacyPassword string `envconfig:"ORDERFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"ORDERFLOW_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ORDERFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ORDERFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ORDERFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ORDERFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ORDERFLOW_AUTO_MIGRATE" default:"false"`
}

type CheckoutConfig struct {
	DeliveryEstimateDays int           `envconfig:"ORDERFLOW_CHECKOUT_DELIVERY_ESTIMATE_DAYS" default:"7"`
	RateLimitPerWindow   int           `envconfig:"ORDERFLOW_CHECKOUT_RATE_LIMIT" default:"10"`
	RateLimitWindow      time.Duration `envconfig:"ORDERFLOW_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
}

// DeliveryEstimate returns the offset applied to each order item's estimated delivery date.
func (c CheckoutConfig) DeliveryEstimate() time.Duration {
	days := c.DeliveryEstimateDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

type VNPayConfig struct {
	TmnCode       string `envconfig:"ORDERFLOW_VNPAY_TMN_CODE"`
	HashSecret    string `envconfig:"ORDERFLOW_VNPAY_HASH_SECRET"`
	PayURL        string `envconfig:"ORDERFLOW_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL     string `envconfig:"ORDERFLOW_VNPAY_RETURN_URL"`
	Version       string `envconfig:"ORDERFLOW_VNPAY_VERSION" default:"2.1.0"`
	Command       string `envconfig:"ORDERFLOW_VNPAY_COMMAND" default:"pay"`
	CurrCode      string `envconfig:"ORDERFLOW_VNPAY_CURR_CODE" default:"VND"`
	Locale        string `envconfig:"ORDERFLOW_VNPAY_LOCALE" default:"vn"`
	OrderType     string `envconfig:"ORDERFLOW_VNPAY_ORDER_TYPE" default:"other"`
	Timezone      string `envconfig:"ORDERFLOW_VNPAY_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	ExpiryMinutes int    `envconfig:"ORDERFLOW_VNPAY_EXPIRY_MINUTES" default:"15"`
}

// Configured reports whether the merchant credentials needed to sign requests are present.
func (v VNPayConfig) Configured() bool {
	return strings.TrimSpace(v.TmnCode) != "" &&
		strings.TrimSpace(v.HashSecret) != "" &&
		strings.TrimSpace(v.PayURL) != ""
}

func (v VNPayConfig) Expiry() time.Duration {
	if v.ExpiryMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(v.ExpiryMinutes) * time.Minute
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORDERFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"ORDERFLOW_PUBSUB_ORDERS_TOPIC" default:"of-order-events"`
	PaymentsTopic     string `envconfig:"ORDERFLOW_PUBSUB_PAYMENTS_TOPIC" default:"of-payment-events"`
	NotificationTopic string `envconfig:"ORDERFLOW_PUBSUB_NOTIFICATION_TOPIC" default:"of-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"ORDERFLOW_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"ORDERFLOW_CRON_INTERVAL" default:"1h"`
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
