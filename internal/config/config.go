package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string
	SnowflakeNode int64

	OTLPEndpoint string
	SeedDemoData bool

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Payment   PaymentConfig
	Breakdown BreakdownConfig
	Notify    NotifyConfig
	Scheduler SchedulerConfig

	ExternalCallTimeout time.Duration
	LockTTL             time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type RateLimitConfig struct {
	Enabled            bool
	BookingCreateRate  float64
	BookingCreateBurst int
}

type PaymentConfig struct {
	Provider         string
	StripeSecretKey  string
	StripeAPIBase    string
	WebhookSecret    string
	WebhookTolerance time.Duration
	ProPriceID       string
	BusinessPriceID  string
}

type BreakdownConfig struct {
	URL   string
	Token string
}

type NotifyConfig struct {
	AMQPURL      string
	AMQPExchange string
}

type SchedulerConfig struct {
	Enabled         bool
	RunInterval     time.Duration
	BatchSize       int
	StaleEventAfter time.Duration
	EnabledJobs     []string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "appointly"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		SnowflakeNode: getenvInt64("SNOWFLAKE_NODE", 1),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),
		SeedDemoData:  getenvBool("SEED_DEMO_DATA", false),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "appointly"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:            getenvBool("RATE_LIMIT_ENABLED", false),
			BookingCreateRate:  getenvFloat("RATE_LIMIT_BOOKING_CREATE_RATE", 1),
			BookingCreateBurst: getenvInt("RATE_LIMIT_BOOKING_CREATE_BURST", 5),
		},
		Payment: PaymentConfig{
			Provider:         strings.ToLower(getenv("PAYMENT_PROVIDER", "stripe")),
			StripeSecretKey:  strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			StripeAPIBase:    strings.TrimSpace(getenv("STRIPE_API_BASE", "https://api.stripe.com")),
			WebhookSecret:    strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance: getenvDuration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute),
			ProPriceID:       strings.TrimSpace(getenv("STRIPE_PRO_PRICE_ID", "")),
			BusinessPriceID:  strings.TrimSpace(getenv("STRIPE_BUSINESS_PRICE_ID", "")),
		},
		Breakdown: BreakdownConfig{
			URL:   strings.TrimSpace(getenv("BREAKDOWN_URL", "")),
			Token: strings.TrimSpace(getenv("BREAKDOWN_TOKEN", "")),
		},
		Notify: NotifyConfig{
			AMQPURL:      strings.TrimSpace(getenv("AMQP_URL", "")),
			AMQPExchange: getenv("AMQP_EXCHANGE", "appointly.notifications"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:     getenvDuration("SCHEDULER_RUN_INTERVAL", 5*time.Minute),
			BatchSize:       getenvInt("SCHEDULER_BATCH_SIZE", 100),
			StaleEventAfter: getenvDuration("SCHEDULER_STALE_EVENT_AFTER", 30*time.Minute),
			EnabledJobs:     getenvList("SCHEDULER_JOBS"),
		},

		ExternalCallTimeout: getenvDuration("EXTERNAL_CALL_TIMEOUT", 5*time.Second),
		LockTTL:             getenvDuration("LOCK_TTL", 10*time.Second),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
