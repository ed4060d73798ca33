package config

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string
	Port            string
	MaintenanceMode bool

	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseSSLMode  string
	DatabaseTimezone string
	DBMaxIdleConns   int
	DBMaxOpenConns   int
	StoreDriver      string

	RedisURL       string
	InventoryTTL   time.Duration
	JWTSecret      string
	ScanSecret     string
	OrderTTL       time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int

	NotifierDriver string
	MailFrom       string
	MailFromName   string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SQSQueueURL    string
	PaymentsQueue  string
	KafkaBroker    string
	KafkaTopic     string
	SNSTopicArn    string
	AWSRoleArn     string
	S3AssetsBucket string

	StripeSecretKey     string
	StripeWebhookSecret string
	AppHost             string
	TempDir             string
	LogDir              string
}

// Load reads .env in local mode and then the process environment.
func Load() (*Config, error) {
	env := getEnv("API_ENV", "local")
	if env == "local" {
		cwd, _ := os.Getwd()
		envFile := path.Join(cwd, ".env")
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("loading %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{
		Env:             env,
		Port:            getEnv("PORT", "9090"),
		MaintenanceMode: getBool("MAINTENANCE_MODE", false),

		DatabaseHost:     getEnv("DATABASE_HOST", "localhost"),
		DatabasePort:     getEnv("DATABASE_PORT", "5432"),
		DatabaseUser:     getEnv("DATABASE_USER", "postgres"),
		DatabasePassword: os.Getenv("DATABASE_PASSWORD"),
		DatabaseName:     getEnv("DATABASE_NAME", "ticketing"),
		DatabaseSSLMode:  getEnv("DATABASE_SSLMODE", "disable"),
		DatabaseTimezone: getEnv("DATABASE_TIMEZONE", "UTC"),
		DBMaxIdleConns:   getInt("DATABASE_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns:   getInt("DATABASE_MAX_OPEN_CONNS", 100),
		StoreDriver:      getEnv("STORE_DRIVER", "postgres"),

		RedisURL:       os.Getenv("REDIS_HOST"),
		InventoryTTL:   getDuration("INVENTORY_CACHE_TTL", 5*time.Second),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		ScanSecret:     os.Getenv("SCAN_PAYLOAD_SECRET"),
		OrderTTL:       getDuration("ORDER_PENDING_TTL", 30*time.Minute),
		SweepInterval:  getDuration("ORDER_SWEEP_INTERVAL", time.Minute),
		SweepBatchSize: getInt("ORDER_SWEEP_BATCH_SIZE", 100),

		NotifierDriver: getEnv("NOTIFIER_DRIVER", "log"),
		MailFrom:       getEnv("MAIL_FROM", "no-reply@localhost"),
		MailFromName:   getEnv("MAIL_FROM_NAME", "Tickets"),
		SMTPHost:       os.Getenv("SMTP_HOST"),
		SMTPPort:       getInt("SMTP_PORT", 587),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SQSQueueURL:    os.Getenv("SQS_NOTIFICATIONS_QUEUE_URL"),
		PaymentsQueue:  os.Getenv("SQS_PAYMENT_RESULTS_QUEUE"),
		KafkaBroker:    os.Getenv("KAFKA_BROKER"),
		KafkaTopic:     getEnv("KAFKA_NOTIFICATIONS_TOPIC", "notifications"),
		SNSTopicArn:    os.Getenv("SNS_NOTIFICATIONS_TOPIC_ARN"),
		AWSRoleArn:     os.Getenv("AWS_IAM_ROLE_ARN"),
		S3AssetsBucket: os.Getenv("S3_ASSETS_BUCKET"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AppHost:             getEnv("APP_HOST", "http://localhost:3000"),
		TempDir:             getEnv("TEMP_DIR", os.TempDir()),
		LogDir:              getEnv("LOG_DIR", "logs"),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.ScanSecret == "" {
		return nil, fmt.Errorf("SCAN_PAYLOAD_SECRET is required")
	}
	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DatabaseHost, c.DatabaseUser, c.DatabasePassword, c.DatabaseName, c.DatabasePort, c.DatabaseSSLMode, c.DatabaseTimezone)
}

func (c *Config) IsProd() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
