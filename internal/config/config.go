package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	FeedBackendRedis = "redis"
	FeedBackendNATS  = "nats"
	FeedBackendNone  = "none"

	AlertTransportGateway = "gateway"
	AlertTransportSlack   = "slack"
	AlertTransportLog     = "log"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis Config
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass        string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	IncidentCacheTTL time.Duration `env:"INCIDENT_CACHE_TTL" envDefault:"5m"`

	// Incident feed Config
	FeedBackend string `env:"FEED_BACKEND" envDefault:"redis"`
	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	FeedSubject string `env:"FEED_SUBJECT" envDefault:"incidents.detected"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Alert Config
	AlertTransport     string        `env:"ALERT_TRANSPORT" envDefault:"log"`
	AlertGatewayURL    string        `env:"ALERT_GATEWAY_URL"`
	AlertGatewaySecret string        `env:"ALERT_GATEWAY_SECRET"`
	SlackBotToken      string        `env:"SLACK_BOT_TOKEN"`
	PoliceRecipient    string        `env:"ALERT_POLICE_RECIPIENT"`
	HospitalRecipient  string        `env:"ALERT_HOSPITAL_RECIPIENT"`
	AlertSendTimeout   time.Duration `env:"ALERT_SEND_TIMEOUT" envDefault:"10s"`

	// Snapshot storage Config
	MinioEndpoint     string `env:"MINIO_ENDPOINT"`
	MinioAccessKey    string `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey    string `env:"MINIO_SECRET_KEY"`
	MinioBucket       string `env:"MINIO_BUCKET" envDefault:"snapshots"`
	MinioUseSSL       bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	SnapshotPublicURL string `env:"SNAPSHOT_PUBLIC_URL"`

	// API Keys for authentication
	APIKeys          []string `env:"API_KEYS"`
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		StorageDriver:      getEnv("STORAGE_DRIVER", StorageDriverPostgres),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "file://migrations"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		IncidentCacheTTL:   getEnvAsDuration("INCIDENT_CACHE_TTL", 5*time.Minute),
		FeedBackend:        getEnv("FEED_BACKEND", FeedBackendRedis),
		NATSURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		FeedSubject:        getEnv("FEED_SUBJECT", "incidents.detected"),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:     getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:  getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:   getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		AlertTransport:     getEnv("ALERT_TRANSPORT", AlertTransportLog),
		AlertGatewayURL:    os.Getenv("ALERT_GATEWAY_URL"),
		AlertGatewaySecret: os.Getenv("ALERT_GATEWAY_SECRET"),
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		PoliceRecipient:    os.Getenv("ALERT_POLICE_RECIPIENT"),
		HospitalRecipient:  os.Getenv("ALERT_HOSPITAL_RECIPIENT"),
		AlertSendTimeout:   getEnvAsDuration("ALERT_SEND_TIMEOUT", 10*time.Second),
		MinioEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:        getEnv("MINIO_BUCKET", "snapshots"),
		MinioUseSSL:        getEnvAsBool("MINIO_USE_SSL", false),
		SnapshotPublicURL:  os.Getenv("SNAPSHOT_PUBLIC_URL"),
		APIKeys:            getEnvAsList("API_KEYS", nil),
		CORSAllowOrigins:   getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"}),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.FeedBackend {
	case FeedBackendRedis, FeedBackendNATS, FeedBackendNone:
	default:
		return fmt.Errorf("unknown FEED_BACKEND %q", c.FeedBackend)
	}

	switch c.AlertTransport {
	case AlertTransportGateway:
		if c.AlertGatewayURL == "" {
			return fmt.Errorf("ALERT_GATEWAY_URL is required for the gateway transport")
		}
	case AlertTransportSlack:
		if c.SlackBotToken == "" {
			return fmt.Errorf("SLACK_BOT_TOKEN is required for the slack transport")
		}
	case AlertTransportLog:
	default:
		return fmt.Errorf("unknown ALERT_TRANSPORT %q", c.AlertTransport)
	}

	if c.AlertSendTimeout <= 0 {
		return fmt.Errorf("ALERT_SEND_TIMEOUT must be positive")
	}
	return nil
}

// CacheEnabled сообщает, настроен ли Redis
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// SnapshotsEnabled сообщает, настроено ли хранилище снимков
func (c *Config) SnapshotsEnabled() bool {
	return c.MinioEndpoint != ""
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool возвращает значение переменной окружения как bool или значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список значений через запятую
func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
