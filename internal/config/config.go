package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort       int
	AllowedOrigins []string

	DBConfig struct {
		Host     string
		Port     int
		User     string
		Password string
		Name     string
		SSLMode  string
	}

	// Merchant API credentials. Sourced from the environment, never from
	// code; requests must present both in X-Api-Key / X-Api-Secret.
	APIKey    string
	APISecret string

	KafkaBrokerURL         string
	KafkaPaymentEventTopic string
	KafkaConsumerGroup     string

	MigrationsPath string

	OutboxPollInterval time.Duration
	OutboxPollTimeout  time.Duration

	SettlementInterval time.Duration
	SettlementDelay    time.Duration

	WebhookTimeout      time.Duration
	WebhookMaxAttempts  int
	WebhookRetryBackoff time.Duration
	WebhookRetryPoll    time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("GATEWAY_HTTP_PORT", 8000)
	cfg.AllowedOrigins = strings.Split(getEnvOrDefault("GATEWAY_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001,http://localhost:3002"), ",")

	cfg.DBConfig.Host = getEnvOrDefault("GATEWAY_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("GATEWAY_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("GATEWAY_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("GATEWAY_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("GATEWAY_DB_NAME", "paygate_db")
	cfg.DBConfig.SSLMode = getEnvOrDefault("GATEWAY_DB_SSLMODE", "disable")

	cfg.APIKey = os.Getenv("GATEWAY_API_KEY")
	cfg.APISecret = os.Getenv("GATEWAY_API_SECRET")
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("GATEWAY_API_KEY and GATEWAY_API_SECRET must be set")
	}

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "localhost:9092")
	cfg.KafkaPaymentEventTopic = getEnvOrDefault("KAFKA_PAYMENT_EVENTS_TOPIC", "payment_events")
	cfg.KafkaConsumerGroup = getEnvOrDefault("KAFKA_CONSUMER_GROUP", "paygate-webhook-dispatcher")

	cfg.MigrationsPath = getEnvOrDefault("GATEWAY_MIGRATIONS_PATH", "file://migrations")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)

	cfg.SettlementInterval = getEnvAsDuration("SETTLEMENT_INTERVAL", 1*time.Second)
	cfg.SettlementDelay = getEnvAsDuration("SETTLEMENT_DELAY", 5*time.Second)

	cfg.WebhookTimeout = getEnvAsDuration("WEBHOOK_TIMEOUT", 10*time.Second)
	cfg.WebhookMaxAttempts = getEnvAsInt("WEBHOOK_MAX_ATTEMPTS", 5)
	cfg.WebhookRetryBackoff = getEnvAsDuration("WEBHOOK_RETRY_BACKOFF", 30*time.Second)
	cfg.WebhookRetryPoll = getEnvAsDuration("WEBHOOK_RETRY_POLL", 5*time.Second)

	return cfg, nil
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetKafkaBrokers() []string {
	return strings.Split(c.KafkaBrokerURL, ",")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
