package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SQSQueueURL string
	SNSTopicARN string // optional bundle-update fan-out topic

	DefaultTenant string

	BundlingInterval  time.Duration
	HeartbeatInterval time.Duration
	StreamBufferSize  int

	JWTPublicKeyPath  string
	JWTPrivateKeyPath string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Tenants             string
	UnseenNotifications string
	NotificationBundles string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Tenants:             getEnv("DYNAMO_TABLE_TENANTS", "tenants"),
			UnseenNotifications: getEnv("DYNAMO_TABLE_UNSEEN_NOTIFICATIONS", "unseen_notifications"),
			NotificationBundles: getEnv("DYNAMO_TABLE_NOTIFICATION_BUNDLES", "notification_bundles"),
		},

		SQSQueueURL: getEnv("SQS_NOTIFICATION_QUEUE_URL", ""),
		SNSTopicARN: getEnv("SNS_BUNDLE_TOPIC_ARN", ""),

		DefaultTenant: getEnv("DEFAULT_TENANT", "public"),

		BundlingInterval:  getEnvDuration("BUNDLING_INTERVAL", 5*time.Second),
		HeartbeatInterval: getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		StreamBufferSize:  getEnvInt("STREAM_BUFFER_SIZE", 16),

		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
