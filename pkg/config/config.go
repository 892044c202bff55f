package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	// EncryptionSecret is the master secret the credential vault derives
	// its AES key from. Its absence is reported on first vault use.
	EncryptionSecret string

	JWTSecret        string
	WebhookToken     string
	SyncTriggerToken string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleProjectID    string
	GooglePubSubTopic  string
	GoogleCredentials  string

	FirebaseCredentials string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	AppBaseURL string

	SyncMaxMessages int
	SyncTimeout     time.Duration

	// SyncInterval enables the periodic batched sync when positive.
	SyncInterval time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	maxMessages := 50
	if v := os.Getenv("SYNC_MAX_MESSAGES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			maxMessages = parsed
		}
	}

	syncTimeout := 2 * time.Minute
	if v := os.Getenv("SYNC_TIMEOUT"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			syncTimeout = parsed
		}
	}

	var syncInterval time.Duration
	if v := os.Getenv("SYNC_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			syncInterval = parsed
		}
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      getEnv("DATABASE_URL", "host=localhost user=postgres dbname=mailtask port=5432 sslmode=disable"),
		EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		WebhookToken:     getEnv("WEBHOOK_TOKEN", ""),
		SyncTriggerToken: getEnv("SYNC_TRIGGER_TOKEN", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:  getEnv("GOOGLE_PUBSUB_TOPIC", "mailbox-updates"),
		GoogleCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),

		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@localhost"),

		AppBaseURL: getEnv("APP_BASE_URL", "http://localhost:3000"),

		SyncMaxMessages: maxMessages,
		SyncTimeout:     syncTimeout,
		SyncInterval:    syncInterval,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
