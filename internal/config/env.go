package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	AwsAccessKey   string
	AwsSecretKey   string
	AwsRegion      string
	BucketName     string
	AIAPIKey       string
	EmbedModel     string
	EmbedDim       int
	GenModel       string
	Port           string
	MaxUploadBytes int64
	MaxChunkTokens int
	EmbedWorkers   int
	EmbedRetries   int

	// Sync agent settings.
	SyncStatePath     string
	SyncQueueLimit    int
	ConversationsSync time.Duration
	DocumentsSync     time.Duration
	SettingsSync      time.Duration
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AwsAccessKey:   getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:   getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:      getEnv("AWS_REGION", "us-east-2"),
		BucketName:     getEnv("BUCKET_NAME", "advisor-docs"),
		AIAPIKey:       getEnv("GEMINI_API_KEY", ""),
		EmbedModel:     getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:       getEnvInt("EMBED_DIM", 768),
		GenModel:       getEnv("GEN_MODEL", "gemini-1.5-flash"),
		Port:           getEnv("PORT", "8080"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		MaxChunkTokens: getEnvInt("MAX_CHUNK_TOKENS", 500),
		EmbedWorkers:   getEnvInt("EMBED_WORKERS", 4),
		EmbedRetries:   getEnvInt("EMBED_RETRIES", 2),

		SyncStatePath:     getEnv("SYNC_STATE_PATH", "advisor-state.json"),
		SyncQueueLimit:    getEnvInt("SYNC_QUEUE_LIMIT", 100),
		ConversationsSync: getEnvDuration("CONVERSATIONS_SYNC_INTERVAL", 30*time.Second),
		DocumentsSync:     getEnvDuration("DOCUMENTS_SYNC_INTERVAL", time.Minute),
		SettingsSync:      getEnvDuration("SETTINGS_SYNC_INTERVAL", 2*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
