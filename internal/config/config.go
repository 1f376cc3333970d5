package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	HTTPAddr string

	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderTimeout time.Duration
	PhotoCDNBase    string

	SQLitePath  string
	RedisAddr   string
	KafkaBroker string // empty disables event publishing

	CacheTTL    time.Duration
	RecentLimit int
}

// Load reads the .env file (if present) and returns a populated Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://api.mlslistings.example.com"),
		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		PhotoCDNBase:    getEnv("PHOTO_CDN_BASE", "https://cdn.mlslistings.example.com"),

		SQLitePath:  getEnv("SQLITE_PATH", "./data/searches.db"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBroker: getEnv("KAFKA_BROKER", ""),

		CacheTTL:    getEnvDuration("CACHE_TTL", 15*time.Minute),
		RecentLimit: getEnvInt("RECENT_LIMIT", 10),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
