package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env              string
	Port             string
	RedisURL         string
	CatalogBaseURL   string
	InventoryBaseURL string
	BillingBaseURL   string
	KafkaBrokers     []string
	KafkaTopic       string
	CartTTL          time.Duration
	RequestTimeout   time.Duration
	ReserveRetries   int
	SearchDebounce   time.Duration
}

func Load() Config {
	// Best-effort: in most deployments config comes from the environment.
	_ = godotenv.Load()

	return Config{
		Env:              getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8094"),
		RedisURL:         getEnv("REDIS_URL", "redis://redis:6379"),
		CatalogBaseURL:   getEnv("CATALOG_BASE_URL", "http://erp-gateway:8080"),
		InventoryBaseURL: getEnv("INVENTORY_BASE_URL", "http://erp-gateway:8080"),
		BillingBaseURL:   getEnv("BILLING_BASE_URL", "http://erp-gateway:8080"),
		KafkaBrokers:     splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "pos.order.fulfilled"),
		CartTTL:          getDuration("CART_TTL", time.Hour*24*7),
		RequestTimeout:   getDuration("REQUEST_TIMEOUT", 8*time.Second),
		ReserveRetries:   getInt("RESERVE_RETRIES", 2),
		SearchDebounce:   getDuration("SEARCH_DEBOUNCE", 220*time.Millisecond),
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
