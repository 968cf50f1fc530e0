package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server and tools read from the environment.
// Loaded explicitly at startup; nothing in the repo reads env vars at call
// time, so rotating a key means calling Load again and rebuilding the
// clients that hold it.
type Config struct {
	Port string

	// Completion proxy for fit analysis.
	AIBaseURL string
	AIAPIKey  string
	AIModel   string
	AITimeout time.Duration

	// Minimum spacing between completion calls in a batch.
	BatchDelay time.Duration

	// Read-time validity window for cached tender lists.
	CacheWindow time.Duration

	CORSOrigins []string
}

func Load() Config {
	return Config{
		Port:        getenv("PORT", "8081"),
		AIBaseURL:   getenv("AI_PROXY_URL", "http://localhost:8787"),
		AIAPIKey:    os.Getenv("AI_PROXY_KEY"),
		AIModel:     getenv("AI_MODEL", "claude-sonnet-4-20250514"),
		AITimeout:   getenvDuration("AI_TIMEOUT_SECONDS", 30*time.Second),
		BatchDelay:  getenvDuration("BATCH_DELAY_MS", 750*time.Millisecond),
		CacheWindow: getenvDuration("CACHE_WINDOW_SECONDS", 10*time.Minute),
		CORSOrigins: splitOrigins(os.Getenv("CORS_ORIGINS")),
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getenvDuration reads an integer env var whose unit is encoded in the key
// suffix (_SECONDS or _MS).
func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if strings.HasSuffix(key, "_MS") {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}

func splitOrigins(raw string) []string {
	origins := []string{"http://localhost:4200"}
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
