package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	// HTTPAddr is the listen address of the web front-end.
	HTTPAddr string
	// APIBaseURL is the hotel REST API every view talks to.
	APIBaseURL string
	// RequestTimeout bounds each outbound API request.
	RequestTimeout time.Duration

	RedisAddr    string
	MongoURI     string
	MongoDB      string
	RabbitURL    string
	OTLPEndpoint string
	LogLevel     string

	SessionTTL      time.Duration
	IdempotencyTTL  time.Duration
	HistoryPageSize int
	RateLimitPerMin int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		APIBaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8088"), "/"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getEnv("MONGO_DB", "hotel"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = durationEnv("IDEMPOTENCY_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.HistoryPageSize, err = intEnv("HISTORY_PAGE_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMin, err = intEnv("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return nil, errors.Newf("API_BASE_URL must be an http(s) URL, got %q", cfg.APIBaseURL)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", key)
	}
	if d <= 0 {
		return 0, errors.Newf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", key)
	}
	if n < 1 {
		return 0, errors.Newf("%s must be at least 1, got %d", key, n)
	}
	return n, nil
}
