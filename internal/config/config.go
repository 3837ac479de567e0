package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Backend
	BaseURL string
	APIPath string

	// Client
	TriggerTimeout    time.Duration
	StreamIdleTimeout time.Duration

	// Status mirror
	MQTTBroker      string
	MQTTTopicPrefix string

	// Sandbox server
	HTTPPort         string
	DatabaseURL      string
	RedisURL         string
	SandboxStepDelay time.Duration

	// Logging
	LogLevel  slog.Level
	LogFormat string // "json" or "text"

	// Tracing
	OTLPEndpoint     string
	ServiceName      string
	TraceSampleRatio float64

	// Features
	EnableMetrics bool
	EnableTracing bool
}

func Load() (*Config, error) {
	cfg := &Config{
		BaseURL:           getEnv("INGEST_BASE_URL", "http://127.0.0.1:8058"),
		APIPath:           getEnv("INGEST_API_PATH", "/api/v1"),
		TriggerTimeout:    getEnvDuration("INGEST_TRIGGER_TIMEOUT", 30*time.Second),
		StreamIdleTimeout: getEnvDuration("INGEST_STREAM_IDLE_TIMEOUT", 2*time.Minute),
		MQTTBroker:        getEnv("MQTT_BROKER", ""),
		MQTTTopicPrefix:   getEnv("MQTT_TOPIC_PREFIX", "docpipe"),
		HTTPPort:          getEnv("HTTP_PORT", "8058"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		SandboxStepDelay:  getEnvDuration("SANDBOX_STEP_DELAY", 250*time.Millisecond),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", ""),
		ServiceName:       getEnv("SERVICE_NAME", "docpipe-ingest"),
		TraceSampleRatio:  getEnvFloat("TRACE_SAMPLE_RATIO", 1),
		EnableMetrics:     getEnvBool("ENABLE_METRICS", true),
		EnableTracing:     getEnvBool("ENABLE_TRACING", false),
	}

	cfg.LogLevel = ParseLogLevel(getEnv("LOG_LEVEL", "info"))

	return cfg, nil
}

// ParseLogLevel maps a level name to its slog level, defaulting to info.
func ParseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
