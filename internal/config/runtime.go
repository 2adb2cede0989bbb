package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Runtime holds process settings loaded from the environment.
type Runtime struct {
	RPCEndpoint       string
	WSEndpoint        string
	PostgresDSN       string
	ClickhouseDSN     string
	RedisAddr         string
	RedisPassword     string
	HTTPAddr          string
	PolicyFile        string
	Workers           int
	QueueSize         int
	EvalTimeout       time.Duration
	PollInterval      time.Duration
	CacheHorizonSlots int64
	ReportCacheTTL    time.Duration
	OTLPEndpoint      string
	RateLimitRPS      float64
	RateLimitBurst    int
	Watchlist         []string
	LogLevel          string
	LogFormat         string
}

// LoadRuntime loads .env (if present) and reads runtime settings.
func LoadRuntime() *Runtime {
	// Missing .env is fine, system env is used.
	_ = godotenv.Load()

	return &Runtime{
		RPCEndpoint:       getEnv("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		WSEndpoint:        getEnv("SOLANA_WS_ENDPOINT", ""),
		PostgresDSN:       getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN:     getEnv("CLICKHOUSE_DSN", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		PolicyFile:        getEnv("POLICY_FILE", ""),
		Workers:           getEnvAsInt("WORKERS", 8),
		QueueSize:         getEnvAsInt("QUEUE_SIZE", 256),
		EvalTimeout:       getEnvAsDuration("EVAL_TIMEOUT", 20*time.Second),
		PollInterval:      getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		CacheHorizonSlots: int64(getEnvAsInt("CACHE_HORIZON_SLOTS", 1500)),
		ReportCacheTTL:    getEnvAsDuration("REPORT_CACHE_TTL", 24*time.Hour),
		OTLPEndpoint:      getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		RateLimitRPS:      getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 10),
		Watchlist:         splitList(getEnv("WATCHLIST", "")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
	}
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
