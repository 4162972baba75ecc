package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"cryptoPulse/internal/adapters/logger" // Import the logger package for LogLevel
	"cryptoPulse/internal/domain"
)

const (
	streamBaseURLProduction = "wss://fstream.binance.com/stream?streams="
	streamBaseURLTestnet    = "wss://stream.binancefuture.com/stream?streams="
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market data
	Timeframes    []string // Timeframes the service is willing to stream
	Symbols       []string // Explicit symbol list; empty means discover
	MaxSymbols    int      // Cap on discovered symbols
	BatchSize     int      // Symbols per websocket connection
	WindowSize    int      // Closes retained per symbol
	StreamBaseURL string   // Combined-stream endpoint

	// Indicator periods
	EMAPeriods []int // e.g. 12, 26, 50, 100, 200
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	RSIPeriod  int

	// Connection settings
	BackoffMin time.Duration
	BackoffMax time.Duration
	KeepAlive  time.Duration

	// Delivery
	SubscriberBuffer int
	ForwardPartials  bool

	// HTTP
	HTTPAddr string

	// Archive; empty path disables archiving
	ArchiveDBPath string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Binance API (optional: only public endpoints are used)
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Market data
	cfg.Timeframes = getEnvAsList("TIMEFRAMES", []string{"15m", "1h", "4h", "1d"})
	for _, tf := range cfg.Timeframes {
		if !domain.IsKnownTimeframe(tf) {
			errs = append(errs, fmt.Sprintf("unsupported timeframe %q in TIMEFRAMES", tf))
		}
	}

	cfg.Symbols = getEnvAsList("SYMBOLS", nil)

	cfg.MaxSymbols = getEnvAsInt("MAX_SYMBOLS", 200)
	if cfg.MaxSymbols <= 0 {
		errs = append(errs, "MAX_SYMBOLS must be positive")
	}

	cfg.BatchSize = getEnvAsInt("BATCH_SIZE", 60)
	if cfg.BatchSize <= 0 {
		errs = append(errs, "BATCH_SIZE must be positive")
	}

	cfg.WindowSize = getEnvAsInt("WINDOW_SIZE", 500)
	if cfg.WindowSize <= 0 {
		errs = append(errs, "WINDOW_SIZE must be positive")
	}

	if cfg.IsTestnet {
		cfg.StreamBaseURL = getEnv("STREAM_BASE_URL", streamBaseURLTestnet)
	} else {
		cfg.StreamBaseURL = getEnv("STREAM_BASE_URL", streamBaseURLProduction)
	}

	// Indicator periods
	cfg.EMAPeriods = getEnvAsIntList("EMA_PERIODS", []int{12, 26, 50, 100, 200})
	if len(cfg.EMAPeriods) != 5 {
		errs = append(errs, "EMA_PERIODS must list exactly five periods")
	}
	for _, p := range cfg.EMAPeriods {
		if p <= 0 {
			errs = append(errs, "EMA_PERIODS entries must be positive")
			break
		}
	}
	cfg.MACDFast = getEnvAsInt("MACD_FAST", 12)
	cfg.MACDSlow = getEnvAsInt("MACD_SLOW", 26)
	cfg.MACDSignal = getEnvAsInt("MACD_SIGNAL", 9)
	cfg.RSIPeriod = getEnvAsInt("RSI_PERIOD", 14)
	if cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 || cfg.RSIPeriod <= 0 {
		errs = append(errs, "MACD and RSI periods must be positive")
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		errs = append(errs, "MACD_FAST must be less than MACD_SLOW")
	}

	// Connection settings
	backoffMinSeconds := getEnvAsInt("BACKOFF_MIN_SECONDS", 1)
	if backoffMinSeconds <= 0 {
		errs = append(errs, "BACKOFF_MIN_SECONDS must be positive")
	}
	cfg.BackoffMin = time.Duration(backoffMinSeconds) * time.Second

	backoffMaxSeconds := getEnvAsInt("BACKOFF_MAX_SECONDS", 60)
	if backoffMaxSeconds < backoffMinSeconds {
		errs = append(errs, "BACKOFF_MAX_SECONDS must be at least BACKOFF_MIN_SECONDS")
	}
	cfg.BackoffMax = time.Duration(backoffMaxSeconds) * time.Second

	keepAliveSeconds := getEnvAsInt("KEEPALIVE_SECONDS", 120)
	if keepAliveSeconds <= 0 {
		errs = append(errs, "KEEPALIVE_SECONDS must be positive")
	}
	cfg.KeepAlive = time.Duration(keepAliveSeconds) * time.Second

	// Delivery
	cfg.SubscriberBuffer = getEnvAsInt("SUB_BUFFER", 256)
	if cfg.SubscriberBuffer <= 0 {
		errs = append(errs, "SUB_BUFFER must be positive")
	}
	cfg.ForwardPartials = getEnvAsBool("FORWARD_PARTIALS", false)

	// HTTP
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Archive
	cfg.ArchiveDBPath = getEnv("ARCHIVE_DB_PATH", "")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// For non-required fields, default is acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsIntList(key string, defaultValue []int) []int {
	parts := getEnvAsList(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
