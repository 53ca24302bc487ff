package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `json:"server"`
	MongoDB     MongoDBConfig     `json:"mongodb"`
	RPC         RPCConfig         `json:"rpc"`
	Session     SessionConfig     `json:"session"`
	Transaction TransactionConfig `json:"transaction"`
	Cache       CacheConfig       `json:"cache"`
	RateLimit   RateLimitConfig   `json:"rate_limit"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	// FrontendURL is the base URL used to build user-facing connect
	// and approval links.
	FrontendURL string `json:"frontend_url"`
}

// MongoDBConfig holds MongoDB connection configuration
type MongoDBConfig struct {
	URI                   string        `json:"uri"`
	Database              string        `json:"database"`
	SessionCollection     string        `json:"session_collection"`
	TransactionCollection string        `json:"transaction_collection"`
	ConnectTimeout        time.Duration `json:"connect_timeout"`
	MaxPoolSize           uint64        `json:"max_pool_size"`
}

// RPCConfig holds Solana RPC configuration
type RPCConfig struct {
	Endpoint   string        `json:"endpoint"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// SessionConfig holds session and connection-token configuration
type SessionConfig struct {
	TokenTTL time.Duration `json:"token_ttl"`
}

// TransactionConfig holds pending-transaction configuration
type TransactionConfig struct {
	ExpiryTTL          time.Duration `json:"expiry_ttl"`
	EstimatedFee       uint64        `json:"estimated_fee"`
	ReconcileInterval  time.Duration `json:"reconcile_interval"`
	ConfirmWaitTimeout time.Duration `json:"confirm_wait_timeout"`
}

// CacheConfig holds balance response cache configuration
type CacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// RateLimitConfig holds rate limiting configuration. HTTP holds the
// per-IP limit applied by the gin middleware; the per-actor operation
// limits are applied inside the tool layer.
type RateLimitConfig struct {
	HTTPRequestsPerMinute int           `json:"http_requests_per_minute"`
	GlobalLimit           int           `json:"global_limit"`
	GlobalWindow          time.Duration `json:"global_window"`
	TransferLimit         int           `json:"transfer_limit"`
	TransferWindow        time.Duration `json:"transfer_window"`
	BalanceLimit          int           `json:"balance_limit"`
	BalanceWindow         time.Duration `json:"balance_window"`
	HistoryLimit          int           `json:"history_limit"`
	HistoryWindow         time.Duration `json:"history_window"`
	CleanupInterval       time.Duration `json:"cleanup_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `json:"level"`
	Environment string   `json:"environment"`
	OutputPaths []string `json:"output_paths"`
}

// LoadConfig loads configuration from environment variables with defaults.
// A .env file in the working directory is loaded first if present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		MongoDB: MongoDBConfig{
			URI:                   getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:              getEnv("MONGODB_DATABASE", "agent_wallet"),
			SessionCollection:     getEnv("MONGODB_SESSION_COLLECTION", "sessions"),
			TransactionCollection: getEnv("MONGODB_TRANSACTION_COLLECTION", "pending_transactions"),
			ConnectTimeout:        getDurationEnv("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:           getUint64Env("MONGODB_MAX_POOL_SIZE", 100),
		},
		RPC: RPCConfig{
			Endpoint:   getEnv("SOLANA_RPC_ENDPOINT", "https://api.devnet.solana.com"),
			Timeout:    getDurationEnv("SOLANA_RPC_TIMEOUT", 30*time.Second),
			MaxRetries: getIntEnv("SOLANA_RPC_MAX_RETRIES", 3),
			RetryDelay: getDurationEnv("SOLANA_RPC_RETRY_DELAY", 500*time.Millisecond),
		},
		Session: SessionConfig{
			TokenTTL: getDurationEnv("SESSION_TOKEN_TTL", 10*time.Minute),
		},
		Transaction: TransactionConfig{
			ExpiryTTL:          getDurationEnv("TRANSACTION_EXPIRY_TTL", 15*time.Minute),
			EstimatedFee:       getUint64Env("TRANSACTION_ESTIMATED_FEE", 5000),
			ReconcileInterval:  getDurationEnv("TRANSACTION_RECONCILE_INTERVAL", 30*time.Second),
			ConfirmWaitTimeout: getDurationEnv("TRANSACTION_CONFIRM_WAIT_TIMEOUT", 60*time.Second),
		},
		Cache: CacheConfig{
			TTL: getDurationEnv("CACHE_TTL", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			HTTPRequestsPerMinute: getIntEnv("RATE_LIMIT_HTTP_REQUESTS_PER_MINUTE", 60),
			GlobalLimit:           getIntEnv("RATE_LIMIT_GLOBAL", 50),
			GlobalWindow:          getDurationEnv("RATE_LIMIT_GLOBAL_WINDOW", time.Hour),
			TransferLimit:         getIntEnv("RATE_LIMIT_TRANSFER", 10),
			TransferWindow:        getDurationEnv("RATE_LIMIT_TRANSFER_WINDOW", time.Hour),
			BalanceLimit:          getIntEnv("RATE_LIMIT_BALANCE", 5),
			BalanceWindow:         getDurationEnv("RATE_LIMIT_BALANCE_WINDOW", time.Minute),
			HistoryLimit:          getIntEnv("RATE_LIMIT_HISTORY", 5),
			HistoryWindow:         getDurationEnv("RATE_LIMIT_HISTORY_WINDOW", time.Minute),
			CleanupInterval:       getDurationEnv("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("LOG_ENVIRONMENT", "development"),
			OutputPaths: getStringSliceEnv("LOG_OUTPUT_PATHS", []string{"stdout"}),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getUint64Env(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uint64Value, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uint64Value
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}
