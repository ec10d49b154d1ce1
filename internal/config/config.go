package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	FallbackZero     = "zero"
	FallbackOriginal = "original"
)

type Config struct {
	Pricing  PricingConfig
	Files    FilesConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type PricingConfig struct {
	Multiplier float64
	// Fallback is the value policy for unparseable prices: FallbackZero or FallbackOriginal.
	Fallback string
}

type FilesConfig struct {
	Backup      bool
	Report      bool
	SQLitePath  string
	DataDir     string
	CompareWith []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
	Enabled  bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	KeySet   string
	Stream   string
	Enabled  bool
}

type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads a .env file when present and resolves the configuration from
// the environment. It is called once at process start.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Pricing: PricingConfig{
			Multiplier: getFloatOrDefault("PRICE_MULTIPLIER", 1.0),
			Fallback:   strings.ToLower(getEnvOrDefault("PRICE_FALLBACK", FallbackZero)),
		},
		Files: FilesConfig{
			Backup:      getBoolOrDefault("FILES_BACKUP", true),
			Report:      getBoolOrDefault("FILES_REPORT", true),
			SQLitePath:  getEnvOrDefault("SQLITE_PATH", ""),
			DataDir:     getEnvOrDefault("DATA_DIR", "data_csv"),
			CompareWith: getStringSliceOrDefault("DEDUP_COLUMNS", []string{"B"}),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "listings"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 4)),
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			KeySet:   getEnvOrDefault("REDIS_KEY_SET", "listing:seen_keys"),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:listing_cleanup"),
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8085),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:    int64(getIntOrDefault("SERVER_MAX_BODY_BYTES", 32<<20)),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Pricing.Multiplier <= 0 || math.IsInf(c.Pricing.Multiplier, 0) || math.IsNaN(c.Pricing.Multiplier) {
		return fmt.Errorf("PRICE_MULTIPLIER must be a finite number greater than 0, got %v", c.Pricing.Multiplier)
	}

	if c.Pricing.Fallback != FallbackZero && c.Pricing.Fallback != FallbackOriginal {
		return fmt.Errorf("PRICE_FALLBACK must be %q or %q, got %q", FallbackZero, FallbackOriginal, c.Pricing.Fallback)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Enabled && c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
