package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// SIMM engine
	Simm SimmConfig

	// FX quotes
	FX FXConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// SimmConfig holds the margin engine defaults
// CLI 플래그가 없을 때 사용되는 기본값
type SimmConfig struct {
	ParamsFile          string  // SIMM parameter YAML
	CrifFile            string  // CRIF CSV input
	CalculationCurrency string  // sensitivities are expressed against this currency
	ResultCurrency      string  // margins are reported in this currency
	EnforceRegulations  bool    // split records by collect/post regulation tags
	Workers             int     // 0 = GOMAXPROCS
	OutputDir           string  // report output directory
	OutputThreshold     float64 // suppress report rows below this absolute IM
}

// FXConfig holds FX quote source configuration
type FXConfig struct {
	BaseURL   string        // JSON quote API
	BoardURL  string        // HTML quote board (fallback scraper)
	StreamURL string        // websocket live feed, empty = disabled
	CacheTTL  time.Duration // Redis quote cache TTL
}

// SchedulerConfig holds the batch scheduler configuration
type SchedulerConfig struct {
	CronSpec string // robfig/cron spec for the daily margin run
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "atlas"),
			User:            getEnv("DB_USER", "atlas"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// SIMM engine
		Simm: SimmConfig{
			ParamsFile:          getEnv("SIMM_PARAMS_FILE", "configs/simm_v2_6.yaml"),
			CrifFile:            getEnv("SIMM_CRIF_FILE", ""),
			CalculationCurrency: getEnv("SIMM_CALC_CCY", "USD"),
			ResultCurrency:      getEnv("SIMM_RESULT_CCY", "USD"),
			EnforceRegulations:  getEnvAsBool("SIMM_ENFORCE_REGS", true),
			Workers:             getEnvAsInt("SIMM_WORKERS", 0),
			OutputDir:           getEnv("SIMM_OUTPUT_DIR", "reports"),
			OutputThreshold:     getEnvAsFloat("SIMM_OUTPUT_THRESHOLD", 0.005),
		},

		// FX quotes
		FX: FXConfig{
			BaseURL:   getEnv("FX_BASE_URL", "https://open.er-api.com/v6"),
			BoardURL:  getEnv("FX_BOARD_URL", ""),
			StreamURL: getEnv("FX_STREAM_URL", ""),
			CacheTTL:  getEnvAsDuration("FX_CACHE_TTL", "15m"),
		},

		// Scheduler
		Scheduler: SchedulerConfig{
			CronSpec: getEnv("SCHEDULER_CRON", "30 18 * * MON-FRI"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	// Currency codes are three-letter ISO codes
	if len(c.Simm.CalculationCurrency) != 3 {
		return fmt.Errorf("SIMM_CALC_CCY must be a 3-letter currency code, got %q", c.Simm.CalculationCurrency)
	}
	if len(c.Simm.ResultCurrency) != 3 {
		return fmt.Errorf("SIMM_RESULT_CCY must be a 3-letter currency code, got %q", c.Simm.ResultCurrency)
	}

	if c.Simm.Workers < 0 {
		return fmt.Errorf("SIMM_WORKERS must be >= 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
