package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// SSOT: environment variables are read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Statement import
	Import ImportConfig

	// Derived view caching
	Cache CacheConfig

	// Parquet export
	Export ExportConfig

	// Data quality gate
	Quality QualityConfig

	// Logging
	LogLevel  string
	LogFormat string
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
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ImportConfig controls the CSV statement importer
type ImportConfig struct {
	BaseDir   string // default files are resolved relative to this directory
	ChunkSize int    // rows per persistence chunk
	MaxRows   int    // row cap per file
	Manifest  string // optional YAML file overriding the default file-per-type map
	Schedule  string // cron expression (with seconds) for the scheduled import
}

// CacheConfig holds TTLs for cached query results
type CacheConfig struct {
	HistoryTTL   time.Duration
	FinancialTTL time.Duration
}

// ExportConfig controls the indicator export
type ExportConfig struct {
	Dir      string
	Workers  int
	Schedule string // empty disables the scheduled export
}

// QualityConfig controls the coverage snapshot
type QualityConfig struct {
	MinScore float64
	Schedule string
}

// Load reads configuration from environment variables
// SSOT: the only caller of os.Getenv
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Import: ImportConfig{
			BaseDir:   getEnv("IMPORT_BASE_DIR", "."),
			ChunkSize: getEnvAsInt("IMPORT_CHUNK_SIZE", 1000),
			MaxRows:   getEnvAsInt("IMPORT_MAX_ROWS", 200),
			Manifest:  getEnv("IMPORT_MANIFEST", ""),
			Schedule:  getEnv("IMPORT_SCHEDULE", "0 0 18 * * *"),
		},

		Cache: CacheConfig{
			HistoryTTL:   getEnvAsDuration("CACHE_HISTORY_TTL", "1h"),
			FinancialTTL: getEnvAsDuration("CACHE_FINANCIAL_TTL", "24h"),
		},

		Export: ExportConfig{
			Dir:      getEnv("EXPORT_DIR", "export"),
			Workers:  getEnvAsInt("EXPORT_WORKERS", runtime.NumCPU()),
			Schedule: getEnv("EXPORT_SCHEDULE", ""),
		},

		Quality: QualityConfig{
			MinScore: getEnvAsFloat("QUALITY_MIN_SCORE", 0.6),
			Schedule: getEnv("QUALITY_SCHEDULE", "0 30 18 * * *"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Import.ChunkSize <= 0 {
		return fmt.Errorf("IMPORT_CHUNK_SIZE must be positive, got %d", c.Import.ChunkSize)
	}

	if c.Quality.MinScore < 0 || c.Quality.MinScore > 1 {
		return fmt.Errorf("QUALITY_MIN_SCORE must be within [0, 1], got %v", c.Quality.MinScore)
	}

	if c.Export.Workers <= 0 {
		c.Export.Workers = 1
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
