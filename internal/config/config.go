package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Relay    RelayConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ScrapeTimeout   time.Duration
	AllowedOrigins  []string
}

type BrowserConfig struct {
	Headless           bool
	UserAgent          string
	ViewportWidth      int
	ViewportHeight     int
	TimezoneID         string
	Locale             string
	Proxy              string
	NavigationAttempts int
}

type ScraperConfig struct {
	ProfileFile       string
	MaxConcurrent     int
	LaunchesPerMinute int
	AcquireTimeout    time.Duration
	CacheTTL          time.Duration
	CacheSize         int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	StreamMaxLen int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 180*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			ScrapeTimeout:   getDurationOrDefault("SCRAPE_REQUEST_TIMEOUT", 150*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Browser: BrowserConfig{
			Headless:           getBoolOrDefault("BROWSER_HEADLESS", true),
			UserAgent:          getEnvOrDefault("BROWSER_USER_AGENT", ""),
			ViewportWidth:      getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1366),
			ViewportHeight:     getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 900),
			TimezoneID:         getEnvOrDefault("BROWSER_TIMEZONE", "UTC"),
			Locale:             getEnvOrDefault("BROWSER_LOCALE", "en-US"),
			Proxy:              getEnvOrDefault("BROWSER_PROXY", ""),
			NavigationAttempts: getIntOrDefault("BROWSER_NAVIGATION_ATTEMPTS", 1),
		},
		Scraper: ScraperConfig{
			ProfileFile:       getEnvOrDefault("SCRAPE_PROFILE_FILE", ""),
			MaxConcurrent:     getIntOrDefault("SCRAPE_MAX_CONCURRENT", 2),
			LaunchesPerMinute: getIntOrDefault("SCRAPE_LAUNCHES_PER_MINUTE", 12),
			AcquireTimeout:    getDurationOrDefault("SCRAPE_ACQUIRE_TIMEOUT", 30*time.Second),
			CacheTTL:          getDurationOrDefault("SCRAPE_CACHE_TTL", 60*time.Second),
			CacheSize:         getIntOrDefault("SCRAPE_CACHE_SIZE", 128),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "wasel"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: getIntOrDefault("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:cart_extractions"),
		},
		Relay: RelayConfig{
			PollInterval: getDurationOrDefault("RELAY_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getIntOrDefault("RELAY_BATCH_SIZE", 50),
			StreamMaxLen: getIntOrDefault("RELAY_STREAM_MAXLEN", 10000),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.MaxConcurrent < 1 {
		return fmt.Errorf("SCRAPE_MAX_CONCURRENT must be at least 1")
	}

	if c.Scraper.LaunchesPerMinute < 1 {
		return fmt.Errorf("SCRAPE_LAUNCHES_PER_MINUTE must be at least 1")
	}

	if c.Scraper.CacheTTL < 0 {
		return fmt.Errorf("SCRAPE_CACHE_TTL cannot be negative")
	}

	if c.Scraper.CacheTTL > 0 && c.Scraper.CacheSize < 1 {
		return fmt.Errorf("SCRAPE_CACHE_SIZE must be at least 1 when caching is enabled")
	}

	if c.Browser.ViewportWidth < 1 || c.Browser.ViewportHeight < 1 {
		return fmt.Errorf("BROWSER_VIEWPORT_WIDTH and BROWSER_VIEWPORT_HEIGHT must be positive")
	}

	if c.Browser.NavigationAttempts < 1 {
		return fmt.Errorf("BROWSER_NAVIGATION_ATTEMPTS must be at least 1")
	}

	if c.Server.ScrapeTimeout <= 0 {
		return fmt.Errorf("SCRAPE_REQUEST_TIMEOUT must be positive")
	}

	if c.Redis.Enabled && !c.Database.Enabled {
		return fmt.Errorf("REDIS_ENABLED requires DB_ENABLED: events are relayed from the outbox table")
	}

	if c.Relay.BatchSize < 1 {
		return fmt.Errorf("RELAY_BATCH_SIZE must be at least 1")
	}

	if c.Relay.StreamMaxLen < 0 {
		return fmt.Errorf("RELAY_STREAM_MAXLEN must not be negative")
	}

	return nil
}

// DSN returns a libpq style connection string for pgx.
func (d DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.DBName, d.SSLMode)
	if d.Password != "" {
		dsn += fmt.Sprintf(" password=%s", d.Password)
	}
	if d.MaxConns > 0 {
		dsn += fmt.Sprintf(" pool_max_conns=%d", d.MaxConns)
	}
	return dsn
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
