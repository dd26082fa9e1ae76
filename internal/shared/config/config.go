package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Stream   StreamConfig
	Database DatabaseConfig
	Roster   RosterConfig
	Auth     AuthConfig
	Sync     SyncConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port int
	Env  string
	// RateLimitRPS and RateLimitBurst bound requests per client IP
	RateLimitRPS   int
	RateLimitBurst int
}

// UpstreamConfig holds the HIS gateway connection settings. All snapshot
// fetches and operator commands go through this endpoint.
type UpstreamConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// StreamConfig holds configuration for the EventStoreDB notification stream.
type StreamConfig struct {
	// Host is the EventStoreDB server hostname
	Host string
	// Port is the gRPC port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
	// Stream is the stream operator notifications are published to
	Stream string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RosterConfig selects where the doctor roster comes from. "upstream" reads
// it from the HIS gateway like every other snapshot; "legacy" reads the
// legacy HIS SQL Server directly.
type RosterConfig struct {
	Source string

	// Legacy HIS (SQL Server) settings, used when Source == "legacy"
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Table    string
}

type AuthConfig struct {
	JWTSecret string
}

// SyncConfig tunes the refresh scheduler.
type SyncConfig struct {
	// PollInterval is the background poll period while the notification
	// stream is healthy
	PollInterval time.Duration
	// DegradedPollInterval is the poll period while the stream is down
	DegradedPollInterval time.Duration
	// RefreshRate limits refreshes per domain per second
	RefreshRate float64
	// RefreshBurst is the limiter burst per domain
	RefreshBurst int
	// DefaultPageSize for view endpoints
	DefaultPageSize int
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			Env:            getEnv("ENV", "development"),
			RateLimitRPS:   getEnvInt("SERVER_RATE_LIMIT_RPS", 50),
			RateLimitBurst: getEnvInt("SERVER_RATE_LIMIT_BURST", 100),
		},
		Upstream: UpstreamConfig{
			BaseURL: getEnv("UPSTREAM_BASE_URL", "http://localhost:9000"),
			APIKey:  getEnv("UPSTREAM_API_KEY", ""),
			Timeout: getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),
		},
		Stream: StreamConfig{
			Host:     getEnv("STREAM_HOST", "localhost"),
			Port:     getEnvInt("STREAM_PORT", 2113),
			Insecure: getEnvBool("STREAM_INSECURE", true),
			Username: getEnv("STREAM_USERNAME", ""),
			Password: getEnv("STREAM_PASSWORD", ""),
			Stream:   getEnv("STREAM_NAME", "frontdesk-notifications"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "frontdesk"),
			Password: getEnv("DB_PASSWORD", "frontdesk"),
			Database: getEnv("DB_NAME", "frontdesk"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Roster: RosterConfig{
			Source:   getEnv("ROSTER_SOURCE", "upstream"),
			Host:     getEnv("ROSTER_DB_HOST", "localhost"),
			Port:     getEnvInt("ROSTER_DB_PORT", 1433),
			User:     getEnv("ROSTER_DB_USER", ""),
			Password: getEnv("ROSTER_DB_PASSWORD", ""),
			Database: getEnv("ROSTER_DB_NAME", "his"),
			Table:    getEnv("ROSTER_DB_TABLE", "dbo.Doctors"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Sync: SyncConfig{
			PollInterval:         getEnvDuration("SYNC_POLL_INTERVAL", 60*time.Second),
			DegradedPollInterval: getEnvDuration("SYNC_DEGRADED_POLL_INTERVAL", 10*time.Second),
			RefreshRate:          getEnvFloat("SYNC_REFRESH_RATE", 2),
			RefreshBurst:         getEnvInt("SYNC_REFRESH_BURST", 2),
			DefaultPageSize:      getEnvInt("SYNC_PAGE_SIZE", 10),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
