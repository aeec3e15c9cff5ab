package config

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `env:", prefix=SERVER_"`
	Sharekhan SharekhanConfig `env:", prefix=SHAREKHAN_"`
	Redis     RedisConfig     `env:", prefix=REDIS_"`
	NATS      NATSConfig      `env:", prefix=NATS_"`
	InfluxDB  InfluxConfig    `env:", prefix=INFLUXDB_"`
	Export    ExportConfig    `env:", prefix=EXPORT_"`
	Security  SecurityConfig  `env:", prefix=SECURITY_"`
	Logging   LoggingConfig   `env:", prefix=LOG_"`
}

// ServerConfig holds the local web server configuration
type ServerConfig struct {
	Host         string        `env:"HOST, default=0.0.0.0"`
	Port         int           `env:"PORT, default=8000"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT, default=120s"`
}

// SharekhanConfig holds broker API configuration
type SharekhanConfig struct {
	BaseURL     string `env:"BASE_URL, default=https://api.sharekhan.com/skapi"`
	APIKey      string `env:"API_KEY"`
	SecretKey   string `env:"SECRET_KEY"`
	UserID      string `env:"USER_ID"`
	VersionID   string `env:"VERSION_ID, default=1005"`
	State       string `env:"STATE, default=12345"`
	CallbackURL string `env:"CALLBACK_URL, default=http://127.0.0.1:8000/callback"`

	// EncryptionKey is truncated or zero-padded to 32 bytes for AES-256.
	EncryptionKey string `env:"ENCRYPTION_KEY, default=txt1XPdoxL4YVMgnJiFkY6xxGE"`

	Timeout         time.Duration `env:"TIMEOUT, default=30s"`
	RequestInterval time.Duration `env:"REQUEST_INTERVAL, default=1s"` // pause between batch fetches
}

// RedisConfig holds Redis configuration for the token cache
type RedisConfig struct {
	Enabled      bool          `env:"ENABLED, default=false"`
	Host         string        `env:"HOST, default=localhost"`
	Port         int           `env:"PORT, default=6379"`
	Password     string        `env:"PASSWORD"`
	DB           int           `env:"DB, default=0"`
	PoolSize     int           `env:"POOL_SIZE, default=10"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT, default=5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT, default=3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=3s"`
	TokenTTL     time.Duration `env:"TOKEN_TTL, default=24h"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled       bool          `env:"ENABLED, default=false"`
	URL           string        `env:"URL, default=nats://localhost:4222"`
	MaxReconnect  int           `env:"MAX_RECONNECT, default=10"`
	ReconnectWait time.Duration `env:"RECONNECT_WAIT, default=2s"`
	SubjectPrefix string        `env:"SUBJECT_PREFIX, default=sharekhan"`
}

// InfluxConfig holds InfluxDB configuration
type InfluxConfig struct {
	Enabled bool          `env:"ENABLED, default=false"`
	URL     string        `env:"URL, default=http://localhost:8086"`
	Token   string        `env:"TOKEN"`
	Org     string        `env:"ORG, default=trading-org"`
	Bucket  string        `env:"BUCKET, default=sharekhan"`
	Timeout time.Duration `env:"TIMEOUT, default=10s"`
}

// ExportConfig controls where fetched series are written
type ExportConfig struct {
	Dir      string `env:"DIR, default=."`
	BaseName string `env:"BASE_NAME, default=goldm_5hr_data"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	CORSEnabled bool     `env:"CORS_ENABLED, default=false"`
	CORSOrigins []string `env:"CORS_ORIGINS, default=*"`
	CORSMethods []string `env:"CORS_METHODS, default=GET,POST,OPTIONS"`
	CORSHeaders []string `env:"CORS_HEADERS, default=Content-Type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `env:"LEVEL, default=info"`
	Format     string `env:"FORMAT, default=text"`
	Output     string `env:"OUTPUT, default=stdout"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB, default=50"`
	MaxBackups int    `env:"MAX_BACKUPS, default=5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS, default=28"`
}

// Load loads configuration from environment variables using go-envconfig
func Load() (*Config, error) {
	return LoadWith(envconfig.OsLookuper())
}

// LoadWith loads configuration from the given lookuper. Tests use
// envconfig.MapLookuper to avoid touching the process environment.
func LoadWith(lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if _, err := url.ParseRequestURI(c.Sharekhan.BaseURL); err != nil {
		return fmt.Errorf("invalid Sharekhan base URL %q: %w", c.Sharekhan.BaseURL, err)
	}

	if c.Sharekhan.EncryptionKey == "" {
		return fmt.Errorf("Sharekhan encryption key is required")
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("Redis host is required when Redis is enabled")
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("NATS URL is required when NATS is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("InfluxDB URL is required when InfluxDB is enabled")
	}

	return nil
}

// HasCredentials reports whether the historical data login triple is set
func (c *SharekhanConfig) HasCredentials() bool {
	return c.APIKey != "" && c.SecretKey != "" && c.UserID != ""
}

// GetRedisAddr returns Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// GetServerAddr returns server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
