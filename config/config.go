package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Defaults applied by Validate
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 8080
	DefaultDBPath          = "./gamehall.db"
	DefaultRemoteTimeout   = "10s"
	DefaultHourlyRate      = 6000
	DefaultDeviceCount     = 6
	DefaultUsername        = "admin"
	DefaultPollInterval    = "1s"
	DefaultRefreshInterval = "30s"
	DefaultLogFormat       = "json"
	DefaultLogLevel        = "info"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Remote   RemoteConfig   `json:"remote" yaml:"remote"`
	Billing  BillingConfig  `json:"billing" yaml:"billing"`
	Operator OperatorConfig `json:"operator" yaml:"operator"`
	Timer    TimerConfig    `json:"timer" yaml:"timer"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Timezone string         `json:"timezone" yaml:"timezone"` // IANA name; empty means local time

	location *time.Location
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// DatabaseConfig contains local cache settings
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	APIKey string `json:"api_key" yaml:"api_key"`
}

// RemoteConfig points at the central backend; an empty base URL keeps
// the console disconnected
type RemoteConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Timeout string `json:"timeout" yaml:"timeout"`

	timeout time.Duration
}

// BillingConfig contains pricing and the device pool size
type BillingConfig struct {
	HourlyRate  int64 `json:"hourly_rate" yaml:"hourly_rate"`
	DeviceCount int   `json:"device_count" yaml:"device_count"`
}

// OperatorConfig holds the credentials accepted while disconnected
type OperatorConfig struct {
	Username     string `json:"username" yaml:"username"`
	PasswordHash string `json:"password_hash" yaml:"password_hash"` // bcrypt; empty means the default password
}

// TimerConfig contains background loop intervals
type TimerConfig struct {
	PollInterval    string `json:"poll_interval" yaml:"poll_interval"`
	RefreshInterval string `json:"refresh_interval" yaml:"refresh_interval"`

	poll    time.Duration
	refresh time.Duration
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Format string `json:"format" yaml:"format"`
	Level  string `json:"level" yaml:"level"`
}

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port", ErrInvalidConfig)
	}

	if c.Database.Path == "" {
		c.Database.Path = DefaultDBPath
	}

	if c.Security.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrInvalidConfig)
	}

	if c.Remote.BaseURL != "" &&
		!strings.HasPrefix(c.Remote.BaseURL, "http://") &&
		!strings.HasPrefix(c.Remote.BaseURL, "https://") {
		return fmt.Errorf("%w: remote base URL must be http or https", ErrInvalidConfig)
	}
	if c.Remote.Timeout == "" {
		c.Remote.Timeout = DefaultRemoteTimeout
	}
	timeout, err := parsePositiveDuration("remote timeout", c.Remote.Timeout)
	if err != nil {
		return err
	}
	c.Remote.timeout = timeout

	if c.Billing.HourlyRate == 0 {
		c.Billing.HourlyRate = DefaultHourlyRate
	}
	if c.Billing.HourlyRate < 0 {
		return fmt.Errorf("%w: hourly rate must be positive", ErrInvalidConfig)
	}
	if c.Billing.DeviceCount == 0 {
		c.Billing.DeviceCount = DefaultDeviceCount
	}
	if c.Billing.DeviceCount < 0 {
		return fmt.Errorf("%w: device count must be positive", ErrInvalidConfig)
	}

	if c.Operator.Username == "" {
		c.Operator.Username = DefaultUsername
	}

	if c.Timer.PollInterval == "" {
		c.Timer.PollInterval = DefaultPollInterval
	}
	poll, err := parsePositiveDuration("timer poll interval", c.Timer.PollInterval)
	if err != nil {
		return err
	}
	c.Timer.poll = poll

	if c.Timer.RefreshInterval == "" {
		c.Timer.RefreshInterval = DefaultRefreshInterval
	}
	refresh, err := parsePositiveDuration("refresh interval", c.Timer.RefreshInterval)
	if err != nil {
		return err
	}
	c.Timer.refresh = refresh

	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("%w: logging format must be json or text", ErrInvalidConfig)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}

	c.location = time.Local
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, c.Timezone)
		}
		c.location = loc
	}

	return nil
}

// Addr returns the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location returns the zone used for day boundaries and remote timestamps
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// TimeoutDuration returns the parsed remote request timeout
func (r RemoteConfig) TimeoutDuration() time.Duration {
	return r.timeout
}

// Poll returns the parsed timer engine interval
func (t TimerConfig) Poll() time.Duration {
	return t.poll
}

// Refresh returns the parsed background refresh interval
func (t TimerConfig) Refresh() time.Duration {
	return t.refresh
}

func parsePositiveDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrInvalidConfig, name, value)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
	}
	return d, nil
}

// Load loads configuration from a JSON or YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables
// This is useful for containerized deployments
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: getEnv("GAMEHALL_HOST", DefaultHost),
			Port: getEnvInt("GAMEHALL_PORT", DefaultPort),
		},
		Database: DatabaseConfig{
			Path: getEnv("GAMEHALL_DB_PATH", DefaultDBPath),
		},
		Security: SecurityConfig{
			APIKey: getEnv("GAMEHALL_API_KEY", ""),
		},
		Remote: RemoteConfig{
			BaseURL: getEnv("GAMEHALL_REMOTE_URL", ""),
			Timeout: getEnv("GAMEHALL_REMOTE_TIMEOUT", DefaultRemoteTimeout),
		},
		Billing: BillingConfig{
			HourlyRate:  int64(getEnvInt("GAMEHALL_HOURLY_RATE", DefaultHourlyRate)),
			DeviceCount: getEnvInt("GAMEHALL_DEVICE_COUNT", DefaultDeviceCount),
		},
		Operator: OperatorConfig{
			Username:     getEnv("GAMEHALL_OPERATOR_USERNAME", DefaultUsername),
			PasswordHash: getEnv("GAMEHALL_OPERATOR_PASSWORD_HASH", ""),
		},
		Timer: TimerConfig{
			PollInterval:    getEnv("GAMEHALL_POLL_INTERVAL", DefaultPollInterval),
			RefreshInterval: getEnv("GAMEHALL_REFRESH_INTERVAL", DefaultRefreshInterval),
		},
		Logging: LoggingConfig{
			Format: getEnv("GAMEHALL_LOG_FORMAT", DefaultLogFormat),
			Level:  getEnv("GAMEHALL_LOG_LEVEL", DefaultLogLevel),
		},
		Timezone: getEnv("GAMEHALL_TIMEZONE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return -1
		}
		return intVal
	}
	return defaultValue
}
