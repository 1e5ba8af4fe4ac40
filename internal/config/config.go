package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv string `env:"GO_ENV" default:"development"`

	// HTTP front
	HTTPHost string `env:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort int    `env:"HTTP_PORT" default:"0"` // 0 = let the OS pick a free port

	// Backend
	GRPCAddr   string   `env:"GRPC_ADDR" default:"localhost:50051"`
	ProtoPaths []string `env:"PROTO_PATHS" default:"proto/broadcast.proto,proto/bot.proto"`
	BotID      string   `env:"BOT_ID" default:"12345"`

	// Definition loader options
	ProtoKeepCase      bool `env:"PROTO_KEEP_CASE" default:"true"`
	ProtoLongsAsString bool `env:"PROTO_LONGS_AS_STRING" default:"true"`
	ProtoEnumsAsString bool `env:"PROTO_ENUMS_AS_STRING" default:"true"`
	ProtoDefaults      bool `env:"PROTO_DEFAULTS" default:"true"`
	ProtoOneofs        bool `env:"PROTO_ONEOFS" default:"true"`

	// Subscription reconnect policy
	ReconnectEnabled     bool          `env:"RECONNECT_ENABLED" default:"false"`
	ReconnectBaseDelay   time.Duration `env:"RECONNECT_BASE_DELAY" default:"500ms"`
	ReconnectMaxDelay    time.Duration `env:"RECONNECT_MAX_DELAY" default:"30s"`
	ReconnectMaxAttempts int           `env:"RECONNECT_MAX_ATTEMPTS" default:"0"`

	// Unary call limits
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" default:"0"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" default:"1"`

	// Redis relay of broadcast messages
	RedisURL     string `env:"REDIS_URL"`
	RedisChannel string `env:"REDIS_CHANNEL" default:"botrelay:broadcast"`

	// Monitoring
	PrometheusEnabled bool `env:"PROMETHEUS_ENABLED" default:"false"`
	WebsocketEnabled  bool `env:"WEBSOCKET_ENABLED" default:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// .env is optional, the process environment always wins
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to read .env file", "error", err)
	}

	config := &Config{}

	loadEnvString(&config.GoEnv, "GO_ENV", "development")

	// HTTP front
	loadEnvString(&config.HTTPHost, "HTTP_HOST", "127.0.0.1")
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 0); err != nil {
		return nil, err
	}

	// Backend
	loadEnvString(&config.GRPCAddr, "GRPC_ADDR", "localhost:50051")
	loadEnvStringSlice(&config.ProtoPaths, "PROTO_PATHS", []string{"proto/broadcast.proto", "proto/bot.proto"})
	loadEnvString(&config.BotID, "BOT_ID", "12345")

	// Loader options
	for _, opt := range []struct {
		target *bool
		key    string
	}{
		{&config.ProtoKeepCase, "PROTO_KEEP_CASE"},
		{&config.ProtoLongsAsString, "PROTO_LONGS_AS_STRING"},
		{&config.ProtoEnumsAsString, "PROTO_ENUMS_AS_STRING"},
		{&config.ProtoDefaults, "PROTO_DEFAULTS"},
		{&config.ProtoOneofs, "PROTO_ONEOFS"},
	} {
		if err := loadEnvBool(opt.target, opt.key, true); err != nil {
			return nil, err
		}
	}

	// Reconnect
	if err := loadEnvBool(&config.ReconnectEnabled, "RECONNECT_ENABLED", false); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ReconnectBaseDelay, "RECONNECT_BASE_DELAY", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.ReconnectMaxDelay, "RECONNECT_MAX_DELAY", 30*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.ReconnectMaxAttempts, "RECONNECT_MAX_ATTEMPTS", 0); err != nil {
		return nil, err
	}

	// Unary call limits
	if err := loadEnvDuration(&config.UpstreamTimeout, "UPSTREAM_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.RateLimitRPS, "RATE_LIMIT_RPS", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.RateLimitBurst, "RATE_LIMIT_BURST", 1); err != nil {
		return nil, err
	}

	// Redis
	loadEnvString(&config.RedisURL, "REDIS_URL", "")
	loadEnvString(&config.RedisChannel, "REDIS_CHANNEL", "botrelay:broadcast")

	// Monitoring
	if err := loadEnvBool(&config.PrometheusEnabled, "PROMETHEUS_ENABLED", false); err != nil {
		return nil, err
	}
	if err := loadEnvBool(&config.WebsocketEnabled, "WEBSOCKET_ENABLED", false); err != nil {
		return nil, err
	}

	// Logging
	loadEnvString(&config.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&config.LogFormat, "LOG_FORMAT", "text")

	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvBool(target *bool, key string, defaultValue bool) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %w", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return
	}
	out := make([]string, 0)
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	*target = out
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 0 and 65535")
	}
	if strings.TrimSpace(c.GRPCAddr) == "" {
		errors = append(errors, "GRPC_ADDR must not be empty")
	}
	if len(c.ProtoPaths) == 0 {
		errors = append(errors, "PROTO_PATHS must name at least one file")
	}

	if c.ReconnectBaseDelay <= 0 {
		errors = append(errors, "RECONNECT_BASE_DELAY must be positive")
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		errors = append(errors, "RECONNECT_MAX_DELAY must not be lower than RECONNECT_BASE_DELAY")
	}
	if c.ReconnectMaxAttempts < 0 {
		errors = append(errors, "RECONNECT_MAX_ATTEMPTS must not be negative")
	}

	if c.UpstreamTimeout < 0 {
		errors = append(errors, "UPSTREAM_TIMEOUT must not be negative")
	}
	if c.RateLimitRPS < 0 {
		errors = append(errors, "RATE_LIMIT_RPS must not be negative")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errors = append(errors, "RATE_LIMIT_BURST must be at least 1")
	}

	if c.RedisURL != "" && strings.TrimSpace(c.RedisChannel) == "" {
		errors = append(errors, "REDIS_CHANNEL must not be empty when REDIS_URL is set")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// HTTPAddr is the host:port the HTTP front listens on.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
