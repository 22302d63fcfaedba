package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvAIAPIKey     = "AI_TOKEN"
	EnvAIModel      = "AI_MODEL"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvAMQPURL      = "AMQP_URL"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds the signing secret and token pair lifetimes.
type JWTConfig struct {
	Secret        string        `yaml:"secret"`
	AccessExpiry  time.Duration `yaml:"access-expiry"`
	RefreshExpiry time.Duration `yaml:"refresh-expiry"`
}

// AIConfig holds the outbound AI provider settings.
type AIConfig struct {
	APIKey  string `yaml:"api-key"`
	BaseURL string `yaml:"base-url"`
	Model   string `yaml:"model"`
}

// RateLimitConfig holds auth-route rate limiting settings.
type RateLimitConfig struct {
	PerMinute int    `yaml:"per-minute"`
	RedisAddr string `yaml:"redis-addr"`
}

// NotifyConfig holds push notification dispatch settings.
type NotifyConfig struct {
	OneSignalAppID  string `yaml:"onesignal-app-id"`
	OneSignalAPIKey string `yaml:"onesignal-api-key"`
	AMQPURL         string `yaml:"amqp-url"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

const (
	// defaultAccessExpiry is used when the config omits the access token TTL.
	defaultAccessExpiry = 24 * time.Hour
	// defaultRefreshExpiry is used when the config omits the refresh token TTL.
	defaultRefreshExpiry = 30 * 24 * time.Hour
)

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{AccessExpiry: defaultAccessExpiry, RefreshExpiry: defaultRefreshExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if result.AccessExpiry <= 0 {
		result.AccessExpiry = defaultAccessExpiry
	}
	if result.RefreshExpiry <= 0 {
		result.RefreshExpiry = defaultRefreshExpiry
	}
	return result, nil
}

// defaultAIModel is used when neither config nor env name a model.
const defaultAIModel = "gpt-4o-mini"

// LoadAIConfig loads AI provider settings from the YAML config file.
func LoadAIConfig(configPath string) (AIConfig, error) {
	// fileConfig maps the YAML fields needed for AI settings.
	type fileConfig struct {
		AI AIConfig `yaml:"ai"`
	}

	var result AIConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.AI
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvAIAPIKey)); key != "" {
		result.APIKey = key
	}
	if model := strings.TrimSpace(os.Getenv(EnvAIModel)); model != "" {
		result.Model = model
	}
	if strings.TrimSpace(result.Model) == "" {
		result.Model = defaultAIModel
	}
	return result, nil
}

// LoadRateLimitConfig loads rate limiting settings from the YAML config file.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	// fileConfig maps the YAML fields needed for rate limit settings.
	type fileConfig struct {
		RateLimit RateLimitConfig `yaml:"rate-limit"`
	}

	var result RateLimitConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.RateLimit
		}
	}

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.RedisAddr = addr
	}
	return result, nil
}

// LoadNotifyConfig loads notification dispatch settings from the YAML config file.
func LoadNotifyConfig(configPath string) (NotifyConfig, error) {
	// fileConfig maps the YAML fields needed for notification settings.
	type fileConfig struct {
		Notify NotifyConfig `yaml:"notify"`
	}

	var result NotifyConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Notify
		}
	}

	if url := strings.TrimSpace(os.Getenv(EnvAMQPURL)); url != "" {
		result.AMQPURL = url
	}
	if id := strings.TrimSpace(os.Getenv("ONESIGNAL_APP_ID")); id != "" {
		result.OneSignalAppID = id
	}
	if key := strings.TrimSpace(os.Getenv("ONESIGNAL_API_KEY")); key != "" {
		result.OneSignalAPIKey = key
	}
	return result, nil
}
