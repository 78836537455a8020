// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig                  `mapstructure:"app"`
	HTTP          HTTPConfig                 `mapstructure:"http"`
	Database      DatabaseConfig             `mapstructure:"database"`
	Predictions   PredictionsConfig          `mapstructure:"predictions"`
	Subscriptions SubscriptionsConfig        `mapstructure:"subscriptions"`
	RateLimits    map[string]RateLimitConfig `mapstructure:"rate_limits"`
	Notifications NotificationConfig         `mapstructure:"notifications"`
	Logging       LoggingConfig              `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port           int      `mapstructure:"port"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RequestTimeout int      `mapstructure:"request_timeout"` // milliseconds
	APIKey         string   `mapstructure:"api_key"`         // optional bearer key for mutating endpoints
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	QueryTimeout   int    `mapstructure:"query_timeout"` // milliseconds
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Configuration Sections ---

// PredictionsConfig holds settings for the latest-predictions read path.
type PredictionsConfig struct {
	S3Bucket     string   `mapstructure:"s3_bucket"`
	S3Prefix     string   `mapstructure:"s3_prefix"`
	AWSRegion    string   `mapstructure:"aws_region"`
	CacheTTL     int      `mapstructure:"cache_ttl"` // seconds
	DefaultPairs []string `mapstructure:"default_pairs"`
	LocalDir     string   `mapstructure:"local_dir"` // if set, load from filesystem instead of S3
}

// ManifestKey returns the object key of manifest.json.
func (p PredictionsConfig) ManifestKey() string {
	return p.S3Prefix + "manifest.json"
}

// LatestKey returns the object key of latest_{PAIR}_h7.json.
func (p PredictionsConfig) LatestKey(pair string) string {
	return fmt.Sprintf("%slatest_%s_h7.json", p.S3Prefix, pair)
}

// SubscriptionsConfig holds settings for the subscription lifecycle.
type SubscriptionsConfig struct {
	SiteBaseURL         string `mapstructure:"site_base_url"`
	VerificationTTL     int    `mapstructure:"verification_ttl"`     // hours
	DefaultTimezone     string `mapstructure:"default_timezone"`
	PurgeRetentionHours int    `mapstructure:"purge_retention_hours"` // rate-limit window retention
}

// RateLimitConfig is one limiter identifier's budget.
type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// NotificationConfig holds settings for outbound confirmation email.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
