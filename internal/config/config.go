// Package config loads server settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

var (
	validBackends   = []string{BackendSQLite, BackendMongo}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

type Config struct {
	// HTTP server
	Port       int
	CORSOrigin string

	// Storage
	StorageBackend string
	DBPath         string
	MongoURI       string
	MongoDatabase  string

	// Tokens
	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Forecast service
	ForecastURL     string
	ForecastTimeout time.Duration

	// SummaryTZOffset is minutes east of UTC used for day boundaries.
	SummaryTZOffset int

	// AMQP; OTPs are only logged when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("CORS_ORIGIN", "*")
	v.SetDefault("STORAGE_BACKEND", BackendSQLite)
	v.SetDefault("DB_PATH", "./data/spendwise.db")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DATABASE", "spendwise")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REFRESH_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL", 15*24*time.Hour)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("FORECAST_URL", "http://localhost:5000/predict")
	v.SetDefault("FORECAST_TIMEOUT", 10*time.Second)
	v.SetDefault("SUMMARY_TZ_OFFSET", 330)
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "spendwise")
	v.SetDefault("AMQP_QUEUE", "otp_emails")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

// Load reads a .env file from the working directory if one exists, then
// the config file at path (if non-empty), then the environment. Later
// sources win.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return &Config{
		Port:            v.GetInt("PORT"),
		CORSOrigin:      v.GetString("CORS_ORIGIN"),
		StorageBackend:  strings.ToLower(v.GetString("STORAGE_BACKEND")),
		DBPath:          v.GetString("DB_PATH"),
		MongoURI:        v.GetString("MONGO_URI"),
		MongoDatabase:   v.GetString("MONGO_DATABASE"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		RefreshSecret:   v.GetString("REFRESH_SECRET"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		ForecastURL:     v.GetString("FORECAST_URL"),
		ForecastTimeout: v.GetDuration("FORECAST_TIMEOUT"),
		SummaryTZOffset: v.GetInt("SUMMARY_TZ_OFFSET"),
		AMQPURL:         v.GetString("AMQP_URL"),
		AMQPExchange:    v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:       v.GetString("AMQP_QUEUE"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:       strings.ToLower(v.GetString("LOG_FORMAT")),
	}, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid PORT %d: must be between 1 and 65535", c.Port))
	}

	if !slices.Contains(validBackends, c.StorageBackend) {
		problems = append(problems, fmt.Sprintf("invalid STORAGE_BACKEND %q: must be one of %v", c.StorageBackend, validBackends))
	}
	if c.StorageBackend == BackendSQLite && c.DBPath == "" {
		problems = append(problems, "DB_PATH is required for the sqlite backend")
	}
	if c.StorageBackend == BackendMongo {
		if c.MongoURI == "" {
			problems = append(problems, "MONGO_URI is required for the mongo backend")
		}
		if c.MongoDatabase == "" {
			problems = append(problems, "MONGO_DATABASE is required for the mongo backend")
		}
	}

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}
	if c.RefreshSecret == "" {
		problems = append(problems, "REFRESH_SECRET is required")
	}
	if c.JWTSecret != "" && c.JWTSecret == c.RefreshSecret {
		problems = append(problems, "JWT_SECRET and REFRESH_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 {
		problems = append(problems, "ACCESS_TOKEN_TTL must be positive")
	}
	if c.RefreshTokenTTL <= 0 {
		problems = append(problems, "REFRESH_TOKEN_TTL must be positive")
	}

	if u, err := url.Parse(c.ForecastURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("invalid FORECAST_URL %q", c.ForecastURL))
	}
	if c.ForecastTimeout <= 0 {
		problems = append(problems, "FORECAST_TIMEOUT must be positive")
	}

	// UTC-12:00 through UTC+14:00.
	if c.SummaryTZOffset < -12*60 || c.SummaryTZOffset > 14*60 {
		problems = append(problems, fmt.Sprintf("invalid SUMMARY_TZ_OFFSET %d: must be within -720..840 minutes", c.SummaryTZOffset))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP_URL scheme %q: must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP_QUEUE cannot be empty when AMQP_URL is set")
		}
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		problems = append(problems, fmt.Sprintf("invalid LOG_LEVEL %q: must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		problems = append(problems, fmt.Sprintf("invalid LOG_FORMAT %q: must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed:\n  - " + strings.Join(problems, "\n  - "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SummaryLocation is the fixed zone used for summary day boundaries.
func (c *Config) SummaryLocation() *time.Location {
	return time.FixedZone("summary", c.SummaryTZOffset*60)
}
