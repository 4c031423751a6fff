// Package config provides configuration loading for the storefront server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Razorpay RazorpayConfig `yaml:"razorpay"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Port is the TCP port to listen on.
	Port int `yaml:"port"`
	// Env is "development" or "production"; cookies are marked Secure
	// outside development.
	Env string `yaml:"env"`
	// ReadTimeout bounds reading of a request, WriteTimeout the response.
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// RequestTimeout is the deadline placed on every request context, so
	// store, database and gateway calls cannot hang a request.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// ShutdownGrace is how long in-flight requests get on shutdown.
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`
}

// MongoConfig configures the durable document store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
	// ConnectTimeout bounds the initial connection and ping.
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// RedisConfig configures the session store connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig configures token issuance.
type AuthConfig struct {
	// AccessTTL is the access token lifetime (default 15m).
	AccessTTL time.Duration `yaml:"accessTTL"`
	// RefreshTTL is the refresh token lifetime (default 7d).
	RefreshTTL time.Duration `yaml:"refreshTTL"`
	// AccessSecret and RefreshSecret sign the two token kinds. They are
	// independent so compromise of one does not compromise the other.
	// Supplied via environment, never via file.
	AccessSecret  string `yaml:"-"`
	RefreshSecret string `yaml:"-"`
}

// RazorpayConfig configures the payment gateway client.
type RazorpayConfig struct {
	// KeyID and KeySecret authenticate against the gateway API; the
	// secret also keys the payment confirmation HMAC. Environment only.
	KeyID     string `yaml:"-"`
	KeySecret string `yaml:"-"`
	// Timeout bounds every gateway call.
	Timeout time.Duration `yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults. Secrets are left empty
// and must come from the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           5000,
			Env:            "development",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 15 * time.Second,
			ShutdownGrace:  15 * time.Second,
		},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "storefront",
			ConnectTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Auth: AuthConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Razorpay: RazorpayConfig{
			Timeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of defaults, then applies
// environment overrides. A missing path loads defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Server.Env = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		c.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	c.Auth.AccessSecret = os.Getenv("ACCESS_TOKEN_SECRET")
	c.Auth.RefreshSecret = os.Getenv("REFRESH_TOKEN_SECRET")
	c.Razorpay.KeyID = os.Getenv("RAZORPAY_KEY_ID")
	c.Razorpay.KeySecret = os.Getenv("RAZORPAY_KEY_SECRET")
}

// Validate checks the configuration, failing fast on missing secrets.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET is not set")
	}
	if c.Auth.RefreshSecret == "" {
		return fmt.Errorf("REFRESH_TOKEN_SECRET is not set")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("access and refresh token secrets must differ")
	}
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID / RAZORPAY_KEY_SECRET are not set")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Auth.RefreshTTL <= c.Auth.AccessTTL {
		return fmt.Errorf("refresh TTL must exceed access TTL")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// Production reports whether the server runs outside local development.
func (c *Config) Production() bool {
	return c.Server.Env != "development"
}
