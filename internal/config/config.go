package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the process-wide configuration. It is built once in main and
// handed to everything that needs it; nothing else reads the environment.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	GoogleFit GoogleFitConfig `koanf:"googlefit"`
	Auth      AuthConfig      `koanf:"auth"`
}

type ServerConfig struct {
	Port              int    `koanf:"port"`
	Host              string `koanf:"host"`
	Mode              string `koanf:"mode"` // debug | release
	CORSOrigin        string `koanf:"cors_origin"`
	PublicBaseURL     string `koanf:"public_base_url"`
	ExposeErrorDetail bool   `koanf:"expose_error_detail"`
}

type DatabaseConfig struct {
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
}

// GoogleFitConfig holds the credential pair for the wearable metrics API.
// The three credential values are validated by googlefit.Credentials, not
// here, so the server can start without them.
type GoogleFitConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RefreshToken string `koanf:"refresh_token"`
	TokenURL     string `koanf:"token_url"`
	AggregateURL string `koanf:"aggregate_url"`
	Timezone     string `koanf:"timezone"` // IANA name; "Local" uses the host zone
}

type AuthConfig struct {
	ResetTokenTTL time.Duration `koanf:"reset_token_ttl"`
}

// envKeys maps the documented environment variable names onto koanf keys.
// Variables not listed here are ignored.
var envKeys = map[string]string{
	"PORT":                     "server.port",
	"HOST":                     "server.host",
	"APP_MODE":                 "server.mode",
	"CORS_ORIGIN":              "server.cors_origin",
	"PUBLIC_BASE_URL":          "server.public_base_url",
	"EXPOSE_ERROR_DETAIL":      "server.expose_error_detail",
	"DB_URL":                   "database.url",
	"DB_AUTO_MIGRATE":          "database.auto_migrate",
	"OPENAI_API_KEY":           "openai.api_key",
	"OPENAI_BASE_URL":          "openai.base_url",
	"OPENAI_MODEL":             "openai.model",
	"GOOGLE_CLIENT_ID":         "googlefit.client_id",
	"GOOGLE_CLIENT_SECRET":     "googlefit.client_secret",
	"GOOGLE_REFRESH_TOKEN":     "googlefit.refresh_token",
	"GOOGLE_TOKEN_URL":         "googlefit.token_url",
	"GOOGLE_FIT_AGGREGATE_URL": "googlefit.aggregate_url",
	"METRICS_TIMEZONE":         "googlefit.timezone",
	"RESET_TOKEN_TTL":          "auth.reset_token_ttl",
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                8080,
		"server.host":                "0.0.0.0",
		"server.mode":                "release",
		"server.cors_origin":         "*",
		"server.public_base_url":     "http://localhost:8080",
		"server.expose_error_detail": false,
		"database.url":               "",
		"database.auto_migrate":      false,
		"openai.base_url":            "https://api.openai.com/v1/",
		"openai.model":               "gpt-4o-mini",
		"googlefit.token_url":        "https://oauth2.googleapis.com/token",
		"googlefit.aggregate_url":    "https://fitness.googleapis.com/fitness/v1/users/me/dataset:aggregate",
		"googlefit.timezone":         "Local",
		"auth.reset_token_ttl":       "1h",
	}
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return fmt.Errorf("auth.reset_token_ttl must be > 0")
	}
	if _, err := c.GoogleFit.Location(); err != nil {
		return fmt.Errorf("invalid googlefit.timezone %q: %w", c.GoogleFit.Timezone, err)
	}
	return nil
}

// Location resolves the zone used to find local midnight for the metrics window.
func (g GoogleFitConfig) Location() (*time.Location, error) {
	if g.Timezone == "" || g.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(g.Timezone)
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load builds the config from defaults, an optional YAML file and the
// environment (a .env file in the working directory is loaded first).
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")
	for key, value := range defaults() {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
