// Package config provides application configuration management using koanf
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables read by Load.
// Nested keys are separated by a double underscore, so
// RAGCLIENT_BACKEND__BASE_URL sets backend.base_url.
const EnvPrefix = "RAGCLIENT_"

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8000"

// Config holds all configuration for the application
type Config struct {
	// Backend service
	Backend BackendConfig `koanf:"backend"`

	// Upload validation
	Upload UploadConfig `koanf:"upload"`

	// Conversation settings
	Session SessionConfig `koanf:"session"`

	// Local HTTP surface
	Server ServerConfig `koanf:"server"`

	// Directory watcher
	Watch WatchConfig `koanf:"watch"`

	// Application settings
	App AppConfig `koanf:"app"`
}

// BackendConfig holds the question-answering backend configuration
type BackendConfig struct {
	BaseURL    string `koanf:"base_url"`
	UploadPath string `koanf:"upload_path"`
	QueryPath  string `koanf:"query_path"`
	HealthPath string `koanf:"health_path"`
	QueryField string `koanf:"query_field"`
	Timeout    int    `koanf:"timeout"` // seconds, 0 disables
}

// UploadConfig holds client-side upload validation limits
type UploadConfig struct {
	MaxBytes   int64    `koanf:"max_bytes"`
	Extensions []string `koanf:"extensions"`
}

// SessionConfig holds conversation settings
type SessionConfig struct {
	WelcomeMessage string `koanf:"welcome_message"`
}

// ServerConfig holds the local HTTP surface configuration
type ServerConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	ReadTimeout  int    `koanf:"read_timeout"`  // seconds
	WriteTimeout int    `koanf:"write_timeout"` // seconds
}

// WatchConfig holds directory watcher settings
type WatchConfig struct {
	Dir string `koanf:"dir"`
}

// AppConfig holds general application settings
type AppConfig struct {
	Environment string `koanf:"environment"` // "development", "production"
	LogLevel    string `koanf:"log_level"`   // "debug", "info", "warn", "error"
	LogFormat   string `koanf:"log_format"`  // "text" or "json"; defaults to json in production
	LogFile     string `koanf:"log_file"`    // empty disables file output
}

// Load loads configuration from multiple sources with precedence:
// 1. defaults
// 2. config.yaml (if exists)
// 3. config.json (if exists)
// 4. Environment variables, including a .env file (highest precedence)
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load with config files and .env resolved relative to dir.
func LoadFrom(dir string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)
	loadConfigFiles(k, dir)

	// A missing .env is normal; variables already set win over the file.
	_ = godotenv.Load(dir + "/.env")

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	// API_URL is the variable browser front-ends use for the same setting.
	if v := os.Getenv("API_URL"); v != "" && os.Getenv(EnvPrefix+"BACKEND__BASE_URL") == "" {
		_ = k.Set("backend.base_url", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Production logs are machine-read unless a format was chosen.
	if cfg.App.LogFormat == "" {
		if cfg.IsProduction() {
			cfg.App.LogFormat = "json"
		} else {
			cfg.App.LogFormat = "text"
		}
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// transformEnv maps RAGCLIENT_BACKEND__BASE_URL to backend.base_url.
// Comma-separated values become lists for list-typed keys.
func transformEnv(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "upload.extensions" {
		return key, strings.Split(v, ",")
	}
	return key, v
}

// setDefaults sets default configuration values
func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		// Backend defaults
		"backend.base_url":    DefaultBaseURL,
		"backend.upload_path": "/api/upload",
		"backend.query_path":  "/api/query",
		"backend.health_path": "/health",
		"backend.query_field": "q",
		"backend.timeout":     120,

		// Upload defaults
		"upload.max_bytes":  int64(50 * 1024 * 1024),
		"upload.extensions": []string{".txt"},

		// Session defaults
		"session.welcome_message": "Hello! Upload a document first, then ask me questions about it. Try: 'What pottery was found?'",

		// Server defaults
		"server.host":          "localhost",
		"server.port":          8080,
		"server.read_timeout":  30,
		"server.write_timeout": 180,

		// App defaults
		"app.environment": "development",
		"app.log_level":   "info",
	}

	for key, value := range defaults {
		_ = k.Set(key, value) // Ignore error for setting defaults
	}
}

// loadConfigFiles loads configuration from files
func loadConfigFiles(k *koanf.Koanf, dir string) {
	yamlPath := dir + "/config.yaml"
	if _, err := os.Stat(yamlPath); err == nil {
		if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
			log.Printf("Warning: failed to load %s: %v", yamlPath, err)
		}
	}

	jsonPath := dir + "/config.json"
	if _, err := os.Stat(jsonPath); err == nil {
		if err := k.Load(file.Provider(jsonPath), json.Parser()); err != nil {
			log.Printf("Warning: failed to load %s: %v", jsonPath, err)
		}
	}
}

// validate validates the configuration
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend base URL must be absolute: %q", cfg.Backend.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend base URL must use http or https: %q", cfg.Backend.BaseURL)
	}

	if cfg.Backend.QueryField == "" {
		return fmt.Errorf("backend query field must not be empty")
	}

	if cfg.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}

	if cfg.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	if len(cfg.Upload.Extensions) == 0 {
		return fmt.Errorf("at least one upload extension is required")
	}

	switch cfg.App.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", cfg.App.LogLevel)
	}

	switch cfg.App.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", cfg.App.LogFormat)
	}

	return nil
}

// ServerAddr returns the listen address of the local HTTP surface.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
