package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Audit    AuditConfig    `json:"audit" yaml:"audit"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         int    `json:"port" yaml:"port"`
	Host         string `json:"host" yaml:"host"`
	ReadTimeout  int    `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeout int    `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
}

// EngineConfig represents resolution engine configuration
type EngineConfig struct {
	ConfidenceThreshold       float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	RequirementMatchThreshold float64 `json:"requirement_match_threshold" yaml:"requirement_match_threshold"`
	DetectorMinConfidence     float64 `json:"detector_min_confidence" yaml:"detector_min_confidence"`
}

// RegistryConfig represents framework storage configuration
type RegistryConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "memory" or "sqlite"
	Path    string `json:"path" yaml:"path"`
}

// AuditConfig represents audit trail configuration
type AuditConfig struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	Directory     string `json:"directory" yaml:"directory"`
	BufferSize    int    `json:"buffer_size" yaml:"buffer_size"`
	FlushSeconds  int    `json:"flush_seconds" yaml:"flush_seconds"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "localhost",
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Engine: EngineConfig{
			ConfidenceThreshold:       0.7,
			RequirementMatchThreshold: 0.8,
			DetectorMinConfidence:     0.6,
		},
		Registry: RegistryConfig{
			Backend: "memory",
			Path:    "./data/frameworks.db",
		},
		Audit: AuditConfig{
			Enabled:       true,
			Directory:     "./data/audit",
			BufferSize:    100,
			FlushSeconds:  30,
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (env wins).
func LoadConfig(path string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Don't fail if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := DefaultConfig()

	if path != "" {
		if err := loadFromFile(config, path); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	loadFromEnv(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile overlays configuration from a YAML file
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator flag
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	loadServerConfig(config)
	loadEngineConfig(config)
	loadRegistryConfig(config)
	loadAuditConfig(config)
	loadLoggingConfig(config)
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(config *Config) {
	if port := os.Getenv("NORMLEX_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("NORMLEX_HOST"); host != "" {
		config.Server.Host = host
	}
	if readTimeout := os.Getenv("NORMLEX_READ_TIMEOUT_SECONDS"); readTimeout != "" {
		if rt, err := strconv.Atoi(readTimeout); err == nil {
			config.Server.ReadTimeout = rt
		}
	}
	if writeTimeout := os.Getenv("NORMLEX_WRITE_TIMEOUT_SECONDS"); writeTimeout != "" {
		if wt, err := strconv.Atoi(writeTimeout); err == nil {
			config.Server.WriteTimeout = wt
		}
	}
}

// loadEngineConfig loads resolution engine configuration from environment
func loadEngineConfig(config *Config) {
	if threshold := os.Getenv("NORMLEX_CONFIDENCE_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Engine.ConfidenceThreshold = t
		}
	}
	if threshold := os.Getenv("NORMLEX_REQUIREMENT_MATCH_THRESHOLD"); threshold != "" {
		if t, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Engine.RequirementMatchThreshold = t
		}
	}
	if minConfidence := os.Getenv("NORMLEX_DETECTOR_MIN_CONFIDENCE"); minConfidence != "" {
		if mc, err := strconv.ParseFloat(minConfidence, 64); err == nil {
			config.Engine.DetectorMinConfidence = mc
		}
	}
}

// loadRegistryConfig loads framework storage configuration from environment
func loadRegistryConfig(config *Config) {
	if backend := os.Getenv("NORMLEX_REGISTRY_BACKEND"); backend != "" {
		config.Registry.Backend = backend
	}
	if path := os.Getenv("NORMLEX_REGISTRY_PATH"); path != "" {
		config.Registry.Path = path
	}
}

// loadAuditConfig loads audit trail configuration from environment
func loadAuditConfig(config *Config) {
	if enabled := os.Getenv("NORMLEX_AUDIT_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Audit.Enabled = e
		}
	}
	if dir := os.Getenv("NORMLEX_AUDIT_DIR"); dir != "" {
		config.Audit.Directory = dir
	}
	if bufferSize := os.Getenv("NORMLEX_AUDIT_BUFFER_SIZE"); bufferSize != "" {
		if bs, err := strconv.Atoi(bufferSize); err == nil {
			config.Audit.BufferSize = bs
		}
	}
	if flushSeconds := os.Getenv("NORMLEX_AUDIT_FLUSH_SECONDS"); flushSeconds != "" {
		if fs, err := strconv.Atoi(flushSeconds); err == nil {
			config.Audit.FlushSeconds = fs
		}
	}
	if retention := os.Getenv("NORMLEX_AUDIT_RETENTION_DAYS"); retention != "" {
		if r, err := strconv.Atoi(retention); err == nil {
			config.Audit.RetentionDays = r
		}
	}
}

// loadLoggingConfig loads logging configuration from environment
func loadLoggingConfig(config *Config) {
	if level := os.Getenv("NORMLEX_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("NORMLEX_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	// Validate engine config
	if c.Engine.ConfidenceThreshold < 0 || c.Engine.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be between 0 and 1")
	}
	if c.Engine.RequirementMatchThreshold < 0 || c.Engine.RequirementMatchThreshold > 1 {
		return fmt.Errorf("requirement match threshold must be between 0 and 1")
	}
	if c.Engine.DetectorMinConfidence < 0 || c.Engine.DetectorMinConfidence > 1 {
		return fmt.Errorf("detector min confidence must be between 0 and 1")
	}

	// Validate registry config
	switch c.Registry.Backend {
	case "memory":
	case "sqlite":
		if c.Registry.Path == "" {
			return fmt.Errorf("registry path cannot be empty when backend is sqlite")
		}
	default:
		return fmt.Errorf("unknown registry backend: %s", c.Registry.Backend)
	}

	// Validate audit config
	if c.Audit.Enabled {
		if c.Audit.Directory == "" {
			return fmt.Errorf("audit directory cannot be empty when audit is enabled")
		}
		if c.Audit.BufferSize <= 0 {
			return fmt.Errorf("audit buffer size must be positive")
		}
		if c.Audit.RetentionDays <= 0 {
			return fmt.Errorf("audit retention days must be positive")
		}
	}

	return nil
}
