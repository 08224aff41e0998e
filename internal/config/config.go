// ABOUTME: Configuration loading and parsing for skill-gateway.
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete skill-gateway configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Skills   SkillsConfig   `yaml:"skills"`
	Routing  RoutingConfig  `yaml:"routing"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration for skill traffic.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	AppID     string `yaml:"app_id"` // the gateway's own app identity on outbound calls
}

// SkillsConfig holds the registered skill catalog and the callback base URL
// every skill uses to reach back into this gateway.
type SkillsConfig struct {
	HostEndpoint string        `yaml:"host_endpoint"`
	Entries      []SkillEntry  `yaml:"entries"`
	PingTimeout  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	PingTimeoutRaw string `yaml:"ping_timeout"`
}

// SkillEntry describes one registered skill.
type SkillEntry struct {
	ID       string `yaml:"id"`
	AppID    string `yaml:"app_id"`
	Endpoint string `yaml:"endpoint"`
}

// RoutingConfig holds the local turn policy configuration.
type RoutingConfig struct {
	DefaultSkill string        `yaml:"default_skill"`
	TriggerWord  string        `yaml:"trigger_word"`
	DedupeTTL    time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	DedupeTTLRaw string `yaml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment
// variable values. If the environment variable is not set, it is replaced with
// an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts raw duration strings into time.Duration fields,
// applying defaults where the config is silent.
func parseDurations(cfg *Config) error {
	var err error

	cfg.Skills.PingTimeout, err = parseDurationOrDefault(cfg.Skills.PingTimeoutRaw, 5*time.Second)
	if err != nil {
		return fmt.Errorf("skills.ping_timeout: %w", err)
	}

	cfg.Routing.DedupeTTL, err = parseDurationOrDefault(cfg.Routing.DedupeTTLRaw, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("routing.dedupe_ttl: %w", err)
	}

	return nil
}

func parseDurationOrDefault(raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

// Validate checks that all required configuration fields are present and valid.
// A failure here is fatal at startup — misconfiguration is never a per-turn
// condition. Returns an error naming the first offending field.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.AppID == "" {
		return fmt.Errorf("auth.app_id is required")
	}
	if c.Skills.HostEndpoint == "" {
		return fmt.Errorf("skills.host_endpoint is required")
	}
	if len(c.Skills.Entries) == 0 {
		return fmt.Errorf("skills.entries must list at least one skill")
	}

	seen := make(map[string]bool, len(c.Skills.Entries))
	for i, entry := range c.Skills.Entries {
		if entry.ID == "" {
			return fmt.Errorf("skills.entries[%d].id is required", i)
		}
		if entry.AppID == "" {
			return fmt.Errorf("skills.entries[%d].app_id is required (skill %q)", i, entry.ID)
		}
		if entry.Endpoint == "" {
			return fmt.Errorf("skills.entries[%d].endpoint is required (skill %q)", i, entry.ID)
		}
		if seen[entry.ID] {
			return fmt.Errorf("skills.entries contains duplicate id %q", entry.ID)
		}
		seen[entry.ID] = true
	}

	if c.Routing.DefaultSkill != "" && !seen[c.Routing.DefaultSkill] {
		return fmt.Errorf("routing.default_skill %q is not a registered skill", c.Routing.DefaultSkill)
	}

	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
		}
	}

	return nil
}
