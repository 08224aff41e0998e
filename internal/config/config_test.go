// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

const validConfig = `
server:
  http_addr: "0.0.0.0:8080"

database:
  path: "./gateway.db"

auth:
  jwt_secret: "test-secret"
  app_id: "app-root"

skills:
  host_endpoint: "http://localhost:8080"
  ping_timeout: "2s"
  entries:
    - id: "EchoSkillBot"
      app_id: "app-echo"
      endpoint: "http://localhost:8081"

routing:
  default_skill: "EchoSkillBot"
  trigger_word: "skill"
  dedupe_ttl: "10m"

logging:
  level: "debug"
  format: "json"
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Path != "./gateway.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./gateway.db")
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "test-secret")
	}
	if cfg.Auth.AppID != "app-root" {
		t.Errorf("Auth.AppID = %q, want %q", cfg.Auth.AppID, "app-root")
	}

	if cfg.Skills.HostEndpoint != "http://localhost:8080" {
		t.Errorf("Skills.HostEndpoint = %q, want %q", cfg.Skills.HostEndpoint, "http://localhost:8080")
	}
	if cfg.Skills.PingTimeout != 2*time.Second {
		t.Errorf("Skills.PingTimeout = %v, want %v", cfg.Skills.PingTimeout, 2*time.Second)
	}
	if len(cfg.Skills.Entries) != 1 {
		t.Fatalf("len(Skills.Entries) = %d, want 1", len(cfg.Skills.Entries))
	}
	entry := cfg.Skills.Entries[0]
	if entry.ID != "EchoSkillBot" || entry.AppID != "app-echo" || entry.Endpoint != "http://localhost:8081" {
		t.Errorf("Skills.Entries[0] = %+v, unexpected values", entry)
	}

	if cfg.Routing.DefaultSkill != "EchoSkillBot" {
		t.Errorf("Routing.DefaultSkill = %q, want %q", cfg.Routing.DefaultSkill, "EchoSkillBot")
	}
	if cfg.Routing.TriggerWord != "skill" {
		t.Errorf("Routing.TriggerWord = %q, want %q", cfg.Routing.TriggerWord, "skill")
	}
	if cfg.Routing.DedupeTTL != 10*time.Minute {
		t.Errorf("Routing.DedupeTTL = %v, want %v", cfg.Routing.DedupeTTL, 10*time.Minute)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_GW_SECRET", "secret-from-env")

	configContent := strings.Replace(validConfig, `jwt_secret: "test-secret"`, `jwt_secret: "${TEST_GW_SECRET}"`, 1)
	cfg, err := Load(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "secret-from-env" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "secret-from-env")
	}
}

func TestLoad_UnsetEnvVarFailsValidation(t *testing.T) {
	// An unset variable expands to empty, which the required-field check catches
	configContent := strings.Replace(validConfig, `jwt_secret: "test-secret"`, `jwt_secret: "${TEST_GW_UNSET_VAR}"`, 1)
	_, err := Load(writeConfig(t, configContent))
	if err == nil {
		t.Fatal("Load() error = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "auth.jwt_secret") {
		t.Errorf("error = %v, want mention of auth.jwt_secret", err)
	}
}

func TestLoad_DefaultDurations(t *testing.T) {
	configContent := strings.Replace(validConfig, `  ping_timeout: "2s"`+"\n", "", 1)
	configContent = strings.Replace(configContent, `  dedupe_ttl: "10m"`+"\n", "", 1)

	cfg, err := Load(writeConfig(t, configContent))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Skills.PingTimeout != 5*time.Second {
		t.Errorf("Skills.PingTimeout = %v, want default %v", cfg.Skills.PingTimeout, 5*time.Second)
	}
	if cfg.Routing.DedupeTTL != 5*time.Minute {
		t.Errorf("Routing.DedupeTTL = %v, want default %v", cfg.Routing.DedupeTTL, 5*time.Minute)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configContent := strings.Replace(validConfig, `ping_timeout: "2s"`, `ping_timeout: "not-a-duration"`, 1)
	_, err := Load(writeConfig(t, configContent))
	if err == nil {
		t.Fatal("Load() error = nil, want duration parse error")
	}
	if !strings.Contains(err.Error(), "ping_timeout") {
		t.Errorf("error = %v, want mention of ping_timeout", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want read error")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unbalanced"))
	if err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = "" },
			wantErr: "auth.jwt_secret",
		},
		{
			name:    "missing app id",
			mutate:  func(c *Config) { c.Auth.AppID = "" },
			wantErr: "auth.app_id",
		},
		{
			name:    "missing host endpoint",
			mutate:  func(c *Config) { c.Skills.HostEndpoint = "" },
			wantErr: "skills.host_endpoint",
		},
		{
			name:    "no skills",
			mutate:  func(c *Config) { c.Skills.Entries = nil },
			wantErr: "skills.entries",
		},
		{
			name: "skill missing app id",
			mutate: func(c *Config) {
				c.Skills.Entries = []SkillEntry{{ID: "echo", Endpoint: "http://e"}}
			},
			wantErr: "app_id",
		},
		{
			name: "duplicate skill id",
			mutate: func(c *Config) {
				c.Skills.Entries = append(c.Skills.Entries, c.Skills.Entries[0])
			},
			wantErr: "duplicate",
		},
		{
			name:    "default skill not registered",
			mutate:  func(c *Config) { c.Routing.DefaultSkill = "NoSuchSkill" },
			wantErr: "default_skill",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
