// Package config handles configuration loading for skill-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from SKILL_GATEWAY_CONFIG environment variable
//  2. ~/.config/skill-gateway/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${GATEWAY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	skills:
//	  ping_timeout: "5s"
//	routing:
//	  dedupe_ttl: "5m"
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/skill-gateway/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${GATEWAY_JWT_SECRET}"
//	  app_id: "app-root"
//
// Skill catalog:
//
//	skills:
//	  host_endpoint: "http://gateway.local:8080"
//	  entries:
//	    - id: "EchoSkillBot"
//	      app_id: "app-echo"
//	      endpoint: "http://echo.local:8081"
//
// Routing policy:
//
//	routing:
//	  default_skill: "EchoSkillBot"
//	  trigger_word: "skill"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() rejects missing required fields, duplicate or incomplete skill
// entries, and a default_skill that is not in the catalog. Validation errors
// name the offending field. A bad config is fatal at startup, never a
// per-turn condition.
package config
