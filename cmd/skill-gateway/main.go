// ABOUTME: Entry point for the skill-gateway routing server.
// ABOUTME: Routes user conversations to remote skills and manages delegation state.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/skill-gateway/internal/auth"
	"github.com/2389/skill-gateway/internal/config"
	"github.com/2389/skill-gateway/internal/gateway"
	"github.com/2389/skill-gateway/internal/skill"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _    _ _ _                  _
  ___| | _(_) | |  __ _  __ _  __| |_ ___      ____ _ _   _
 / __| |/ / | | | / _' |/ _' |/ _' | '_ \ \ /\ / / _' | | | |
 \__ \   <| | | || (_| | (_| | (_| | |_| \ V  V / (_| | |_| |
 |___/_|\_\_|_|_| \__, |\__,_|\__,_|\___/ \_/\_/ \__,_|\__, |
                  |___/                                |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: SKILL_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/skill-gateway/gateway.yaml > ~/.config/skill-gateway/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SKILL_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "skill-gateway", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: skill-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server")
		fmt.Println("  health    Check gateway health")
		fmt.Println("  skills    List registered skills and ping their endpoints")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "skills":
		err = runSkills(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	color.Cyan(banner)
	logger.Info("starting skill-gateway",
		"version", version,
		"http_addr", cfg.Server.HTTPAddr,
		"skills", len(cfg.Skills.Entries))

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return err
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}

	url := "http://" + dialableAddr(cfg.Server.HTTPAddr) + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		color.Red("gateway unreachable: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		color.Red("gateway unhealthy: status %d", resp.StatusCode)
		os.Exit(1)
	}

	color.Green("gateway healthy")
	return nil
}

func runSkills(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return err
	}

	skills := make([]*skill.Skill, 0, len(cfg.Skills.Entries))
	for _, entry := range cfg.Skills.Entries {
		skills = append(skills, &skill.Skill{ID: entry.ID, AppID: entry.AppID, Endpoint: entry.Endpoint})
	}
	registry, err := skill.NewRegistry(cfg.Skills.HostEndpoint, skills...)
	if err != nil {
		return err
	}

	tokens := auth.NewJWTProvider([]byte(cfg.Auth.JWTSecret))
	forwarder := skill.NewForwarder(&http.Client{Timeout: cfg.Skills.PingTimeout}, tokens, slog.Default())

	for _, sk := range registry.List() {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Skills.PingTimeout)
		err := forwarder.Ping(pingCtx, sk)
		cancel()

		if err != nil {
			color.Red("  %-20s %s  unreachable (%v)", sk.ID, sk.Endpoint, err)
		} else {
			color.Green("  %-20s %s  ok", sk.ID, sk.Endpoint)
		}
	}
	return nil
}

// dialableAddr turns a listen address into something a client can dial.
func dialableAddr(addr string) string {
	if strings.HasPrefix(addr, "0.0.0.0") || strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr[strings.Index(addr, ":"):]
	}
	return addr
}

// setupLogger builds the process logger from config: JSON for machines,
// text for humans.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
