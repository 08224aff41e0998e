// ABOUTME: Minimal echo skill for exercising the gateway end to end.
// ABOUTME: Receives forwarded activities over HTTP and replies via the gateway's callback endpoint.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/2389/skill-gateway/internal/activity"
	"github.com/2389/skill-gateway/internal/auth"
)

// skillConfig is the echo skill's TOML configuration.
type skillConfig struct {
	Addr         string `toml:"addr"`
	AppID        string `toml:"app_id"`
	GatewayAppID string `toml:"gateway_app_id"`
	JWTSecret    string `toml:"jwt_secret"`
}

func loadConfig(path string) (*skillConfig, error) {
	cfg := &skillConfig{
		Addr:  "127.0.0.1:8081",
		AppID: "echo-skill",
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("SKILL_JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required (config or SKILL_JWT_SECRET)")
	}
	if cfg.GatewayAppID == "" {
		return nil, fmt.Errorf("gateway_app_id is required")
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *skillConfig, logger *slog.Logger) error {
	s := &skillServer{
		cfg:    cfg,
		tokens: auth.NewJWTProvider([]byte(cfg.JWTSecret)),
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With("component", "echo-skill"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages", s.handleActivity)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("echo skill listening", "addr", cfg.Addr, "app_id", cfg.AppID)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type skillServer struct {
	cfg    *skillConfig
	tokens *auth.JWTProvider
	client *http.Client
	logger *slog.Logger
}

// handleActivity accepts a forwarded activity and processes it after
// acknowledging, so the gateway's forward never blocks on our reply.
func (s *skillServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if _, err := s.tokens.Verify(token, s.cfg.AppID); err != nil {
		s.logger.Warn("rejected activity", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var act activity.Activity
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	go s.process(&act)
}

// process echoes messages back through the callback endpoint. Saying "end"
// (or receiving endOfConversation from the gateway) finishes the delegation.
func (s *skillServer) process(act *activity.Activity) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch act.Type {
	case activity.TypeEndOfConversation:
		// The gateway ended the delegation (for example after a root-side
		// error). Nothing to release beyond logging.
		s.logger.Info("conversation ended by gateway",
			"skill_conversation_id", act.ConversationID,
			"code", act.Code)

	case activity.TypeMessage:
		text := strings.TrimSpace(strings.ToLower(act.Text))
		if text == "end" || text == "stop" || text == "bye" {
			eoc := activity.NewEndOfConversation(act.ConversationID, activity.CodeCompletedSuccessfully)
			eoc.Text = "done"
			s.reply(ctx, act, eoc)
			return
		}

		echo := activity.NewMessage(act.ConversationID, "Echo: "+act.Text)
		s.reply(ctx, act, echo)
	}
}

// reply posts an activity to the gateway's skill callback endpoint.
func (s *skillServer) reply(ctx context.Context, inbound, out *activity.Activity) {
	if inbound.ServiceURL == "" {
		s.logger.Error("no service URL on inbound activity, cannot reply")
		return
	}

	payload, err := json.Marshal(out)
	if err != nil {
		s.logger.Error("encoding reply", "error", err)
		return
	}

	token, err := s.tokens.Token(s.cfg.AppID, s.cfg.GatewayAppID)
	if err != nil {
		s.logger.Error("minting reply token", "error", err)
		return
	}

	url := fmt.Sprintf("%s/api/skills/v3/conversations/%s/activities",
		strings.TrimSuffix(inbound.ServiceURL, "/"), inbound.ConversationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("building reply request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("posting reply", "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Error("reply rejected", "status", resp.StatusCode, "url", url)
	}
}
