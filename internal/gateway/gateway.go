// ABOUTME: Gateway orchestrator wiring the HTTP surface to the routing core.
// ABOUTME: Owns the store, registry, router, broadcaster, and server lifecycle.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/2389/skill-gateway/internal/activity"
	"github.com/2389/skill-gateway/internal/auth"
	"github.com/2389/skill-gateway/internal/config"
	"github.com/2389/skill-gateway/internal/conversation"
	"github.com/2389/skill-gateway/internal/dedupe"
	"github.com/2389/skill-gateway/internal/router"
	"github.com/2389/skill-gateway/internal/skill"
	"github.com/2389/skill-gateway/internal/store"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// dedupeMaxSize caps the replay cache. Ids are small; this covers hours of
// traffic at typical chat volumes.
const dedupeMaxSize = 10000

// Gateway orchestrates the skill-gateway server components: the inbound
// activity endpoint, the skill callback endpoint, and the user-facing event
// stream.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *skill.Registry
	states      *conversation.Manager
	mapper      *conversation.Mapper
	broadcaster *conversation.Broadcaster
	forwarder   *skill.Forwarder
	turnRouter  *router.TurnRouter
	verifier    auth.TokenVerifier
	dedupe      *dedupe.Cache
	httpServer  *http.Server
	logger      *slog.Logger

	// turnLocks serializes turns within one conversation. Turns for
	// different conversations run fully in parallel.
	turnLocks sync.Map // conversationID -> *sync.Mutex
}

// New builds a gateway from configuration. Any registry or config problem is
// fatal here, at startup — never a per-turn condition.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	skills := make([]*skill.Skill, 0, len(cfg.Skills.Entries))
	for _, entry := range cfg.Skills.Entries {
		skills = append(skills, &skill.Skill{
			ID:       entry.ID,
			AppID:    entry.AppID,
			Endpoint: entry.Endpoint,
		})
	}
	registry, err := skill.NewRegistry(cfg.Skills.HostEndpoint, skills...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("building skill registry: %w", err)
	}

	tokens := auth.NewJWTProvider([]byte(cfg.Auth.JWTSecret))
	forwarder := skill.NewForwarder(nil, tokens, logger)
	states := conversation.NewManager(st, logger)
	mapper := conversation.NewMapper(st, logger)
	broadcaster := conversation.NewBroadcaster(logger)

	defaultSkill := cfg.Routing.DefaultSkill
	if defaultSkill == "" && len(skills) > 0 {
		defaultSkill = skills[0].ID
	}
	trigger := cfg.Routing.TriggerWord
	if trigger == "" {
		trigger = "skill"
	}
	policy := &router.TriggerWordPolicy{Trigger: trigger, SkillID: defaultSkill}

	g := &Gateway{
		config:      cfg,
		store:       st,
		registry:    registry,
		states:      states,
		mapper:      mapper,
		broadcaster: broadcaster,
		forwarder:   forwarder,
		verifier:    tokens,
		dedupe:      dedupe.New(cfg.Routing.DedupeTTL, dedupeMaxSize),
		logger:      logger.With("component", "gateway"),
	}

	g.turnRouter = router.New(
		cfg.Auth.AppID,
		states,
		mapper,
		registry,
		forwarder,
		&broadcastResponder{broadcaster: broadcaster, logger: logger},
		policy,
		logger,
	)

	return g, nil
}

// Router exposes the turn router, mainly for tests and embedding.
func (g *Gateway) Router() *router.TurnRouter {
	return g.turnRouter
}

// routes builds the HTTP mux for the gateway surface.
func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages", g.handleInboundActivity)
	mux.HandleFunc("/api/skills/v3/conversations/", g.handleSkillCallback)
	mux.HandleFunc("/api/conversations/", g.handleConversationEvents)
	mux.HandleFunc("/healthz", g.handleHealth)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.httpServer = &http.Server{
		Addr:    g.config.Server.HTTPAddr,
		Handler: g.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", g.config.Server.HTTPAddr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutdown signal received")
		return g.Shutdown()
	case err := <-errCh:
		g.Shutdown()
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// Shutdown stops the server and releases all resources.
func (g *Gateway) Shutdown() error {
	var firstErr error

	if g.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := g.httpServer.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("stopping HTTP server: %w", err)
		}
	}

	g.broadcaster.Close()
	g.dedupe.Close()

	if err := g.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	g.logger.Info("gateway stopped")
	return firstErr
}

// handleHealth responds to liveness probes.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// lockConversation returns the mutex serializing turns for one conversation.
func (g *Gateway) lockConversation(conversationID string) *sync.Mutex {
	mu, _ := g.turnLocks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// broadcastResponder delivers router output to the user's event stream.
// Trace activities carry raw error detail and are operator-facing only, so
// they are logged rather than published.
type broadcastResponder struct {
	broadcaster *conversation.Broadcaster
	logger      *slog.Logger
}

func (r *broadcastResponder) SendActivity(ctx context.Context, act *activity.Activity) error {
	if act.Type == activity.TypeTrace {
		r.logger.Warn("trace activity",
			"conversation_id", act.ConversationID,
			"label", act.Text,
			"detail", string(act.Value))
		return nil
	}
	r.broadcaster.Publish(act.ConversationID, act)
	return nil
}
