// ABOUTME: Bijection between (root conversation, skill) pairs and opaque skill-facing conversation ids.
// ABOUTME: Backed by the mapping store so callbacks resolve across restarts.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/skill-gateway/internal/store"
)

// ErrUnknownMapping indicates a skill conversation id that was never issued
// or has been invalidated. Callers must treat this as a hard rejection —
// a stale or forged id is never mapped to some other conversation.
var ErrUnknownMapping = errors.New("unknown skill conversation id")

// Reference is the root-side addressing a mapping resolves to.
type Reference struct {
	ConversationID string
	ChannelID      string
	SkillID        string
}

// Mapper issues and resolves skill conversation ids. Ids are v4 UUIDs:
// unguessable, and fresh for every new delegation so an id is never rebound
// to a different (conversation, skill) pair.
type Mapper struct {
	store  store.MappingStore
	logger *slog.Logger
}

// NewMapper creates a mapper over the given mapping store.
func NewMapper(st store.MappingStore, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		store:  st,
		logger: logger.With("component", "mapper"),
	}
}

// CreateMapping allocates a new opaque skill conversation id for the given
// root conversation and skill, and records the association.
func (m *Mapper) CreateMapping(ctx context.Context, ref Reference) (string, error) {
	id := uuid.New().String()

	err := m.store.CreateMapping(ctx, &store.Mapping{
		SkillConversationID: id,
		ConversationID:      ref.ConversationID,
		ChannelID:           ref.ChannelID,
		SkillID:             ref.SkillID,
		CreatedAt:           time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("recording mapping: %w", err)
	}

	m.logger.Debug("mapping issued",
		"skill_conversation_id", id,
		"conversation_id", ref.ConversationID,
		"skill_id", ref.SkillID)
	return id, nil
}

// Resolve recovers the root conversation a skill conversation id belongs to.
// Returns ErrUnknownMapping for ids that were never issued or are no longer
// live.
func (m *Mapper) Resolve(ctx context.Context, skillConversationID string) (Reference, error) {
	mapping, err := m.store.GetMapping(ctx, skillConversationID)
	if errors.Is(err, store.ErrNotFound) {
		return Reference{}, fmt.Errorf("%w: %s", ErrUnknownMapping, skillConversationID)
	}
	if err != nil {
		return Reference{}, fmt.Errorf("resolving mapping: %w", err)
	}

	return Reference{
		ConversationID: mapping.ConversationID,
		ChannelID:      mapping.ChannelID,
		SkillID:        mapping.SkillID,
	}, nil
}

// Invalidate destroys a single mapping when its delegation ends. A later
// delegation for the same pair gets a freshly distinct id.
func (m *Mapper) Invalidate(ctx context.Context, skillConversationID string) error {
	if err := m.store.DeleteMapping(ctx, skillConversationID); err != nil {
		return fmt.Errorf("invalidating mapping: %w", err)
	}
	return nil
}

// InvalidateConversation destroys every mapping for a root conversation.
// Used by error recovery alongside the state wipe.
func (m *Mapper) InvalidateConversation(ctx context.Context, conversationID string) error {
	if err := m.store.DeleteMappingsForConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("invalidating conversation mappings: %w", err)
	}
	return nil
}
