// ABOUTME: Store interfaces and data types for skill-gateway persistence.
// ABOUTME: Conversation state is opaque keyed bytes; mappings link skill conversation ids to root conversations.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateMapping is returned when a skill conversation id collides with
// a live mapping. With v4 UUIDs this indicates a caller bug, not bad luck.
var ErrDuplicateMapping = errors.New("mapping already exists")

// Mapping associates a skill-facing conversation id with the root
// conversation it belongs to. Created when a delegation starts, deleted when
// the delegation ends. A skill conversation id is never rebound to a
// different (conversation, skill) pair while the mapping is alive.
type Mapping struct {
	SkillConversationID string
	ConversationID      string
	ChannelID           string
	SkillID             string
	CreatedAt           time.Time
}

// StateStore is the durable keyed persistence for per-conversation state.
// Values are opaque to the store; layout belongs to the conversation layer.
type StateStore interface {
	GetState(ctx context.Context, conversationID string) ([]byte, error)
	SetState(ctx context.Context, conversationID string, data []byte) error
	DeleteState(ctx context.Context, conversationID string) error
}

// MappingStore persists skill conversation id mappings so callbacks can be
// resolved across process restarts.
type MappingStore interface {
	CreateMapping(ctx context.Context, m *Mapping) error
	GetMapping(ctx context.Context, skillConversationID string) (*Mapping, error)
	DeleteMapping(ctx context.Context, skillConversationID string) error
	DeleteMappingsForConversation(ctx context.Context, conversationID string) error
}

// Store combines both persistence concerns behind one backend.
type Store interface {
	StateStore
	MappingStore
	Close() error
}
