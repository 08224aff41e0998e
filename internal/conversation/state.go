// ABOUTME: Per-conversation state manager over the keyed store contract.
// ABOUTME: Property-bag access with dirty tracking and force-save semantics for delegation boundaries.

package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/skill-gateway/internal/store"
)

// Property keys for the delegation record. Invariant: KeyActiveSkill is set
// if and only if KeySkillConversationID is set. Neither set means the
// conversation is in the Idle routing state.
const (
	KeyActiveSkill         = "activeSkill"
	KeySkillConversationID = "skillConversationId"
)

// ErrInconsistentDelegation indicates a delegation record with exactly one of
// the two fields set. Such a record must never be persisted.
var ErrInconsistentDelegation = errors.New("delegation state inconsistent: activeSkill and skillConversationId must be set together")

// State is the in-memory property bag for one conversation. It tracks
// whether any property changed since load so unchanged state can skip the
// write unless the caller forces one.
type State struct {
	conversationID string
	props          map[string]json.RawMessage
	dirty          bool
}

// ConversationID returns the root conversation this state belongs to.
func (s *State) ConversationID() string {
	return s.conversationID
}

// GetString returns the string property under key, or "" if absent.
func (s *State) GetString(key string) string {
	raw, ok := s.props[key]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

// SetString stores a string property and marks the state dirty.
func (s *State) SetString(key, value string) {
	raw, _ := json.Marshal(value)
	s.props[key] = raw
	s.dirty = true
}

// Clear removes a property. Clearing an absent key still marks the state
// dirty so the removal is persisted.
func (s *State) Clear(key string) {
	delete(s.props, key)
	s.dirty = true
}

// ActiveSkill returns the id of the skill this conversation is delegating
// to, or "" when idle.
func (s *State) ActiveSkill() string {
	return s.GetString(KeyActiveSkill)
}

// SkillConversationID returns the skill-facing conversation id for the
// active delegation, or "" when idle.
func (s *State) SkillConversationID() string {
	return s.GetString(KeySkillConversationID)
}

// Delegating reports whether the conversation has an active skill.
func (s *State) Delegating() bool {
	return s.ActiveSkill() != "" && s.SkillConversationID() != ""
}

// checkDelegationInvariant rejects a record with exactly one delegation
// field set.
func (s *State) checkDelegationInvariant() error {
	active := s.ActiveSkill() != ""
	mapped := s.SkillConversationID() != ""
	if active != mapped {
		return ErrInconsistentDelegation
	}
	return nil
}

// Manager loads and saves conversation state through the backing store.
type Manager struct {
	store  store.StateStore
	logger *slog.Logger
}

// NewManager creates a state manager. Pass nil logger for default.
func NewManager(st store.StateStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  st,
		logger: logger.With("component", "state"),
	}
}

// Load reads the conversation's persisted state, returning an empty clean
// state when none exists yet.
func (m *Manager) Load(ctx context.Context, conversationID string) (*State, error) {
	s := &State{
		conversationID: conversationID,
		props:          make(map[string]json.RawMessage),
	}

	data, err := m.store.GetState(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation state: %w", err)
	}

	if err := json.Unmarshal(data, &s.props); err != nil {
		return nil, fmt.Errorf("decoding conversation state: %w", err)
	}
	return s, nil
}

// SaveChanges persists the state. When force is false the write is skipped
// if nothing changed since load; force=true writes unconditionally, which
// callers use at every delegation boundary so a skill callback racing the
// outbound forward always observes the activation.
func (m *Manager) SaveChanges(ctx context.Context, s *State, force bool) error {
	if !s.dirty && !force {
		return nil
	}

	if err := s.checkDelegationInvariant(); err != nil {
		return err
	}

	data, err := json.Marshal(s.props)
	if err != nil {
		return fmt.Errorf("encoding conversation state: %w", err)
	}

	if err := m.store.SetState(ctx, s.conversationID, data); err != nil {
		return fmt.Errorf("persisting conversation state: %w", err)
	}

	s.dirty = false
	m.logger.Debug("state saved",
		"conversation_id", s.conversationID,
		"forced", force)
	return nil
}

// Delete removes all persisted state for a conversation, returning it to the
// Idle baseline.
func (m *Manager) Delete(ctx context.Context, conversationID string) error {
	if err := m.store.DeleteState(ctx, conversationID); err != nil {
		return fmt.Errorf("deleting conversation state: %w", err)
	}
	m.logger.Debug("state deleted", "conversation_id", conversationID)
	return nil
}
