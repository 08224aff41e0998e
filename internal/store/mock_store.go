// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite, with optional fault injection

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
// The Fail* fields inject errors into the corresponding operations so tests
// can exercise persistence-failure paths.
type MockStore struct {
	mu       sync.RWMutex
	state    map[string][]byte   // keyed by conversation ID
	mappings map[string]*Mapping // keyed by skill conversation ID

	FailGetState  error
	FailSetState  error
	FailDelete    error
	FailCreateMap error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		state:    make(map[string][]byte),
		mappings: make(map[string]*Mapping),
	}
}

// GetState retrieves the state blob for a conversation.
func (m *MockStore) GetState(ctx context.Context, conversationID string) ([]byte, error) {
	if m.FailGetState != nil {
		return nil, m.FailGetState
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.state[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	// Make a copy to avoid external modification
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// SetState stores the state blob for a conversation.
func (m *MockStore) SetState(ctx context.Context, conversationID string, data []byte) error {
	if m.FailSetState != nil {
		return m.FailSetState
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.state[conversationID] = stored
	return nil
}

// DeleteState removes the state blob for a conversation.
func (m *MockStore) DeleteState(ctx context.Context, conversationID string) error {
	if m.FailDelete != nil {
		return m.FailDelete
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.state, conversationID)
	return nil
}

// CreateMapping stores a new skill conversation mapping.
func (m *MockStore) CreateMapping(ctx context.Context, mapping *Mapping) error {
	if m.FailCreateMap != nil {
		return m.FailCreateMap
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.mappings[mapping.SkillConversationID]; exists {
		return ErrDuplicateMapping
	}

	stored := *mapping
	m.mappings[mapping.SkillConversationID] = &stored
	return nil
}

// GetMapping retrieves a mapping by skill conversation ID.
func (m *MockStore) GetMapping(ctx context.Context, skillConversationID string) (*Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapping, ok := m.mappings[skillConversationID]
	if !ok {
		return nil, ErrNotFound
	}

	out := *mapping
	return &out, nil
}

// DeleteMapping removes a mapping by skill conversation ID.
func (m *MockStore) DeleteMapping(ctx context.Context, skillConversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.mappings, skillConversationID)
	return nil
}

// DeleteMappingsForConversation removes every mapping for a root conversation.
func (m *MockStore) DeleteMappingsForConversation(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, mapping := range m.mappings {
		if mapping.ConversationID == conversationID {
			delete(m.mappings, id)
		}
	}
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
