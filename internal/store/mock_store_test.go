// ABOUTME: Tests for the in-memory mock store used by unit tests elsewhere.
// ABOUTME: Verifies it honors the same contract as the SQLite implementation.

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_StateRoundtrip(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	_, err := m.GetState(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SetState(ctx, "conv-1", []byte(`{"a":1}`)))

	data, err := m.GetState(ctx, "conv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	require.NoError(t, m.DeleteState(ctx, "conv-1"))
	_, err = m.GetState(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_Mappings(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	mapping := &Mapping{
		SkillConversationID: "sc-1",
		ConversationID:      "conv-1",
		ChannelID:           "webchat",
		SkillID:             "echo",
		CreatedAt:           time.Now().UTC(),
	}
	require.NoError(t, m.CreateMapping(ctx, mapping))
	assert.ErrorIs(t, m.CreateMapping(ctx, mapping), ErrDuplicateMapping)

	got, err := m.GetMapping(ctx, "sc-1")
	require.NoError(t, err)
	assert.Equal(t, "echo", got.SkillID)

	require.NoError(t, m.DeleteMappingsForConversation(ctx, "conv-1"))
	_, err = m.GetMapping(ctx, "sc-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_FaultInjection(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	boom := errors.New("boom")
	m.FailSetState = boom

	err := m.SetState(ctx, "conv-1", []byte(`{}`))
	assert.ErrorIs(t, err, boom)
}
