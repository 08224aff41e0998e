// ABOUTME: Tests for the skill conversation id mapper.
// ABOUTME: Covers issuance, resolution, unknown-id rejection, and invalidation.

package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/skill-gateway/internal/store"
)

func TestMapper_CreateAndResolve(t *testing.T) {
	mapper := NewMapper(store.NewMockStore(), testLogger())
	ctx := context.Background()

	ref := Reference{ConversationID: "conv-1", ChannelID: "webchat", SkillID: "EchoSkillBot"}
	id, err := mapper.CreateMapping(ctx, ref)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	resolved, err := mapper.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ref, resolved)
}

func TestMapper_FreshIDsPerDelegation(t *testing.T) {
	mapper := NewMapper(store.NewMockStore(), testLogger())
	ctx := context.Background()

	ref := Reference{ConversationID: "conv-1", ChannelID: "webchat", SkillID: "EchoSkillBot"}

	first, err := mapper.CreateMapping(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, mapper.Invalidate(ctx, first))

	// A new delegation for the same pair gets a freshly distinct id
	second, err := mapper.CreateMapping(ctx, ref)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// Distinct pairs never share ids either
	other, err := mapper.CreateMapping(ctx, Reference{ConversationID: "conv-2", ChannelID: "webchat", SkillID: "EchoSkillBot"})
	require.NoError(t, err)
	assert.NotEqual(t, second, other)
}

func TestMapper_Resolve_Unknown(t *testing.T) {
	mapper := NewMapper(store.NewMockStore(), testLogger())
	ctx := context.Background()

	_, err := mapper.Resolve(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrUnknownMapping)
}

func TestMapper_Invalidate(t *testing.T) {
	mapper := NewMapper(store.NewMockStore(), testLogger())
	ctx := context.Background()

	id, err := mapper.CreateMapping(ctx, Reference{ConversationID: "conv-1", ChannelID: "webchat", SkillID: "EchoSkillBot"})
	require.NoError(t, err)

	require.NoError(t, mapper.Invalidate(ctx, id))

	_, err = mapper.Resolve(ctx, id)
	assert.ErrorIs(t, err, ErrUnknownMapping)
}

func TestMapper_InvalidateConversation(t *testing.T) {
	mapper := NewMapper(store.NewMockStore(), testLogger())
	ctx := context.Background()

	id1, err := mapper.CreateMapping(ctx, Reference{ConversationID: "conv-1", ChannelID: "webchat", SkillID: "a"})
	require.NoError(t, err)
	id2, err := mapper.CreateMapping(ctx, Reference{ConversationID: "conv-2", ChannelID: "webchat", SkillID: "a"})
	require.NoError(t, err)

	require.NoError(t, mapper.InvalidateConversation(ctx, "conv-1"))

	_, err = mapper.Resolve(ctx, id1)
	assert.ErrorIs(t, err, ErrUnknownMapping)

	_, err = mapper.Resolve(ctx, id2)
	assert.NoError(t, err)
}
