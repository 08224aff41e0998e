// ABOUTME: Tests for the conversation state manager.
// ABOUTME: Covers property persistence, dirty tracking, force saves, and the delegation invariant.

package conversation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/skill-gateway/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_LoadEmpty(t *testing.T) {
	mgr := NewManager(store.NewMockStore(), testLogger())
	ctx := context.Background()

	st, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", st.ConversationID())
	assert.False(t, st.Delegating())
	assert.Empty(t, st.ActiveSkill())
	assert.Empty(t, st.SkillConversationID())
}

func TestManager_SaveAndReload(t *testing.T) {
	backing := store.NewMockStore()
	mgr := NewManager(backing, testLogger())
	ctx := context.Background()

	st, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)

	st.SetString(KeyActiveSkill, "EchoSkillBot")
	st.SetString(KeySkillConversationID, "sc-1")
	require.NoError(t, mgr.SaveChanges(ctx, st, false))

	reloaded, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.True(t, reloaded.Delegating())
	assert.Equal(t, "EchoSkillBot", reloaded.ActiveSkill())
	assert.Equal(t, "sc-1", reloaded.SkillConversationID())
}

func TestManager_CleanStateSkipsWrite(t *testing.T) {
	backing := store.NewMockStore()
	mgr := NewManager(backing, testLogger())
	ctx := context.Background()

	st, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)

	// No changes, no force: nothing should be persisted
	require.NoError(t, mgr.SaveChanges(ctx, st, false))
	_, err = backing.GetState(ctx, "conv-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_ForceWritesUnchangedState(t *testing.T) {
	backing := store.NewMockStore()
	mgr := NewManager(backing, testLogger())
	ctx := context.Background()

	st, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)

	// force=true must write even when nothing changed
	require.NoError(t, mgr.SaveChanges(ctx, st, true))
	_, err = backing.GetState(ctx, "conv-1")
	assert.NoError(t, err)
}

func TestManager_DelegationInvariant(t *testing.T) {
	mgr := NewManager(store.NewMockStore(), testLogger())
	ctx := context.Background()

	st, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)

	// Only one of the two delegation fields set must never be persisted
	st.SetString(KeyActiveSkill, "EchoSkillBot")
	err = mgr.SaveChanges(ctx, st, true)
	assert.ErrorIs(t, err, ErrInconsistentDelegation)

	st.SetString(KeySkillConversationID, "sc-1")
	assert.NoError(t, mgr.SaveChanges(ctx, st, true))
}

func TestManager_ClearPersistsRemoval(t *testing.T) {
	backing := store.NewMockStore()
	mgr := NewManager(backing, testLogger())
	ctx := context.Background()

	st, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)
	st.SetString(KeyActiveSkill, "EchoSkillBot")
	st.SetString(KeySkillConversationID, "sc-1")
	require.NoError(t, mgr.SaveChanges(ctx, st, true))

	st.Clear(KeyActiveSkill)
	st.Clear(KeySkillConversationID)
	require.NoError(t, mgr.SaveChanges(ctx, st, true))

	reloaded, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.False(t, reloaded.Delegating())
}

func TestManager_Delete(t *testing.T) {
	backing := store.NewMockStore()
	mgr := NewManager(backing, testLogger())
	ctx := context.Background()

	st, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)
	st.SetString("greeted", "yes")
	require.NoError(t, mgr.SaveChanges(ctx, st, false))

	require.NoError(t, mgr.Delete(ctx, "conv-1"))

	reloaded, err := mgr.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, reloaded.GetString("greeted"))
}
