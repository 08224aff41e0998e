// Package conversation provides per-conversation state, skill conversation id
// mapping, and outbound event fanout.
//
// # State
//
// Each root conversation has a persisted property bag managed by Manager.
// Two properties drive routing: activeSkill and skillConversationId. Both set
// means the conversation is delegating to a skill; both empty means it is
// idle. SaveChanges refuses to persist a state where only one is set.
//
// Writes are skipped when nothing changed unless the caller forces them.
// Delegation boundaries always force: the persisted record must reflect the
// delegation before any outbound skill call, because the skill may call back
// before that call returns.
//
// # Id Mapping
//
// Skills never see root conversation ids. Mapper issues an opaque id per
// delegation and persists the association; callbacks resolve through it, and
// an id that was never issued (or was invalidated) is rejected with
// ErrUnknownMapping rather than guessed at.
//
// # Broadcasting
//
// Broadcaster fans activities out to per-conversation subscribers, feeding
// the SSE event stream. Publishing never blocks: a subscriber that stops
// draining loses events rather than stalling the turn.
package conversation
