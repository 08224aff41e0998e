// Package router contains the per-turn routing core: the Idle/Delegating
// state machine that decides whether a turn is handled locally or forwarded
// to the active skill, and the recovery path that returns a conversation to
// a clean baseline after any turn failure.
package router
