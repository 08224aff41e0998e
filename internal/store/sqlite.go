// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite.
// ABOUTME: Provides conversation state and mapping persistence with automatic schema creation.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversation_state (
			conversation_id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS skill_conversations (
			skill_conversation_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			skill_id TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_skill_conversations_conversation_id
			ON skill_conversations(conversation_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// GetState returns the persisted state blob for a conversation, or
// ErrNotFound if the conversation has no saved state.
func (s *SQLiteStore) GetState(ctx context.Context, conversationID string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM conversation_state WHERE conversation_id = ?",
		conversationID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation state: %w", err)
	}
	return []byte(data), nil
}

// SetState writes the state blob for a conversation. The upsert is a single
// statement, giving per-key atomic read-modify-write semantics.
func (s *SQLiteStore) SetState(ctx context.Context, conversationID string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_state (conversation_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, conversationID, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving conversation state: %w", err)
	}
	return nil
}

// DeleteState removes all persisted state for a conversation. Deleting a
// conversation that has no state is not an error.
func (s *SQLiteStore) DeleteState(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM conversation_state WHERE conversation_id = ?",
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("deleting conversation state: %w", err)
	}
	return nil
}

// CreateMapping inserts a new skill conversation mapping.
func (s *SQLiteStore) CreateMapping(ctx context.Context, m *Mapping) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skill_conversations (skill_conversation_id, conversation_id, channel_id, skill_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, m.SkillConversationID, m.ConversationID, m.ChannelID, m.SkillID, m.CreatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateMapping
		}
		return fmt.Errorf("creating mapping: %w", err)
	}

	s.logger.Debug("mapping created",
		"skill_conversation_id", m.SkillConversationID,
		"conversation_id", m.ConversationID,
		"skill_id", m.SkillID)
	return nil
}

// GetMapping looks up a mapping by its skill conversation id.
func (s *SQLiteStore) GetMapping(ctx context.Context, skillConversationID string) (*Mapping, error) {
	m := &Mapping{}
	err := s.db.QueryRowContext(ctx, `
		SELECT skill_conversation_id, conversation_id, channel_id, skill_id, created_at
		FROM skill_conversations WHERE skill_conversation_id = ?
	`, skillConversationID).Scan(
		&m.SkillConversationID, &m.ConversationID, &m.ChannelID, &m.SkillID, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying mapping: %w", err)
	}
	return m, nil
}

// DeleteMapping invalidates a single mapping.
func (s *SQLiteStore) DeleteMapping(ctx context.Context, skillConversationID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM skill_conversations WHERE skill_conversation_id = ?",
		skillConversationID,
	)
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}
	return nil
}

// DeleteMappingsForConversation invalidates every mapping belonging to a root
// conversation. Used by error recovery when force-clearing a conversation.
func (s *SQLiteStore) DeleteMappingsForConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM skill_conversations WHERE conversation_id = ?",
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("deleting mappings for conversation: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
