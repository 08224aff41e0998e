// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// Two narrow interfaces cover the gateway's persistence needs:
//
//   - StateStore: per-conversation state blobs, keyed by conversation id
//   - MappingStore: skill conversation id mappings
//
// Store combines both. SQLiteStore implements everything in one struct;
// MockStore is the in-memory equivalent for tests, with fault injection
// hooks for exercising persistence-failure paths.
//
// # Data Models
//
//   - State blob: opaque JSON, written whole on every save. The gateway's
//     state layer owns its shape; the store never looks inside.
//   - Mapping: skill conversation id -> (conversation id, channel id,
//     skill id), immutable once created, deleted on invalidation.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on open.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrDuplicateMapping: Mapping id already issued
//
// All methods accept context.Context for cancellation support.
package store
