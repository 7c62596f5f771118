package memory

import (
	"context"
	"time"

	"github.com/tessellate-ai/loom/core"
)

// Order selects the sort direction for session history reads.
type Order int

const (
	// Chronological returns turns oldest first.
	Chronological Order = iota
	// NewestFirst returns turns most recent first.
	NewestFirst
)

// Store is the structured storage backend: a durable, queryable record of
// conversation turns and user preferences.
//
// Implementations must tolerate concurrent readers and writers from
// independent sessions. Isolation between sessions is logical, via the
// session id; per-session write serialization is the caller's job.
type Store interface {
	// InsertTurn persists a new turn, assigning and returning its ID and
	// Timestamp so derived records carry the same timestamp as the row.
	// A write failure must propagate: silently losing a turn would
	// corrupt the history's completeness.
	InsertTurn(ctx context.Context, userMessage, assistantResponse, sessionID string, metadata map[string]string) (int64, time.Time, error)

	// TurnsForSession returns all turns for a session in the given order,
	// optionally capped at limit (0 = no cap).
	TurnsForSession(ctx context.Context, sessionID string, order Order, limit int) ([]core.Turn, error)

	// TurnIDsOlderThan returns the ids of turns strictly older than cutoff.
	TurnIDsOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error)

	// DeleteTurnsOlderThan removes turns strictly older than cutoff and
	// returns the number removed. Zero matches is not an error.
	DeleteTurnsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// UpsertPreference writes a preference, replacing any existing value
	// and its timestamp.
	UpsertPreference(ctx context.Context, key, value string) error

	// GetPreference reads a preference. The second return is false when
	// the key is absent.
	GetPreference(ctx context.Context, key string) (string, bool, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Hit is one semantic-index match.
type Hit struct {
	TurnID     int64
	Content    string
	Similarity float64
	SessionID  string
	Timestamp  time.Time
}

// Index is the similarity-searchable view over turn content. Each record
// is derived 1:1 from a stored turn; its identifier is a pure function of
// the turn id, so deletions can target it without a mapping table.
type Index interface {
	// Add indexes one turn's combined text under its embedding. The
	// caller embeds; the index only stores and searches.
	Add(ctx context.Context, turnID int64, content, sessionID string, timestamp time.Time, embedding []float32) error

	// Query returns up to limit records ordered by descending similarity.
	// Similarity is 1 - distance under the cosine metric; thresholds are
	// the caller's concern.
	Query(ctx context.Context, embedding []float32, limit int) ([]Hit, error)

	// Delete removes the records derived from the given turn ids.
	// Missing records are not an error.
	Delete(ctx context.Context, turnIDs []int64) error

	// Count reports the number of indexed records.
	Count() int
}

// Embedder converts text to vector embeddings for the semantic index.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
