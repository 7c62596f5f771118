// Package sqlite implements the structured store on an embedded SQLite
// database: one append-only table of conversation turns and one upsert
// table of user preferences.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tessellate-ai/loom/core"
	"github.com/tessellate-ai/loom/memory"
)

// Store implements memory.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ memory.Store = (*Store)(nil)

// New opens (creating if necessary) the database at dbPath.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Pragmas via the driver's _pragma syntax so they apply to every
	// pooled connection: WAL for concurrent readers across sessions, a
	// busy timeout so concurrent writers queue instead of failing.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_message TEXT NOT NULL,
		assistant_response TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);

	CREATE TABLE IF NOT EXISTS user_preferences (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertTurn persists a new turn and returns the assigned id and
// timestamp.
func (s *Store) InsertTurn(ctx context.Context, userMessage, assistantResponse, sessionID string, metadata map[string]string) (int64, time.Time, error) {
	if sessionID == "" {
		sessionID = memory.DefaultSession
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("marshal metadata: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (user_message, assistant_response, timestamp, session_id, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		userMessage, assistantResponse, now.UnixNano(), sessionID, string(metadataJSON),
	)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert turn: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("read inserted id: %w", err)
	}
	return id, now, nil
}

// TurnsForSession returns the session's turns in the requested order.
// The id breaks ties between turns written inside the same instant.
func (s *Store) TurnsForSession(ctx context.Context, sessionID string, order memory.Order, limit int) ([]core.Turn, error) {
	direction := "ASC"
	if order == memory.NewestFirst {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
		SELECT id, user_message, assistant_response, timestamp, session_id, metadata
		FROM conversations
		WHERE session_id = ?
		ORDER BY timestamp %s, id %s`, direction, direction)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var (
			t            core.Turn
			ts           int64
			metadataJSON string
		)
		if err := rows.Scan(&t.ID, &t.UserMessage, &t.AssistantResponse, &ts, &t.SessionID, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Timestamp = time.Unix(0, ts)
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &t.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal turn metadata: %w", err)
			}
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

// TurnIDsOlderThan returns ids of turns strictly older than cutoff.
func (s *Store) TurnIDsOlderThan(ctx context.Context, cutoff time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM conversations WHERE timestamp < ? ORDER BY id`, cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query expired turn ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan turn id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn ids: %w", err)
	}
	return ids, nil
}

// DeleteTurnsOlderThan removes turns strictly older than cutoff.
func (s *Store) DeleteTurnsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE timestamp < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete expired turns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted turns: %w", err)
	}
	return n, nil
}

// UpsertPreference writes a preference, replacing any existing value and
// its timestamp.
func (s *Store) UpsertPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// GetPreference reads a preference; found is false for an absent key.
func (s *Store) GetPreference(ctx context.Context, key string) (value string, found bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_preferences WHERE key = ?`, key)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("scan preference: %w", err)
	}
	return value, true, nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
