package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tessellate-ai/loom/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InsertAndReadTurns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1, ts1, err := s.InsertTurn(ctx, "first question", "first answer", "s1", map[string]string{"source": "cli"})
	if err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}
	id2, _, err := s.InsertTurn(ctx, "second question", "second answer", "s1", nil)
	if err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("expected increasing ids, got %d then %d", id1, id2)
	}

	turns, err := s.TurnsForSession(ctx, "s1", memory.Chronological, 0)
	if err != nil {
		t.Fatalf("TurnsForSession: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].UserMessage != "first question" || turns[1].UserMessage != "second question" {
		t.Errorf("chronological order wrong: %q, %q", turns[0].UserMessage, turns[1].UserMessage)
	}
	if turns[0].Metadata["source"] != "cli" {
		t.Errorf("metadata not round-tripped: %v", turns[0].Metadata)
	}
	if turns[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be assigned on insert")
	}
	if got := turns[0].Timestamp.UnixNano(); got != ts1.UnixNano() {
		t.Errorf("stored timestamp %d differs from the one returned by insert %d", got, ts1.UnixNano())
	}

	newest, err := s.TurnsForSession(ctx, "s1", memory.NewestFirst, 1)
	if err != nil {
		t.Fatalf("TurnsForSession: %v", err)
	}
	if len(newest) != 1 || newest[0].ID != id2 {
		t.Errorf("expected newest-first limit 1 to return turn %d, got %v", id2, newest)
	}
}

func TestStore_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, _, err := s.InsertTurn(ctx, "alpha", "one", "s1", nil); err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}
	if _, _, err := s.InsertTurn(ctx, "beta", "two", "s2", nil); err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}

	turns, err := s.TurnsForSession(ctx, "s1", memory.Chronological, 0)
	if err != nil {
		t.Fatalf("TurnsForSession: %v", err)
	}
	if len(turns) != 1 || turns[0].UserMessage != "alpha" {
		t.Errorf("expected only s1 turns, got %v", turns)
	}
}

func TestStore_EmptySessionDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, _, err := s.InsertTurn(ctx, "hi", "hello", "", nil); err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}
	turns, err := s.TurnsForSession(ctx, memory.DefaultSession, memory.Chronological, 0)
	if err != nil {
		t.Fatalf("TurnsForSession: %v", err)
	}
	if len(turns) != 1 {
		t.Errorf("expected turn under the default session, got %d", len(turns))
	}
}

func TestStore_Retention(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	oldID, _, err := s.InsertTurn(ctx, "old", "old answer", "s1", nil)
	if err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}
	if _, _, err := s.InsertTurn(ctx, "new", "new answer", "s1", nil); err != nil {
		t.Fatalf("InsertTurn: %v", err)
	}

	// Backdate the first row past the cutoff.
	backdated := time.Now().AddDate(0, 0, -40).UnixNano()
	if _, err := s.db.ExecContext(ctx, `UPDATE conversations SET timestamp = ? WHERE id = ?`, backdated, oldID); err != nil {
		t.Fatalf("backdate row: %v", err)
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	ids, err := s.TurnIDsOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("TurnIDsOlderThan: %v", err)
	}
	if len(ids) != 1 || ids[0] != oldID {
		t.Fatalf("expected only the backdated turn, got %v", ids)
	}

	n, err := s.DeleteTurnsOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteTurnsOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deletion, got %d", n)
	}

	turns, err := s.TurnsForSession(ctx, "s1", memory.Chronological, 0)
	if err != nil {
		t.Fatalf("TurnsForSession: %v", err)
	}
	if len(turns) != 1 || turns[0].UserMessage != "new" {
		t.Errorf("expected only the recent turn to survive, got %v", turns)
	}

	// A second sweep finds nothing.
	n, err = s.DeleteTurnsOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteTurnsOlderThan: %v", err)
	}
	if n != 0 {
		t.Errorf("expected idempotent sweep, got %d deletions", n)
	}
}

func TestStore_Preferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, found, err := s.GetPreference(ctx, "language"); err != nil || found {
		t.Fatalf("expected absent key, got found=%v err=%v", found, err)
	}

	if err := s.UpsertPreference(ctx, "language", "en"); err != nil {
		t.Fatalf("UpsertPreference: %v", err)
	}
	value, found, err := s.GetPreference(ctx, "language")
	if err != nil || !found || value != "en" {
		t.Fatalf("expected en/found, got %q found=%v err=%v", value, found, err)
	}

	if err := s.UpsertPreference(ctx, "language", "de"); err != nil {
		t.Fatalf("UpsertPreference: %v", err)
	}
	value, _, err = s.GetPreference(ctx, "language")
	if err != nil || value != "de" {
		t.Fatalf("expected replaced value de, got %q err=%v", value, err)
	}
}

func TestStore_WALMode(t *testing.T) {
	s := newTestStore(t)

	var mode string
	if err := s.db.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := s.db.QueryRow(`PRAGMA busy_timeout`).Scan(&timeout); err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if timeout <= 0 {
		t.Errorf("busy_timeout = %d, want > 0", timeout)
	}
}

func TestStore_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const sessions = 8
	const turnsPerSession = 25

	var wg sync.WaitGroup
	errs := make(chan error, sessions*turnsPerSession)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sid := fmt.Sprintf("session-%d", n)
			for j := 0; j < turnsPerSession; j++ {
				if _, _, err := s.InsertTurn(ctx, fmt.Sprintf("q%d", j), fmt.Sprintf("a%d", j), sid, nil); err != nil {
					errs <- err
					return
				}
				if _, err := s.TurnsForSession(ctx, sid, memory.Chronological, 0); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent store operation failed: %v", err)
	}

	for i := 0; i < sessions; i++ {
		sid := fmt.Sprintf("session-%d", i)
		turns, err := s.TurnsForSession(ctx, sid, memory.Chronological, 0)
		if err != nil {
			t.Fatalf("TurnsForSession(%s): %v", sid, err)
		}
		if len(turns) != turnsPerSession {
			t.Errorf("session %s has %d turns, want %d", sid, len(turns), turnsPerSession)
		}
	}
}

func TestStore_Ping(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
