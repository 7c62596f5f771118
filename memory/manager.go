package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/tessellate-ai/loom/core"
)

// DefaultSession is the session id used when the caller supplies none.
const DefaultSession = "default"

// NoHistory is returned by Summarize when a session has no stored turns.
const NoHistory = "No conversation history available."

// Config holds Manager tunables.
type Config struct {
	// MaxChars is the context window budget: the sum of user and
	// assistant text lengths included by BuildContext. Characters are a
	// crude token proxy; no tokenizer dependency is introduced.
	MaxChars int

	// MinSimilarity is the minimum similarity for retrieval [0.0-1.0].
	MinSimilarity float64

	// RetrieveLimit caps the number of memories returned per query.
	RetrieveLimit int

	// SummaryTurns is how many recent turns Summarize reads.
	SummaryTurns int

	// SummaryPreview is the per-excerpt character cap in summaries.
	SummaryPreview int
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	MaxChars:       2000,
	MinSimilarity:  0.7,
	RetrieveLimit:  5,
	SummaryTurns:   20,
	SummaryPreview: 100,
}

// Manager is the conversation memory facade. It owns the write path
// (structured store first, then semantic index), bounded context
// assembly, history digests, preferences, and retention sweeps.
type Manager struct {
	store    Store
	index    Index
	embedder Embedder
	config   *Config
	prefs    *ristretto.Cache
	logger   *slog.Logger
}

// Option configures the manager.
type Option func(*Manager)

// WithLogger sets the logger used for degraded-path reporting.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager. A nil config selects DefaultConfig.
func NewManager(store Store, index Index, embedder Embedder, config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = DefaultConfig
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create preference cache: %w", err)
	}

	m := &Manager{
		store:    store,
		index:    index,
		embedder: embedder,
		config:   config,
		prefs:    cache,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// StoreInteraction persists one turn and mirrors it into the semantic
// index. The structured write is fatal on failure; the index write
// degrades with a log entry, matching the read-side retrieval policy.
func (m *Manager) StoreInteraction(ctx context.Context, userMessage, assistantResponse, sessionID string, metadata map[string]string) (int64, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	id, storedAt, err := m.store.InsertTurn(ctx, userMessage, assistantResponse, sessionID, metadata)
	if err != nil {
		return 0, fmt.Errorf("store interaction: %w", err)
	}

	combined := fmt.Sprintf("User: %s\nAssistant: %s", userMessage, assistantResponse)
	embedding, err := m.embedder.Embed(ctx, combined)
	if err != nil {
		m.logger.Warn("embedding failed, turn not indexed", "turn_id", id, "error", err)
		return id, nil
	}
	// The index record carries the row's timestamp, not its own clock.
	if err := m.index.Add(ctx, id, combined, sessionID, storedAt, embedding); err != nil {
		m.logger.Warn("semantic index write failed", "turn_id", id, "error", err)
	}
	return id, nil
}

// RetrieveMemories finds past turns semantically similar to the query,
// ordered by descending similarity, filtered by the configured threshold
// and capped at the configured limit. Any failure degrades to an empty
// result; retrieval never aborts response generation.
func (m *Manager) RetrieveMemories(ctx context.Context, query string) []Hit {
	return m.retrieve(ctx, query, m.config.RetrieveLimit, m.config.MinSimilarity)
}

func (m *Manager) retrieve(ctx context.Context, query string, limit int, minSimilarity float64) []Hit {
	embedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		m.logger.Warn("embedding failed, retrieval degraded", "error", err)
		return nil
	}

	hits, err := m.index.Query(ctx, embedding, limit)
	if err != nil {
		m.logger.Warn("semantic query failed, retrieval degraded", "error", err)
		return nil
	}

	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < minSimilarity {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out
}

// BuildContext assembles the bounded, chronologically ordered message
// list for the next model call. Turns are taken newest first until the
// running character total would exceed maxChars; the first overflowing
// turn and everything older is excluded, never partially included. A
// maxChars of zero or less selects the configured budget.
func (m *Manager) BuildContext(ctx context.Context, sessionID string, maxChars int) ([]core.Message, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	if maxChars <= 0 {
		maxChars = m.config.MaxChars
	}

	turns, err := m.store.TurnsForSession(ctx, sessionID, NewestFirst, 0)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}

	var included []core.Turn
	total := 0
	for _, t := range turns {
		size := len(t.UserMessage) + len(t.AssistantResponse)
		if total+size > maxChars {
			break
		}
		included = append(included, t)
		total += size
	}

	// Oldest included turn first.
	messages := make([]core.Message, 0, len(included)*2)
	for i := len(included) - 1; i >= 0; i-- {
		messages = append(messages,
			core.Message{Role: core.RoleUser, Content: included[i].UserMessage},
			core.Message{Role: core.RoleAssistant, Content: included[i].AssistantResponse},
		)
	}
	return messages, nil
}

// Summarize renders a free-text digest of a session's recent history:
// the five most recent turns as truncated bullet pairs.
func (m *Manager) Summarize(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}

	turns, err := m.store.TurnsForSession(ctx, sessionID, NewestFirst, m.config.SummaryTurns)
	if err != nil {
		return "", fmt.Errorf("summarize session: %w", err)
	}
	if len(turns) == 0 {
		return NoHistory, nil
	}

	recent := turns
	if len(recent) > 5 {
		recent = recent[:5]
	}

	parts := []string{"Recent conversation summary:"}
	for _, t := range recent {
		parts = append(parts,
			fmt.Sprintf("- User asked about: %s", excerpt(t.UserMessage, m.config.SummaryPreview)),
			fmt.Sprintf("  Assistant helped with: %s", excerpt(t.AssistantResponse, m.config.SummaryPreview)),
		)
	}
	return strings.Join(parts, "\n"), nil
}

// UpsertPreference writes a user preference and invalidates its cache
// entry.
func (m *Manager) UpsertPreference(ctx context.Context, key, value string) error {
	if err := m.store.UpsertPreference(ctx, key, value); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	m.prefs.Del(key)
	return nil
}

// GetPreference reads a user preference through the cache. The boolean
// is false when the key is absent.
func (m *Manager) GetPreference(ctx context.Context, key string) (string, bool, error) {
	if v, ok := m.prefs.Get(key); ok {
		return v.(string), true, nil
	}

	value, found, err := m.store.GetPreference(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	if found {
		m.prefs.Set(key, value, int64(len(value)))
	}
	return value, found, nil
}

// PurgeOlderThan removes turns older than the given number of days from
// the structured store and cascades to their semantic-index documents, so
// no orphaned vector records remain. Returns the number of turns removed.
func (m *Manager) PurgeOlderThan(ctx context.Context, daysToKeep int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep)

	ids, err := m.store.TurnIDsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: list expired turns: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	// Index documents go first: failing here leaves the rows in place for
	// the next sweep instead of stranding unreachable vectors.
	if err := m.index.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("purge: cascade to index: %w", err)
	}

	n, err := m.store.DeleteTurnsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: delete turns: %w", err)
	}

	m.logger.Info("retention sweep complete", "days_kept", daysToKeep, "turns_removed", n)
	return int(n), nil
}

// Close releases the preference cache.
func (m *Manager) Close() {
	m.prefs.Close()
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
