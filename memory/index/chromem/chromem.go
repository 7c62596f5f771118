// Package chromem implements the semantic index on chromem-go, a pure Go
// embedded vector database, using the cosine distance metric.
package chromem

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/tessellate-ai/loom/memory"
)

const collectionName = "conversation_memory"

// Index implements memory.Index over a single chromem collection with
// one document per conversation turn.
type Index struct {
	db   *chromem.DB
	coll *chromem.Collection
}

var _ memory.Index = (*Index)(nil)

// DocumentID derives the index document id for a turn. It is a pure
// function of the turn id so deletions and correlations never need a
// secondary mapping table.
func DocumentID(turnID int64) string {
	return fmt.Sprintf("interaction_%d", turnID)
}

// New creates an in-memory index. Contents are lost on process exit;
// use NewPersistent for durable storage.
func New() (*Index, error) {
	return wrap(chromem.NewDB())
}

// NewPersistent creates an index backed by the given directory.
func NewPersistent(path string) (*Index, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}
	return wrap(db)
}

func wrap(db *chromem.DB) (*Index, error) {
	// No embedding func: callers supply embeddings. Default distance is
	// cosine, which is what the similarity contract assumes.
	coll, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{db: db, coll: coll}, nil
}

// Add indexes one turn's combined text.
func (ix *Index) Add(ctx context.Context, turnID int64, content, sessionID string, timestamp time.Time, embedding []float32) error {
	doc := chromem.Document{
		ID:        DocumentID(turnID),
		Content:   content,
		Embedding: embedding,
		Metadata: map[string]string{
			"turn_id":    strconv.FormatInt(turnID, 10),
			"session_id": sessionID,
			"timestamp":  timestamp.Format(time.RFC3339Nano),
		},
	}
	if err := ix.coll.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Query returns up to limit records by descending cosine similarity.
func (ix *Index) Query(ctx context.Context, embedding []float32, limit int) ([]memory.Hit, error) {
	// chromem rejects nResults larger than the collection.
	if count := ix.coll.Count(); limit > count {
		limit = count
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := ix.coll.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	hits := make([]memory.Hit, 0, len(results))
	for _, r := range results {
		turnID, err := strconv.ParseInt(r.Metadata["turn_id"], 10, 64)
		if err != nil {
			// Fall back to the document id suffix for records written
			// before turn_id metadata existed.
			turnID, _ = strconv.ParseInt(strings.TrimPrefix(r.ID, "interaction_"), 10, 64)
		}
		ts, _ := time.Parse(time.RFC3339Nano, r.Metadata["timestamp"])
		hits = append(hits, memory.Hit{
			TurnID:     turnID,
			Content:    r.Content,
			Similarity: float64(r.Similarity),
			SessionID:  r.Metadata["session_id"],
			Timestamp:  ts,
		})
	}
	return hits, nil
}

// Delete removes the documents derived from the given turn ids.
func (ix *Index) Delete(ctx context.Context, turnIDs []int64) error {
	if len(turnIDs) == 0 {
		return nil
	}
	ids := make([]string, len(turnIDs))
	for i, id := range turnIDs {
		ids[i] = DocumentID(id)
	}
	if err := ix.coll.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Count reports the number of indexed records.
func (ix *Index) Count() int {
	return ix.coll.Count()
}
