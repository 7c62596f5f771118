// Package memory persists conversation turns, indexes them for semantic
// retrieval, and reconstructs bounded-length context windows for the next
// model call.
//
// Architecture:
//   - Store: structured storage for turns and preferences (SQLite)
//   - Index: similarity search over turn content (chromem-go, cosine)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for local)
//   - Manager: the facade orchestrating storage, retrieval, context
//     assembly, summaries, and retention
//
// Each turn is written once to the Store, which assigns its id, and then
// mirrored into the Index under a document id derived from that turn id.
// Retention sweeps cascade: expiring a turn removes both the row and its
// index document.
//
// Failure policy follows the consumer's needs: a store write failure
// propagates (losing a turn corrupts history), while index and embedding
// failures degrade to "no memories retrieved" and are only logged.
package memory
