//go:build !onnx

package app

import (
	"github.com/tessellate-ai/loom/config"
	"github.com/tessellate-ai/loom/memory"
	"github.com/tessellate-ai/loom/memory/embedder/mock"
)

// newEmbedder returns the hash-based embedder. Builds tagged `onnx`
// replace it with a real sentence-transformer model.
func newEmbedder(cfg *config.Config) (memory.Embedder, error) {
	return mock.New(), nil
}
