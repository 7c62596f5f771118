//go:build onnx

package app

import (
	"os"

	"github.com/tessellate-ai/loom/config"
	"github.com/tessellate-ai/loom/memory"
	"github.com/tessellate-ai/loom/memory/embedder/onnx"
)

// newEmbedder returns the ONNX sentence-transformer embedder. Model and
// tokenizer locations come from the environment because they are
// deployment artifacts, not application settings.
func newEmbedder(cfg *config.Config) (memory.Embedder, error) {
	return onnx.New(onnx.Config{
		ModelPath:     os.Getenv("ONNX_MODEL_PATH"),
		TokenizerPath: os.Getenv("ONNX_TOKENIZER_PATH"),
	})
}
