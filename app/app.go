// Package app wires the configured store, index, embedder, provider,
// and tool registry into a ready Agent for the binaries.
package app

import (
	"fmt"
	"log/slog"

	"github.com/tessellate-ai/loom/agent"
	"github.com/tessellate-ai/loom/config"
	"github.com/tessellate-ai/loom/llm"
	"github.com/tessellate-ai/loom/memory"
	"github.com/tessellate-ai/loom/memory/index/chromem"
	"github.com/tessellate-ai/loom/memory/store/sqlite"
	"github.com/tessellate-ai/loom/tools"
)

// App bundles the wired components and owns their lifecycles.
type App struct {
	Agent  *agent.Agent
	Memory *memory.Manager
	Store  *sqlite.Store
	Tools  *tools.Registry
}

// Build constructs everything from configuration.
func Build(cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := sqlite.New(cfg.Memory.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open structured store: %w", err)
	}

	index, err := chromem.NewPersistent(cfg.Memory.VectorDBPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open semantic index: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	manager, err := memory.NewManager(store, index, embedder, &memory.Config{
		MaxChars:       cfg.Memory.MaxChars,
		MinSimilarity:  cfg.Memory.MinSimilarity,
		RetrieveLimit:  cfg.Memory.RetrieveLimit,
		SummaryTurns:   memory.DefaultConfig.SummaryTurns,
		SummaryPreview: memory.DefaultConfig.SummaryPreview,
	}, memory.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create memory manager: %w", err)
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		manager.Close()
		store.Close()
		return nil, fmt.Errorf("create provider: %w", err)
	}
	logger.Info("provider selected", "provider", provider.Name())

	registry := tools.NewRegistry(cfg.Tools.Enabled)

	return &App{
		Agent:  agent.New(provider, manager, registry, agent.WithLogger(logger)),
		Memory: manager,
		Store:  store,
		Tools:  registry,
	}, nil
}

// Close releases everything Build opened.
func (a *App) Close() error {
	a.Memory.Close()
	return a.Store.Close()
}
