// Package llm abstracts the model providers behind a single generation
// capability. Provider selection happens once at construction, not per
// call.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tessellate-ai/loom/config"
	"github.com/tessellate-ai/loom/core"
)

// Provider generates an assistant response for a message sequence.
// Implementations fold system messages per their API's convention and
// honor the configured request timeout via the context.
type Provider interface {
	// Generate returns the response text for the given messages.
	Generate(ctx context.Context, messages []core.Message) (string, error)

	// Name identifies the provider, for logging.
	Name() string
}

// New constructs the provider selected by the configuration.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return newAnthropic(cfg)
	case "openai":
		return newChatCompletions(cfg, "openai", "https://api.openai.com/v1", cfg.OpenAIAPIKey, "gpt-4o")
	case "openrouter":
		return newChatCompletions(cfg, "openrouter", "https://openrouter.ai/api/v1", cfg.OpenRouterAPIKey, "openai/gpt-4o")
	case "ollama":
		return newOllama(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// timeoutConfig bounds a single generation round-trip. On timeout, the
// call fails and the caller must not record the turn as stored.
type timeoutConfig struct {
	d time.Duration
}

func (t timeoutConfig) apply(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.d)
}

// splitSystem partitions messages into a combined system prompt and the
// conversational remainder. Tool results are passed through as user
// content for providers without a native tool role.
func splitSystem(messages []core.Message) (system string, rest []core.Message) {
	for _, m := range messages {
		switch m.Role {
		case core.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case core.RoleTool:
			rest = append(rest, core.Message{Role: core.RoleUser, Content: "Tool result: " + m.Content})
		default:
			rest = append(rest, m)
		}
	}
	return system, rest
}
