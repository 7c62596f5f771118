// Package agent orchestrates one message round-trip: retrieve relevant
// history, detect tool intent, call the model provider, and persist the
// resulting turn.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tessellate-ai/loom/core"
	"github.com/tessellate-ai/loom/llm"
	"github.com/tessellate-ai/loom/memory"
	"github.com/tessellate-ai/loom/tools"
)

// BaseSystemPrompt seeds every model call before memory and tool context
// is appended.
const BaseSystemPrompt = `You are an advanced AI assistant with reasoning, memory, and tools.
Think step-by-step and provide helpful, accurate responses.`

// Session is one logical conversation owned by its creator. The
// in-memory transcript is discarded on reset; durable history lives in
// the memory subsystem under the session id. Turns within a session are
// serialized by the session's mutex, so concurrent callers sharing a
// session id queue rather than interleave.
type Session struct {
	ID           string
	Conversation *core.Conversation

	mu sync.Mutex
}

// NewSession creates a session with an empty transcript. An empty id
// selects the default session.
func NewSession(id string) *Session {
	if id == "" {
		id = memory.DefaultSession
	}
	return &Session{ID: id, Conversation: core.NewConversation()}
}

// Reset discards the in-memory transcript.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Conversation = core.NewConversation()
}

// Agent wires the provider, memory manager, and tool registry together.
type Agent struct {
	provider llm.Provider
	memory   *memory.Manager
	tools    *tools.Registry
	logger   *slog.Logger
}

// Option configures the agent.
type Option func(*Agent)

// WithLogger sets the agent's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = l
	}
}

// New creates an Agent.
func New(provider llm.Provider, mem *memory.Manager, registry *tools.Registry, opts ...Option) *Agent {
	a := &Agent{
		provider: provider,
		memory:   mem,
		tools:    registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tools exposes the agent's tool registry.
func (a *Agent) Tools() *tools.Registry {
	return a.tools
}

// Memory exposes the agent's memory manager.
func (a *Agent) Memory() *memory.Manager {
	return a.memory
}

// ProcessMessage runs the single logical flow for one incoming message:
// retrieval and intent detection, then generation, then persistence.
// Retrieval failures degrade silently; a persistence failure propagates
// because an unrecorded turn corrupts the history. The session lock is
// held for the whole flow, serializing turns within a session.
func (a *Agent) ProcessMessage(ctx context.Context, session *Session, userMessage string) (string, error) {
	session.mu.Lock()
	defer session.mu.Unlock()

	session.Conversation.Add(core.RoleUser, userMessage)

	memories := a.memory.RetrieveMemories(ctx, userMessage)
	needed := a.tools.AnalyzeToolNeed(userMessage)
	if len(needed) > 0 {
		a.logger.Debug("tool intent detected", "session_id", session.ID, "tools", needed)
	}

	history, err := a.memory.BuildContext(ctx, session.ID, 0)
	if err != nil {
		return "", fmt.Errorf("assemble context: %w", err)
	}

	messages := make([]core.Message, 0, len(history)+2)
	messages = append(messages, core.Message{
		Role:    core.RoleSystem,
		Content: a.buildSystemPrompt(memories, needed),
	})
	messages = append(messages, history...)
	messages = append(messages, core.Message{Role: core.RoleUser, Content: userMessage})

	response, err := a.provider.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}

	session.Conversation.Add(core.RoleAssistant, response)

	if _, err := a.memory.StoreInteraction(ctx, userMessage, response, session.ID, nil); err != nil {
		return "", err
	}
	return response, nil
}

// buildSystemPrompt layers retrieved memories and detected tool names
// onto the base prompt.
func (a *Agent) buildSystemPrompt(memories []memory.Hit, toolNames []string) string {
	parts := []string{BaseSystemPrompt}

	if len(memories) > 0 {
		var b strings.Builder
		b.WriteString("Relevant context from past conversations:\n")
		budget := 2000 / len(memories)
		if budget < 100 {
			budget = 100
		}
		for i, hit := range memories {
			fmt.Fprintf(&b, "%d. %s\n", i+1, excerpt(hit.Content, budget))
		}
		parts = append(parts, b.String())
	}

	if len(toolNames) > 0 {
		parts = append(parts, "Available tools: "+strings.Join(toolNames, ", "))
	}

	return strings.Join(parts, "\n\n")
}

func excerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
