package agent_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/tessellate-ai/loom/agent"
	"github.com/tessellate-ai/loom/core"
	"github.com/tessellate-ai/loom/memory"
	"github.com/tessellate-ai/loom/memory/embedder/mock"
	"github.com/tessellate-ai/loom/memory/index/chromem"
	"github.com/tessellate-ai/loom/memory/store/sqlite"
	"github.com/tessellate-ai/loom/tools"
)

// fakeProvider echoes a canned response and records what it was asked.
type fakeProvider struct {
	response string
	err      error
	messages []core.Message
}

func (p *fakeProvider) Generate(ctx context.Context, messages []core.Message) (string, error) {
	p.messages = messages
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

func (p *fakeProvider) Name() string { return "fake" }

func newTestMemory(t *testing.T) *memory.Manager {
	t.Helper()
	store, err := sqlite.New(t.TempDir() + "/memory.db")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := chromem.New()
	if err != nil {
		t.Fatalf("chromem.New: %v", err)
	}

	m, err := memory.NewManager(store, index, mock.New(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestNewSession(t *testing.T) {
	s := agent.NewSession("")
	if s.ID != memory.DefaultSession {
		t.Errorf("empty id should select the default session, got %q", s.ID)
	}

	s = agent.NewSession("custom")
	if s.ID != "custom" {
		t.Errorf("ID = %q", s.ID)
	}
	if s.Conversation.Len() != 0 {
		t.Errorf("new session transcript not empty: %d", s.Conversation.Len())
	}
}

func TestSession_Reset(t *testing.T) {
	s := agent.NewSession("s1")
	s.Conversation.Add(core.RoleUser, "hello")
	s.Reset()
	if s.Conversation.Len() != 0 {
		t.Errorf("expected empty transcript after reset, got %d", s.Conversation.Len())
	}
}

func TestAgent_ProcessMessage(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{response: "Hello! How can I help?"}
	mem := newTestMemory(t)
	registry := tools.NewRegistry([]string{"calculator"})

	a := agent.New(provider, mem, registry)
	session := agent.NewSession("s1")

	response, err := a.ProcessMessage(ctx, session, "Hi there")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if response != "Hello! How can I help?" {
		t.Errorf("response = %q", response)
	}

	// Transcript holds the user message and the response.
	msgs := session.Conversation.Messages()
	if len(msgs) != 2 || msgs[0].Role != core.RoleUser || msgs[1].Role != core.RoleAssistant {
		t.Errorf("transcript = %+v", msgs)
	}

	// The provider saw the system prompt first, the user message last.
	if len(provider.messages) < 2 {
		t.Fatalf("provider saw %d messages", len(provider.messages))
	}
	if provider.messages[0].Role != core.RoleSystem {
		t.Errorf("first message role = %q", provider.messages[0].Role)
	}
	last := provider.messages[len(provider.messages)-1]
	if last.Role != core.RoleUser || last.Content != "Hi there" {
		t.Errorf("last message = %+v", last)
	}

	// The turn was persisted and shows up as durable history.
	history, err := mem.BuildContext(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 persisted messages, got %d", len(history))
	}
}

func TestAgent_ProcessMessage_HistoryReachesProvider(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{response: "answer"}
	mem := newTestMemory(t)
	a := agent.New(provider, mem, tools.NewRegistry(nil))
	session := agent.NewSession("s1")

	if _, err := a.ProcessMessage(ctx, session, "first question"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if _, err := a.ProcessMessage(ctx, session, "second question"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	// Second call carries the first turn as history before the new message.
	var sawFirst bool
	for _, m := range provider.messages[:len(provider.messages)-1] {
		if strings.Contains(m.Content, "first question") {
			sawFirst = true
		}
	}
	if !sawFirst {
		t.Error("expected prior turn in the provider's context")
	}
}

func TestAgent_ProcessMessage_ToolIntentInPrompt(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{response: "42"}
	mem := newTestMemory(t)
	a := agent.New(provider, mem, tools.NewRegistry([]string{"calculator"}))

	if _, err := a.ProcessMessage(ctx, agent.NewSession("s1"), "calculate 6 * 7"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(provider.messages[0].Content, "Available tools: calculator") {
		t.Errorf("tool intent missing from system prompt: %q", provider.messages[0].Content)
	}
}

func TestAgent_ProcessMessage_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{err: errors.New("api down")}
	mem := newTestMemory(t)
	a := agent.New(provider, mem, tools.NewRegistry(nil))
	session := agent.NewSession("s1")

	if _, err := a.ProcessMessage(ctx, session, "hello"); err == nil {
		t.Fatal("expected provider error to propagate")
	}

	// The failed turn must not be recorded as history.
	history, err := mem.BuildContext(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("failed turn was persisted: %+v", history)
	}
}

func TestAgent_ProcessMessage_SerializesSharedSession(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{response: "ok"}
	mem := newTestMemory(t)
	a := agent.New(provider, mem, tools.NewRegistry(nil))
	session := agent.NewSession("shared")

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := a.ProcessMessage(ctx, session, fmt.Sprintf("message %d", n)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ProcessMessage: %v", err)
	}

	// Every turn recorded, each user message immediately followed by its
	// response, never interleaved with another caller's.
	msgs := session.Conversation.Messages()
	if len(msgs) != callers*2 {
		t.Fatalf("transcript has %d messages, want %d", len(msgs), callers*2)
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != core.RoleUser || msgs[i+1].Role != core.RoleAssistant {
			t.Fatalf("turn %d interleaved: roles %s, %s", i/2, msgs[i].Role, msgs[i+1].Role)
		}
	}

	history, err := mem.BuildContext(ctx, "shared", 0)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if len(history) != callers*2 {
		t.Errorf("persisted %d messages, want %d", len(history), callers*2)
	}
}

func TestAgent_ProcessMessage_SeparateSessions(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{response: "ok"}
	mem := newTestMemory(t)
	a := agent.New(provider, mem, tools.NewRegistry(nil))

	if _, err := a.ProcessMessage(ctx, agent.NewSession("alpha"), "alpha question"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if _, err := a.ProcessMessage(ctx, agent.NewSession("beta"), "beta question"); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	history, err := mem.BuildContext(ctx, "alpha", 0)
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	for _, m := range history {
		if strings.Contains(m.Content, "beta") {
			t.Errorf("alpha history leaked beta content: %q", m.Content)
		}
	}
}
