// Package core holds the shared types passed between the orchestrator,
// the memory subsystem, the tool dispatcher, and the LLM providers.
package core

import "time"

// Roles for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single entry in a conversation.
type Message struct {
	Role     string            `json:"role"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Conversation is the in-memory, append-only message sequence for one
// active session. It is owned by the session that created it and is not
// persisted; durable history lives in the memory store.
type Conversation struct {
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Add appends a message with the given role and content.
func (c *Conversation) Add(role, content string) {
	c.messages = append(c.messages, Message{Role: role, Content: content})
}

// AddWithMetadata appends a message carrying caller-defined metadata.
func (c *Conversation) AddWithMetadata(role, content string, metadata map[string]string) {
	c.messages = append(c.messages, Message{Role: role, Content: content, Metadata: metadata})
}

// Messages returns a copy of the message sequence in insertion order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastN returns a copy of the most recent n messages, or all of them if
// fewer than n exist.
func (c *Conversation) LastN(n int) []Message {
	if n >= len(c.messages) {
		return c.Messages()
	}
	out := make([]Message, n)
	copy(out, c.messages[len(c.messages)-n:])
	return out
}

// Len reports the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Turn is one stored user-message/assistant-response pair. The ID is
// assigned by the structured store on insert and is unique and
// ordering-stable; Timestamp is set at insert and never mutated.
type Turn struct {
	ID                int64
	UserMessage       string
	AssistantResponse string
	Timestamp         time.Time
	SessionID         string
	Metadata          map[string]string
}

// Preference is a durable user preference keyed by a unique name.
// Writing an existing key replaces its value and timestamp.
type Preference struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
