package core_test

import (
	"testing"

	"github.com/tessellate-ai/loom/core"
)

func TestConversation_Add(t *testing.T) {
	c := core.NewConversation()
	if c.Len() != 0 {
		t.Fatalf("new conversation Len = %d", c.Len())
	}

	c.Add(core.RoleUser, "hello")
	c.Add(core.RoleAssistant, "hi there")
	c.AddWithMetadata(core.RoleUser, "thanks", map[string]string{"source": "web"})

	if c.Len() != 3 {
		t.Fatalf("Len = %d", c.Len())
	}

	msgs := c.Messages()
	if msgs[0].Role != core.RoleUser || msgs[0].Content != "hello" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != core.RoleAssistant {
		t.Errorf("second message = %+v", msgs[1])
	}
	if msgs[2].Metadata["source"] != "web" {
		t.Errorf("metadata lost: %+v", msgs[2])
	}
}

func TestConversation_MessagesIsACopy(t *testing.T) {
	c := core.NewConversation()
	c.Add(core.RoleUser, "original")

	msgs := c.Messages()
	msgs[0].Content = "mutated"

	if c.Messages()[0].Content != "original" {
		t.Error("Messages exposed internal state")
	}
}

func TestConversation_LastN(t *testing.T) {
	c := core.NewConversation()
	c.Add(core.RoleUser, "one")
	c.Add(core.RoleAssistant, "two")
	c.Add(core.RoleUser, "three")

	last := c.LastN(2)
	if len(last) != 2 || last[0].Content != "two" || last[1].Content != "three" {
		t.Errorf("LastN(2) = %+v", last)
	}

	if got := c.LastN(10); len(got) != 3 {
		t.Errorf("LastN beyond length = %d messages", len(got))
	}
	if got := c.LastN(0); len(got) != 0 {
		t.Errorf("LastN(0) = %d messages", len(got))
	}
}
