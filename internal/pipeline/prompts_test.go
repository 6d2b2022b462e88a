package pipeline

import (
	"strings"
	"testing"

	"github.com/botdesk/botdesk/internal/agents"
	"github.com/botdesk/botdesk/internal/conversation"
	"github.com/botdesk/botdesk/internal/knowledge"
)

func fullAgent() agents.Agent {
	return agents.Agent{
		Persona: "You are Mia, the support assistant for Acme Outdoor Gear.",
		Traits:  []string{"friendly", "patient"},
		Tone:    "warm and professional",
	}
}

func TestComposeSystemPromptDeterministic(t *testing.T) {
	agent := fullAgent()
	conv := conversation.Conversation{CustomerName: "Ada Lovelace", CustomerEmail: "ada@example.com"}
	passages := []knowledge.Passage{
		{Title: "Shipping", Content: "We ship to Canada within 5 business days."},
		{Content: "Returns accepted within 30 days."},
	}

	first := ComposeSystemPrompt(agent, conv, passages)
	for i := 0; i < 5; i++ {
		if got := ComposeSystemPrompt(agent, conv, passages); got != first {
			t.Fatal("prompt composition is not deterministic")
		}
	}
}

func TestComposeSystemPromptSectionOrder(t *testing.T) {
	agent := fullAgent()
	conv := conversation.Conversation{CustomerName: "Ada Lovelace"}
	passages := []knowledge.Passage{{Title: "Shipping", Content: "We ship worldwide."}}

	prompt := ComposeSystemPrompt(agent, conv, passages)
	sections := strings.Split(prompt, "\n\n")
	if len(sections) != 5 {
		t.Fatalf("got %d sections, want 5:\n%s", len(sections), prompt)
	}
	if sections[0] != agent.Persona {
		t.Fatalf("section 0 = %q", sections[0])
	}
	if sections[1] != "Traits: friendly, patient\nTone: warm and professional" {
		t.Fatalf("section 1 = %q", sections[1])
	}
	if sections[2] != "Customer info:\nName: Ada Lovelace" {
		t.Fatalf("section 2 = %q", sections[2])
	}
	if sections[3] != "Relevant knowledge:\n- [Shipping] We ship worldwide." {
		t.Fatalf("section 3 = %q", sections[3])
	}
	if sections[4] != guidelines {
		t.Fatalf("section 4 = %q", sections[4])
	}
}

func TestComposeSystemPromptOmitsEmptySections(t *testing.T) {
	prompt := ComposeSystemPrompt(agents.Agent{}, conversation.Conversation{}, nil)
	if prompt != guidelines {
		t.Fatalf("prompt with no inputs should be just the guidelines, got:\n%s", prompt)
	}
	if strings.Contains(prompt, "Customer info:") || strings.Contains(prompt, "Relevant knowledge:") {
		t.Fatal("empty sections must be omitted")
	}
}

func TestComposeSystemPromptAlwaysEndsWithGuidelines(t *testing.T) {
	prompt := ComposeSystemPrompt(fullAgent(), conversation.Conversation{}, nil)
	if !strings.HasSuffix(prompt, guidelines) {
		t.Fatal("guidelines suffix missing")
	}
}
