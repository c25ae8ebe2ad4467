package interview

import (
	"strings"
	"testing"
)

func mustType(t *testing.T, name string) Type {
	t.Helper()
	typ, err := NewTypes().Get(name)
	if err != nil {
		t.Fatalf("Get(%q): %v", name, err)
	}
	return typ
}

func TestNewConversation_SingleSystemMessage(t *testing.T) {
	conv := NewConversation(mustType(t, "software-engineer"), "")

	if conv.Len() != 1 {
		t.Fatalf("len = %d, want 1", conv.Len())
	}
	msgs := conv.History()
	if msgs[0].Role != RoleSystem {
		t.Errorf("role = %q, want %q", msgs[0].Role, RoleSystem)
	}
	if !strings.Contains(msgs[0].Content, "software engineering position") {
		t.Errorf("system prompt does not mention the position: %q", msgs[0].Content)
	}
}

func TestConversation_JobDescriptionAugmentsSystemPrompt(t *testing.T) {
	conv := NewConversation(mustType(t, "software-engineer"), "Senior Go developer, payments team.")

	sys := conv.History()[0].Content
	if !strings.Contains(sys, "Senior Go developer, payments team.") {
		t.Errorf("system prompt missing job description: %q", sys)
	}
	if !strings.Contains(sys, "software engineering position") {
		t.Errorf("system prompt missing base instructions: %q", sys)
	}
}

func TestConversation_ResetYieldsSingleSystemMessage(t *testing.T) {
	conv := NewConversation(mustType(t, "software-engineer"), "")
	gen := conv.Generation()
	conv.AppendUser(gen, "I once debugged a deadlock.", "")
	conv.AppendAssistant(gen, "Tell me more about that.")

	conv.Reset(mustType(t, "technical-product-support"), "")

	if conv.Len() != 1 {
		t.Fatalf("len after reset = %d, want 1", conv.Len())
	}
	msg := conv.History()[0]
	if msg.Role != RoleSystem {
		t.Errorf("role = %q, want %q", msg.Role, RoleSystem)
	}
	if !strings.Contains(msg.Content, "product support") {
		t.Errorf("system prompt not switched: %q", msg.Content)
	}
}

func TestConversation_ResetBumpsGeneration(t *testing.T) {
	conv := NewConversation(mustType(t, "software-engineer"), "")
	g1 := conv.Generation()
	conv.Reset(mustType(t, "software-engineer"), "")
	if g2 := conv.Generation(); g2 == g1 {
		t.Errorf("generation unchanged after reset: %d", g2)
	}
}

func TestConversation_StaleGenerationDiscarded(t *testing.T) {
	conv := NewConversation(mustType(t, "software-engineer"), "")
	stale := conv.Generation()
	conv.Reset(mustType(t, "software-engineer"), "")

	if conv.AppendUser(stale, "late transcript", "") {
		t.Error("AppendUser accepted a stale generation")
	}
	if conv.AppendAssistant(stale, "late reply") {
		t.Error("AppendAssistant accepted a stale generation")
	}
	if conv.Len() != 1 {
		t.Errorf("len = %d, want 1 (nothing appended)", conv.Len())
	}
}

func TestConversation_MessagesStripsOriginalContent(t *testing.T) {
	conv := NewConversation(mustType(t, "software-engineer"), "")
	conv.AppendUser(conv.Generation(), "primary transcript", "secondary transcript")

	wire := conv.Messages()
	if len(wire) != 2 {
		t.Fatalf("wire len = %d, want 2", len(wire))
	}
	if wire[1].Content != "primary transcript" {
		t.Errorf("wire content = %q, want primary transcript", wire[1].Content)
	}

	hist := conv.History()
	if hist[1].OriginalContent != "secondary transcript" {
		t.Errorf("history OriginalContent = %q, want secondary transcript", hist[1].OriginalContent)
	}
}

func TestConversation_GrowsByTwoPerTurn(t *testing.T) {
	conv := NewConversation(mustType(t, "software-engineer"), "")
	gen := conv.Generation()

	for turn := 1; turn <= 3; turn++ {
		conv.AppendUser(gen, "answer", "")
		conv.AppendAssistant(gen, "question")
		if want := 1 + 2*turn; conv.Len() != want {
			t.Fatalf("after turn %d: len = %d, want %d", turn, conv.Len(), want)
		}
	}
}

func TestTypes_GetUnknown(t *testing.T) {
	if _, err := NewTypes().Get("barista"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestTypes_RegisterCustom(t *testing.T) {
	r := NewTypes()
	if err := r.Register(Type{Name: "sre", Prompt: "You interview SRE candidates."}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	typ, err := r.Get("sre")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if typ.Prompt != "You interview SRE candidates." {
		t.Errorf("prompt = %q", typ.Prompt)
	}
}

func TestTypes_RegisterValidation(t *testing.T) {
	r := NewTypes()
	if err := r.Register(Type{Name: "", Prompt: "x"}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register(Type{Name: "x", Prompt: "   "}); err == nil {
		t.Error("expected error for blank prompt")
	}
}

func TestTypes_NamesSorted(t *testing.T) {
	names := NewTypes().Names()
	want := []string{"software-engineer", "technical-product-support"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
