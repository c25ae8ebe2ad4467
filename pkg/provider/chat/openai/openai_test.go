package openai

import (
	"testing"

	"github.com/intervox-ai/intervox/pkg/provider/chat"
)

func TestNewValidation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("New with empty apiKey returned nil error")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("New with empty model returned nil error")
	}
	if _, err := New("sk-test", "gpt-4o-mini"); err != nil {
		t.Errorf("New with valid args: %v", err)
	}
}

func TestBuildParams(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := chat.Request{
		Messages: []chat.Message{
			{Role: "system", Content: "You are an interviewer."},
			{Role: "user", Content: "Hello"},
			{Role: "assistant", Content: "Hi, tell me about yourself."},
		},
		Temperature: 0.7,
		MaxTokens:   512,
	}

	params, err := p.buildParams(req)
	if err != nil {
		t.Fatalf("buildParams: %v", err)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(params.Messages))
	}
	if params.Messages[0].OfSystem == nil {
		t.Error("first message is not a system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Error("second message is not a user message")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Error("third message is not an assistant message")
	}
	if got := params.Temperature.Or(0); got != 0.7 {
		t.Errorf("temperature = %v, want 0.7", got)
	}
	if got := params.MaxCompletionTokens.Or(0); got != 512 {
		t.Errorf("max completion tokens = %v, want 512", got)
	}
}

func TestBuildParamsUnknownRole(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.buildParams(chat.Request{
		Messages: []chat.Message{{Role: "tool", Content: "x"}},
	})
	if err == nil {
		t.Fatal("buildParams accepted an unknown role")
	}
}
