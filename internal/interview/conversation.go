package interview

import (
	"sync"

	"github.com/intervox-ai/intervox/pkg/provider/chat"
)

// Message roles. The first message of a conversation always carries RoleSystem.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged element of the interview history.
//
// OriginalContent optionally holds the secondary transcriber's text for a
// user message. It is kept for comparison only and never reaches the
// completion backend.
type Message struct {
	Role            string
	Content         string
	OriginalContent string
}

// Conversation is the ordered interview history. It grows by appending only;
// messages are never reordered or edited in place. The first element is
// always the system message carrying the active interview instructions.
//
// Every Reset bumps a generation counter. In-flight turn results carry the
// generation they started under, and results from a stale generation are
// discarded instead of appended, so a reset mid-turn can never corrupt the
// new interview's context.
//
// Conversation is safe for concurrent reads; writes come from the turn
// controller only.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
	gen      uint64
}

// NewConversation creates a conversation holding a single system message
// built from the interview type's instructions and an optional job
// description.
func NewConversation(t Type, jobDescription string) *Conversation {
	c := &Conversation{}
	c.Reset(t, jobDescription)
	return c
}

// Reset discards the history, installs a fresh system message for the given
// interview type, and bumps the generation counter so in-flight results from
// the previous interview are discarded on arrival.
func (c *Conversation) Reset(t Type, jobDescription string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []Message{{Role: RoleSystem, Content: t.SystemPrompt(jobDescription)}}
	c.gen++
}

// Generation returns the current reset generation.
func (c *Conversation) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// AppendUser appends a user message if gen still matches the current
// generation. It reports whether the message was appended.
func (c *Conversation) AppendUser(gen uint64, content, originalContent string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.messages = append(c.messages, Message{
		Role:            RoleUser,
		Content:         content,
		OriginalContent: originalContent,
	})
	return true
}

// AppendAssistant appends an assistant message if gen still matches the
// current generation. It reports whether the message was appended.
func (c *Conversation) AppendAssistant(gen uint64, content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.messages = append(c.messages, Message{Role: RoleAssistant, Content: content})
	return true
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// History returns a copy of the full history, including OriginalContent.
func (c *Conversation) History() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Messages returns the wire form of the history for the completion backend,
// with OriginalContent stripped.
func (c *Conversation) Messages() []chat.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]chat.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = chat.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
