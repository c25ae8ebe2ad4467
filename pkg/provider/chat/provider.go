// Package chat defines the Provider interface for chat-completion backends.
//
// A chat provider wraps a remote or local model API (OpenAI, Anthropic via
// any-llm, a llama.cpp server) behind two calls: a blocking Complete and a
// streaming StreamCompletion. The stream is a lazy, finite, non-restartable
// sequence of text deltas terminated by exactly one chunk with a non-empty
// FinishReason; consumers apply deltas in arrival order.
//
// Implementations must be safe for concurrent use.
package chat

import "context"

// Message is one role-tagged element of the prompt context. Role is one of
// "system", "user", "assistant".
type Message struct {
	Role    string
	Content string
}

// Request describes one completion call: the full ordered conversation plus
// sampling parameters. Zero-valued Temperature/MaxTokens let the backend use
// its defaults.
type Request struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage is the token cost of one completion. When the backend does not
// report usage for a stream, providers estimate it locally so metering never
// loses a turn.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Chunk is one unit of a completion stream.
//
// Delta chunks carry Text and an empty FinishReason. The terminal chunk
// carries a non-empty FinishReason ("stop", "length", or "error") and, when
// known, the Usage for the whole call. A FinishReason of "error" means the
// stream failed mid-flight; Text then holds the error message and must not
// be appended to the response.
type Chunk struct {
	Text         string
	FinishReason string
	Usage        *Usage
}

// Response is a complete, non-streamed completion result.
type Response struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any chat-completion backend.
type Provider interface {
	// StreamCompletion starts a completion and returns a channel of chunks.
	// The channel is closed after the terminal chunk. The returned error
	// covers only call setup; mid-stream failures arrive as an "error" chunk.
	StreamCompletion(ctx context.Context, req Request) (<-chan Chunk, error)

	// Complete blocks until the backend returns the whole completion.
	Complete(ctx context.Context, req Request) (*Response, error)
}
