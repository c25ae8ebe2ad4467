// Package tokens provides local token-usage estimation for provider calls
// that do not return exact counts (transcription, speech synthesis, and
// streamed completion deltas).
//
// The estimate is the word-count heuristic: ceil(wordCount × 1.3). A
// character-count variant (len/4) gives similar results for English prose
// but the word-count form is the canonical one — every caller in this
// module uses it so that accumulated session totals stay self-consistent.
package tokens

import (
	"math"
	"strings"
)

const (
	// tokensPerWord is the approximate token-to-word ratio for English text
	// under GPT-style byte-pair encodings.
	tokensPerWord = 1.3

	// perMessageOverhead covers the role tag and formatting tokens each chat
	// message adds to a request.
	perMessageOverhead = 4

	// perRequestOverhead covers the fixed framing tokens of one completion
	// request.
	perRequestOverhead = 3
)

// Count estimates the token count of text. Empty or whitespace-only input
// returns 0. Count never fails.
func Count(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(words)) * tokensPerWord))
}

// Message is the minimal shape Count-based helpers need from a chat message.
// It matches the role/content pair sent to completion providers.
type Message struct {
	Role    string
	Content string
}

// ForMessages estimates the prompt cost of a message list: the sum of each
// message's content estimate plus a fixed per-message overhead, plus a fixed
// per-request overhead. An empty list costs only the request overhead.
func ForMessages(messages []Message) int {
	total := perRequestOverhead
	for _, m := range messages {
		total += Count(m.Content) + perMessageOverhead
	}
	return total
}
