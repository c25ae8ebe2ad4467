package tokens_test

import (
	"strings"
	"testing"

	"github.com/intervox-ai/intervox/pkg/tokens"
)

func TestCount(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \t\n  ", 0},
		{"single word", "hello", 2},     // ceil(1*1.3)
		{"two words", "hello there", 3}, // ceil(2*1.3)
		{"ten words", strings.Repeat("word ", 10), 13},
		{"collapsed whitespace", "a  b\t\tc\n\nd", 6}, // 4 words -> ceil(5.2)
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tokens.Count(tc.text); got != tc.want {
				t.Errorf("Count(%q) = %d, want %d", tc.text, got, tc.want)
			}
		})
	}
}

func TestCountMonotonic(t *testing.T) {
	t.Parallel()
	short := tokens.Count("one two three")
	long := tokens.Count("one two three four five six")
	if long <= short {
		t.Errorf("longer text estimated %d tokens, shorter %d; want strictly more", long, short)
	}
}

func TestForMessages(t *testing.T) {
	t.Parallel()

	if got := tokens.ForMessages(nil); got != 3 {
		t.Errorf("ForMessages(nil) = %d, want request overhead 3", got)
	}

	msgs := []tokens.Message{
		{Role: "system", Content: "You are an interviewer."}, // 4 words -> 6
		{Role: "user", Content: "hello"},                     // 1 word -> 2
	}
	// 6 + 2 content, 2*4 message overhead, 3 request overhead.
	want := 6 + 2 + 8 + 3
	if got := tokens.ForMessages(msgs); got != want {
		t.Errorf("ForMessages = %d, want %d", got, want)
	}
}

func TestForMessagesEmptyContent(t *testing.T) {
	t.Parallel()
	msgs := []tokens.Message{{Role: "user", Content: ""}}
	if got := tokens.ForMessages(msgs); got != 7 {
		t.Errorf("ForMessages = %d, want 7 (overheads only)", got)
	}
}
