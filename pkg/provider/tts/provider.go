// Package tts defines the Provider interface for text-to-speech backends.
//
// A TTS provider turns one assistant reply into a playable audio clip. The
// backend does not report token usage for synthesis, so providers estimate it
// locally from the input text; a turn with text but no audio is acceptable to
// callers, which treat synthesis failure as non-fatal.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"fmt"
)

// Voice is one of the named synthesis presets.
type Voice string

// The six supported voice presets.
const (
	VoiceAlloy   Voice = "alloy"
	VoiceEcho    Voice = "echo"
	VoiceFable   Voice = "fable"
	VoiceOnyx    Voice = "onyx"
	VoiceNova    Voice = "nova"
	VoiceShimmer Voice = "shimmer"
)

// DefaultVoice is used when a request does not name a voice.
const DefaultVoice = VoiceAlloy

// ParseVoice validates a voice name. An empty name yields DefaultVoice.
func ParseVoice(name string) (Voice, error) {
	switch v := Voice(name); v {
	case "":
		return DefaultVoice, nil
	case VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer:
		return v, nil
	default:
		return "", fmt.Errorf("tts: unknown voice %q", name)
	}
}

// Usage is the estimated token cost of one synthesis call.
type Usage struct {
	TotalTokens int
}

// Result is one synthesized clip.
type Result struct {
	// Audio holds encoded audio bytes (MP3 for the OpenAI backend).
	Audio []byte

	// ContentType is the MIME type of Audio, e.g. "audio/mpeg".
	ContentType string

	Usage Usage
}

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize renders text with the given voice. text must be non-empty.
	Synthesize(ctx context.Context, text string, voice Voice) (Result, error)
}
