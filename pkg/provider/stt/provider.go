// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (the OpenAI audio API or a
// local whisper-server) behind a single batch call: one finalized audio clip
// in, one transcript plus token usage out. Providers whose backend does not
// report usage estimate it locally so that every transcription can be metered.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/intervox-ai/intervox/pkg/audio"
)

// Usage is the token cost of one transcription. Backends that do not report
// usage fill TotalTokens with a local estimate.
type Usage struct {
	TotalTokens int
}

// Result is a committed transcription.
type Result struct {
	Text  string
	Usage Usage
}

// Provider is the abstraction over any speech-to-text backend.
//
// Transcribe submits a finalized clip and blocks until the backend commits a
// transcript or fails. An empty Result.Text with a nil error is valid: it
// means the backend heard nothing intelligible.
type Provider interface {
	Transcribe(ctx context.Context, clip audio.Clip) (Result, error)
}
