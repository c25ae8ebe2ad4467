// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio bytes to consumers and to verify that
// the correct text and voice are passed to the backend.
package mock

import (
	"context"
	"sync"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
)

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text  string
	Voice tts.Voice
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Synthesize when Err is nil.
	Result tts.Result

	// Err is returned by Synthesize when non-nil.
	Err error

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns the scripted result.
func (p *Provider) Synthesize(_ context.Context, text string, voice tts.Voice) (tts.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Voice: voice})
	return p.Result, p.Err
}

// CallCount returns the number of Synthesize calls recorded so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}
