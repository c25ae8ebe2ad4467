// Package mock provides an in-memory mock implementation of [stt.Provider]
// for use in unit tests.
//
// The mock is safe for concurrent use. Set the exported Result/Err fields
// before use; inspect the recorded calls after.
package mock

import (
	"context"
	"sync"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider is a mock implementation of [stt.Provider].
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result stt.Result

	// Err is returned by Transcribe when non-nil.
	Err error

	// Delay, when non-nil, is waited on before Transcribe returns (the call
	// still honours ctx cancellation). Useful for timeout tests.
	Delay <-chan struct{}

	// TranscribeCalls records the clip passed to each Transcribe call.
	TranscribeCalls []audio.Clip
}

// Transcribe records the call and returns the scripted result.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (stt.Result, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, clip)
	delay := p.Delay
	result, err := p.Result, p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return stt.Result{}, ctx.Err()
		}
	}
	return result, err
}

// CallCount returns the number of Transcribe calls recorded so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}
