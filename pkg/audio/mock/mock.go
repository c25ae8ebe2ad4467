// Package mock provides an in-memory mock implementation of the
// [audio.Source] interface for use in unit tests.
//
// The mock is safe for concurrent use. It records method calls so that tests
// can assert on call counts, and exposes helpers for scripting a frame
// sequence:
//
//	src := mock.NewSource(
//	    mock.Speech(16000, 1, 5),
//	    mock.Silence(16000, 1, 60),
//	)
//	rec.Start(ctx, src)
package mock

import (
	"sync"
	"time"

	"github.com/intervox-ai/intervox/pkg/audio"
)

// Compile-time assertion that Source implements audio.Source.
var _ audio.Source = (*Source)(nil)

// frameSamples is the number of PCM samples per scripted frame (20 ms at
// 16 kHz mono).
const frameSamples = 320

// Speech returns n consecutive high-energy frames.
func Speech(sampleRate, channels, n int) []audio.Frame {
	return script(sampleRate, channels, n, 8000)
}

// Silence returns n consecutive near-zero-energy frames.
func Silence(sampleRate, channels, n int) []audio.Frame {
	return script(sampleRate, channels, n, 0)
}

func script(sampleRate, channels, n int, amplitude int16) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		data := make([]byte, frameSamples*2*channels)
		for s := 0; s < len(data); s += 2 {
			data[s] = byte(amplitude)
			data[s+1] = byte(amplitude >> 8)
		}
		frames[i] = audio.Frame{
			Data:       data,
			SampleRate: sampleRate,
			Channels:   channels,
			Timestamp:  time.Duration(i) * 20 * time.Millisecond,
		}
	}
	return frames
}

// Source is a mock implementation of [audio.Source] that emits a scripted
// frame sequence and then keeps the channel open until Close (or CloseFrames)
// is called. Inspect CallCountClose after use.
type Source struct {
	mu sync.Mutex

	frames chan audio.Frame

	// CloseError is returned by [Source.Close].
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	closeOnce sync.Once
}

// NewSource creates a Source pre-loaded with the concatenation of the given
// frame scripts. The frame channel stays open after the script drains, which
// mirrors a live microphone that has simply gone quiet.
func NewSource(scripts ...[]audio.Frame) *Source {
	var total int
	for _, s := range scripts {
		total += len(s)
	}
	s := &Source{frames: make(chan audio.Frame, total+1)}
	for _, sc := range scripts {
		for _, f := range sc {
			s.frames <- f
		}
	}
	return s
}

// Push appends one frame to the pending script. It panics if the buffered
// channel is full; size the script at construction time instead.
func (s *Source) Push(f audio.Frame) {
	s.frames <- f
}

// Frames returns the scripted frame channel.
func (s *Source) Frames() <-chan audio.Frame { return s.frames }

// CloseFrames closes the frame channel, simulating the end of the input
// stream, without counting as a Close call.
func (s *Source) CloseFrames() {
	s.closeOnce.Do(func() { close(s.frames) })
}

// Close records the call and closes the frame channel.
func (s *Source) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	err := s.CloseError
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.frames) })
	return err
}
