package audio

import (
	"context"
	"errors"
	"sync"
	"time"
)

// defaultMaxDuration is the hard ceiling on a single recording. It bounds
// recording length even if the voice-activity detector never fires.
const defaultMaxDuration = 30 * time.Second

// RecorderOption is a functional option for configuring a Recorder.
type RecorderOption func(*Recorder)

// WithMaxDuration sets the hard recording ceiling. Defaults to 30 s.
func WithMaxDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.maxDuration = d
		}
	}
}

// WithDetector replaces the default voice-activity detector.
func WithDetector(d *Detector) RecorderOption {
	return func(r *Recorder) {
		if d != nil {
			r.detector = d
		}
	}
}

// Recorder owns one recording lifecycle: it drains a Source, buffers every
// frame into the eventual Clip, feeds each frame to the Detector, and invokes
// the silence callback exactly once per recording when either the detector
// fires or the hard ceiling elapses.
//
// The callback is a request to the owner to end the turn; the Recorder keeps
// capturing until Stop is called, so audio between the silence decision and
// Stop is still part of the clip.
type Recorder struct {
	detector    *Detector
	maxDuration time.Duration
	onSilence   func()

	mu         sync.Mutex
	recording  bool
	source     Source
	buffer     []byte
	sampleRate int
	channels   int

	stop     chan struct{}
	stopOnce *sync.Once
	fireOnce *sync.Once
	wg       sync.WaitGroup
}

// NewRecorder creates a Recorder. onSilence is invoked at most once per
// recording, from the capture goroutine; it must not call Stop synchronously
// from a goroutine that the owner also blocks awaiting Stop. Passing a nil
// callback disables silence notification (the ceiling still ends buffering
// relevance but nothing is notified).
func NewRecorder(onSilence func(), opts ...RecorderOption) *Recorder {
	r := &Recorder{
		detector:    NewDetector(),
		maxDuration: defaultMaxDuration,
		onSilence:   onSilence,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start begins capturing from src. It fails with ErrDevice-wrapped errors
// left to the Source opener; Start itself fails if a recording is already in
// progress or src is nil.
func (r *Recorder) Start(ctx context.Context, src Source) error {
	if src == nil {
		return ErrDevice
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return errors.New("audio: recording already in progress")
	}

	r.recording = true
	r.source = src
	r.buffer = nil
	r.sampleRate = 0
	r.channels = 0
	r.detector.Reset()
	r.stop = make(chan struct{})
	r.stopOnce = &sync.Once{}
	r.fireOnce = &sync.Once{}

	r.wg.Add(1)
	go r.captureLoop(ctx, src, r.stop, r.fireOnce)
	return nil
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Stop ends the current recording and returns the finalized clip. It is
// idempotent: calling Stop when no recording is in progress returns a zero
// Clip and nil error. The Source is closed on every exit path.
func (r *Recorder) Stop() (Clip, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return Clip{}, nil
	}
	stop := r.stop
	once := r.stopOnce
	r.mu.Unlock()

	once.Do(func() { close(stop) })
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	clip := Clip{PCM: r.buffer, SampleRate: r.sampleRate, Channels: r.channels}
	err := r.source.Close()
	r.recording = false
	r.source = nil
	r.buffer = nil
	return clip, err
}

// captureLoop is the single goroutine owning detector state and the clip
// buffer for one recording. Confining all mutation here (buffer appends go
// through the mutex only because Stop reads the buffer after wg.Wait, which
// establishes ordering anyway) keeps the detector itself lock-free.
func (r *Recorder) captureLoop(ctx context.Context, src Source, stop <-chan struct{}, fire *sync.Once) {
	defer r.wg.Done()

	ceiling := time.NewTimer(r.maxDuration)
	defer ceiling.Stop()

	notify := func() {
		if r.onSilence == nil {
			return
		}
		fire.Do(func() { go r.onSilence() })
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ceiling.C:
			notify()
			// Keep draining frames so the source does not back up; the owner
			// is expected to call Stop promptly.
		case frame, ok := <-src.Frames():
			if !ok {
				notify()
				return
			}
			r.mu.Lock()
			r.buffer = append(r.buffer, frame.Data...)
			if r.sampleRate == 0 {
				r.sampleRate = frame.SampleRate
				r.channels = frame.Channels
			}
			r.mu.Unlock()
			if r.detector.Feed(frame) {
				notify()
			}
		}
	}
}
