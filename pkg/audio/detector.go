package audio

const (
	// defaultEnergyThreshold is the RMS energy level (in 16-bit PCM units)
	// above which a frame counts as speech. The maximum possible value for
	// 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultEnergyThreshold = 300.0

	// defaultSpeechFrames is the number of consecutive speech frames required
	// before the speaker is considered confirmed. Short bursts of noise below
	// this run length never arm the silence trigger.
	defaultSpeechFrames = 3

	// defaultSilenceFrames is the number of consecutive silent frames after
	// confirmed speech that ends the turn.
	defaultSilenceFrames = 50
)

// DetectorState is the phase of the voice-activity state machine.
type DetectorState int

const (
	// AwaitingSpeech: no confirmed speech yet. Silence in this state is dead
	// air at recording start and never triggers the silence event.
	AwaitingSpeech DetectorState = iota

	// Speaking: speech has been confirmed; the detector is now watching for
	// sustained quiet.
	Speaking

	// Done: the silence event has fired. Further frames are ignored.
	Done
)

// DetectorOption is a functional option for configuring a Detector.
type DetectorOption func(*Detector)

// WithEnergyThreshold sets the RMS level separating speech from silence.
func WithEnergyThreshold(threshold float64) DetectorOption {
	return func(d *Detector) {
		if threshold > 0 {
			d.energyThreshold = threshold
		}
	}
}

// WithSpeechFrames sets the consecutive-speech-frame count that confirms the
// speaker. Defaults to 3.
func WithSpeechFrames(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.speechFrames = n
		}
	}
}

// WithSilenceFrames sets the consecutive-silence-frame count after confirmed
// speech that triggers the silence event. Defaults to 50.
func WithSilenceFrames(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.silenceFrames = n
		}
	}
}

// Detector classifies PCM frames as speech or silence by RMS energy and
// decides when a spoken turn has ended: once speech has run for SpeechFrames
// consecutive frames, the first run of SilenceFrames consecutive silent
// frames fires the silence event, exactly once.
//
// Detector is a plain state machine with no internal synchronisation. All
// mutable state is expected to be confined to the single goroutine that owns
// the recording, following the capture loop pattern used by the Recorder.
type Detector struct {
	energyThreshold float64
	speechFrames    int
	silenceFrames   int

	state        DetectorState
	speechCount  int // consecutive speech frames
	silenceCount int // consecutive silent frames after confirmed speech
}

// NewDetector creates a Detector with both counters at zero, in the
// AwaitingSpeech state.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		energyThreshold: defaultEnergyThreshold,
		speechFrames:    defaultSpeechFrames,
		silenceFrames:   defaultSilenceFrames,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State returns the current phase of the state machine.
func (d *Detector) State() DetectorState { return d.state }

// Feed classifies one frame and advances the state machine. It returns true
// exactly once per Detector lifetime: on the frame whose silence run first
// reaches the configured threshold after confirmed speech. Frames fed after
// that are ignored.
func (d *Detector) Feed(frame Frame) bool {
	if d.state == Done {
		return false
	}

	if RMS(frame.Data) > d.energyThreshold {
		d.speechCount++
		d.silenceCount = 0
		if d.state == AwaitingSpeech && d.speechCount >= d.speechFrames {
			d.state = Speaking
		}
		return false
	}

	d.speechCount = 0
	if d.state != Speaking {
		// Dead air before the speaker has said anything.
		return false
	}
	d.silenceCount++
	if d.silenceCount >= d.silenceFrames {
		d.state = Done
		return true
	}
	return false
}

// Reset returns the detector to its initial state so it can be reused for a
// new recording.
func (d *Detector) Reset() {
	d.state = AwaitingSpeech
	d.speechCount = 0
	d.silenceCount = 0
}
