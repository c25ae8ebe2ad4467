package audio_test

import (
	"testing"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/audio/mock"
)

func feedAll(t *testing.T, d *audio.Detector, frames []audio.Frame) int {
	t.Helper()
	fired := 0
	for _, f := range frames {
		if d.Feed(f) {
			fired++
		}
	}
	return fired
}

func TestDetectorSpeechThenSilenceFiresExactlyOnce(t *testing.T) {
	t.Parallel()
	d := audio.NewDetector(audio.WithSpeechFrames(3), audio.WithSilenceFrames(5))

	fired := feedAll(t, d, mock.Speech(16000, 1, 4))
	fired += feedAll(t, d, mock.Silence(16000, 1, 20))
	if fired != 1 {
		t.Fatalf("silence event fired %d times, want exactly 1", fired)
	}
	if d.State() != audio.Done {
		t.Errorf("state = %v, want Done", d.State())
	}

	// Further frames, speech or silence, must not fire again.
	if n := feedAll(t, d, mock.Speech(16000, 1, 10)); n != 0 {
		t.Errorf("fired %d times after Done", n)
	}
	if n := feedAll(t, d, mock.Silence(16000, 1, 10)); n != 0 {
		t.Errorf("fired %d times after Done", n)
	}
}

func TestDetectorFiresOnThresholdFrame(t *testing.T) {
	t.Parallel()
	d := audio.NewDetector(audio.WithSpeechFrames(2), audio.WithSilenceFrames(3))

	feedAll(t, d, mock.Speech(16000, 1, 2))
	silence := mock.Silence(16000, 1, 3)
	if d.Feed(silence[0]) || d.Feed(silence[1]) {
		t.Fatal("fired before silence run reached threshold")
	}
	if !d.Feed(silence[2]) {
		t.Fatal("did not fire on the frame completing the silence run")
	}
}

func TestDetectorSilenceOnlyNeverFires(t *testing.T) {
	t.Parallel()
	d := audio.NewDetector(audio.WithSilenceFrames(5))

	if fired := feedAll(t, d, mock.Silence(16000, 1, 500)); fired != 0 {
		t.Fatalf("silence-only input fired %d times, want 0", fired)
	}
	if d.State() != audio.AwaitingSpeech {
		t.Errorf("state = %v, want AwaitingSpeech", d.State())
	}
}

func TestDetectorUnconfirmedSpeechNeverArms(t *testing.T) {
	t.Parallel()
	// Speech bursts shorter than the confirmation run must not arm the
	// silence trigger.
	d := audio.NewDetector(audio.WithSpeechFrames(3), audio.WithSilenceFrames(2))

	fired := 0
	for i := 0; i < 10; i++ {
		fired += feedAll(t, d, mock.Speech(16000, 1, 2))
		fired += feedAll(t, d, mock.Silence(16000, 1, 4))
	}
	if fired != 0 {
		t.Fatalf("fired %d times on unconfirmed speech, want 0", fired)
	}
}

func TestDetectorSilenceRunResetBySpeech(t *testing.T) {
	t.Parallel()
	d := audio.NewDetector(audio.WithSpeechFrames(1), audio.WithSilenceFrames(5))

	feedAll(t, d, mock.Speech(16000, 1, 2))
	// Interleave short quiet gaps with speech: the silence counter resets on
	// every speech frame, so the event must not fire.
	fired := 0
	for i := 0; i < 8; i++ {
		fired += feedAll(t, d, mock.Silence(16000, 1, 4))
		fired += feedAll(t, d, mock.Speech(16000, 1, 1))
	}
	if fired != 0 {
		t.Fatalf("fired %d times despite silence runs below threshold", fired)
	}

	if n := feedAll(t, d, mock.Silence(16000, 1, 5)); n != 1 {
		t.Fatalf("fired %d times on a full silence run, want 1", n)
	}
}

func TestDetectorReset(t *testing.T) {
	t.Parallel()
	d := audio.NewDetector(audio.WithSpeechFrames(1), audio.WithSilenceFrames(2))

	feedAll(t, d, mock.Speech(16000, 1, 1))
	if n := feedAll(t, d, mock.Silence(16000, 1, 2)); n != 1 {
		t.Fatalf("first recording fired %d times, want 1", n)
	}

	d.Reset()
	if d.State() != audio.AwaitingSpeech {
		t.Fatalf("state after Reset = %v, want AwaitingSpeech", d.State())
	}
	feedAll(t, d, mock.Speech(16000, 1, 1))
	if n := feedAll(t, d, mock.Silence(16000, 1, 2)); n != 1 {
		t.Fatalf("second recording fired %d times, want 1", n)
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS([]byte{0}); got != 0 {
		t.Errorf("RMS(single byte) = %v, want 0", got)
	}

	quiet := mock.Silence(16000, 1, 1)[0].Data
	loud := mock.Speech(16000, 1, 1)[0].Data
	if audio.RMS(quiet) >= audio.RMS(loud) {
		t.Errorf("RMS(quiet)=%v not below RMS(loud)=%v", audio.RMS(quiet), audio.RMS(loud))
	}
}
