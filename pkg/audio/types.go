// Package audio provides microphone capture primitives: the Frame/Clip data
// types, the Source abstraction over an audio input stream, an energy-based
// voice-activity Detector, and a Recorder that ties them together into a
// start/stop recording lifecycle with silence-triggered turn ending.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
// audio used throughout the capture path.
const bitsPerSample = 16

// ErrDevice indicates that an audio input source could not be opened, either
// because permission was denied or because no capture device exists. It is
// fatal to starting a recording.
var ErrDevice = errors.New("audio: input device unavailable")

// Frame represents a single frame of PCM audio flowing through the capture
// pipeline. Frames are the atomic unit the Detector classifies.
type Frame struct {
	// Data is raw 16-bit signed little-endian PCM.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT input).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Clip is a finalized recording: the concatenated PCM of every frame captured
// between Start and Stop, plus the format needed to interpret it.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Empty reports whether the clip holds no audio data.
func (c Clip) Empty() bool { return len(c.PCM) == 0 }

// Duration returns the playback length of the clip, or 0 if the format
// fields are not set.
func (c Clip) Duration() time.Duration {
	bytesPerSec := c.SampleRate * c.Channels * (bitsPerSample / 8)
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(bytesPerSec)
}

// WAV wraps the clip's PCM in a standard RIFF/WAV container, suitable for
// multipart upload to a transcription backend.
func (c Clip) WAV() []byte { return EncodeWAV(c.PCM, c.SampleRate, c.Channels) }

// Source is an open audio input stream. The capture transport (a WebSocket
// gateway session, a test script) implements it; the Recorder consumes it.
//
// Frames returns a read-only channel of captured frames. The channel is
// closed when the stream ends. Close releases the underlying device or
// connection; calling Close more than once is safe.
type Source interface {
	Frames() <-chan Frame
	Close() error
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer. Returns 0 for buffers shorter than one sample. The result is
// expressed in the same units as PCM sample values (0–32 767).
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2 // number of 16-bit samples
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		v := float64(sample)
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
