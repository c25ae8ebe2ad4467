package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/intervox-ai/intervox/internal/observe"
	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/provider/chat"
	"github.com/intervox-ai/intervox/pkg/provider/stt"
	"github.com/intervox-ai/intervox/pkg/provider/tts"
)

const (
	// defaultMinClipBytes is the smallest clip worth transcribing. Anything
	// shorter is treated as dead air and dropped without an API call.
	defaultMinClipBytes = 1000

	// defaultSecondaryTimeout bounds the secondary transcriber independently
	// of the rest of the turn.
	defaultSecondaryTimeout = 15 * time.Second
)

// ErrCapture is returned by ProcessTurn when stopping the recording produced
// no usable clip. It is the only pre-transcription failure surfaced to the
// caller.
var ErrCapture = errors.New("interview: no audio clip captured")

// Capture finalizes an in-progress recording. *audio.Recorder satisfies it.
type Capture interface {
	Stop() (audio.Clip, error)
}

// Meter accumulates token usage for the active interview session. Both
// methods are best-effort from the controller's point of view: a turn never
// fails because metering did.
type Meter interface {
	// EnsureSession makes sure a session exists for the current interview.
	// Idempotent.
	EnsureSession(ctx context.Context) error

	// AddTokens adds n tokens to the running total.
	AddTokens(ctx context.Context, n int64)
}

// Sink receives the user-visible output of a turn, in order: zero or more
// growing partial snapshots, the final assistant text, then optionally the
// synthesized audio. Methods are called from the goroutine running
// ProcessTurn, never concurrently.
type Sink interface {
	Partial(text string)
	Assistant(text string)
	Audio(data []byte, contentType string)
}

// Option configures a Controller during construction.
type Option func(*Controller)

// WithMinClipBytes overrides the minimum clip size below which a turn is
// dropped without transcription.
func WithMinClipBytes(n int) Option {
	return func(c *Controller) { c.minClipBytes = n }
}

// WithSecondaryTranscriber configures a second transcription source run
// concurrently with the primary. Its text is retained on the user message
// for comparison and never sent to the completion backend; its failure or
// timeout never fails the turn.
func WithSecondaryTranscriber(p stt.Provider) Option {
	return func(c *Controller) { c.secondary = p }
}

// WithSecondaryTimeout bounds the secondary transcriber. Default 15s.
func WithSecondaryTimeout(d time.Duration) Option {
	return func(c *Controller) { c.secondaryTimeout = d }
}

// WithVoice sets the initial synthesis voice. Default is tts.DefaultVoice.
func WithVoice(v tts.Voice) Option {
	return func(c *Controller) { c.voice = v }
}

// WithMeter wires a usage tracker. Without one, usage is not metered.
func WithMeter(m Meter) Option {
	return func(c *Controller) { c.meter = m }
}

// WithMetrics overrides the metrics sink. Default is observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger overrides the logger. Default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller sequences one interview turn: finalize the clip, transcribe,
// extend the conversation, stream the interviewer's reply, synthesize
// speech, and meter usage. At most one turn runs at a time; an overlapping
// ProcessTurn call is a logged no-op.
type Controller struct {
	conv      *Conversation
	capture   Capture
	sttP      stt.Provider
	secondary stt.Provider
	chatP     chat.Provider
	ttsP      tts.Provider
	sink      Sink
	meter     Meter
	log       *slog.Logger
	metrics   *observe.Metrics

	minClipBytes     int
	secondaryTimeout time.Duration

	mu    sync.RWMutex
	voice tts.Voice

	inTurn atomic.Bool
}

// NewController constructs a Controller over the given conversation,
// capture source, providers, and output sink.
func NewController(conv *Conversation, capture Capture, sttP stt.Provider, chatP chat.Provider, ttsP tts.Provider, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		conv:             conv,
		capture:          capture,
		sttP:             sttP,
		chatP:            chatP,
		ttsP:             ttsP,
		sink:             sink,
		log:              slog.Default(),
		metrics:          observe.DefaultMetrics(),
		minClipBytes:     defaultMinClipBytes,
		secondaryTimeout: defaultSecondaryTimeout,
		voice:            tts.DefaultVoice,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetVoice changes the synthesis voice for subsequent turns.
func (c *Controller) SetVoice(v tts.Voice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voice = v
}

// Voice returns the active synthesis voice.
func (c *Controller) Voice() tts.Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voice
}

// Processing reports whether a turn is currently in progress.
func (c *Controller) Processing() bool {
	return c.inTurn.Load()
}

// ProcessTurn runs one full interview turn. If a turn is already in
// progress the call is a no-op and returns nil.
//
// A nil return means either a completed turn or a silent non-event (short
// clip, empty transcript, stale generation). A non-nil return is a failure
// the caller should surface to the user: ErrCapture when no clip was
// produced, or a wrapped completion error.
func (c *Controller) ProcessTurn(ctx context.Context) error {
	if !c.inTurn.CompareAndSwap(false, true) {
		c.log.Info("turn already in progress, ignoring")
		return nil
	}
	defer c.inTurn.Store(false)

	start := time.Now()
	gen := c.conv.Generation()

	clip, err := c.capture.Stop()
	if err != nil {
		c.metrics.RecordTurn(ctx, "capture_error")
		return fmt.Errorf("%w: %v", ErrCapture, err)
	}
	if clip.Empty() {
		c.metrics.RecordTurn(ctx, "capture_error")
		return ErrCapture
	}
	if len(clip.PCM) < c.minClipBytes {
		c.log.Debug("clip below minimum size, dropping turn",
			"bytes", len(clip.PCM), "min_bytes", c.minClipBytes)
		c.metrics.RecordTurn(ctx, "short_clip")
		return nil
	}

	var secondaryCh <-chan string
	if c.secondary != nil {
		secondaryCh = c.transcribeSecondary(ctx, clip)
	}

	sttStart := time.Now()
	res, err := c.sttP.Transcribe(ctx, clip)
	c.metrics.STTDuration.Record(ctx, time.Since(sttStart).Seconds())
	if err != nil {
		c.log.Warn("transcription failed, dropping turn", "error", err)
		c.metrics.RecordProviderError(ctx, "primary", "stt")
		c.metrics.RecordTurn(ctx, "transcription_error")
		return nil
	}
	c.metrics.RecordProviderRequest(ctx, "primary", "stt", "ok")

	userText := strings.TrimSpace(res.Text)
	if userText == "" {
		c.log.Debug("empty transcript, dropping turn")
		c.metrics.RecordTurn(ctx, "empty_transcript")
		return nil
	}

	var secondaryText string
	if secondaryCh != nil {
		secondaryText = <-secondaryCh
		if secondaryText != "" {
			score := TranscriptSimilarity(userText, secondaryText)
			c.metrics.TranscriptSimilarity.Record(ctx, score)
			c.log.Debug("secondary transcript scored", "similarity", score)
		}
	}

	c.meterTokens(ctx, int64(res.Usage.TotalTokens))

	if !c.conv.AppendUser(gen, userText, secondaryText) {
		c.log.Info("conversation reset mid-turn, discarding transcript")
		c.metrics.RecordTurn(ctx, "stale_generation")
		return nil
	}

	reply, usage, err := c.streamCompletion(ctx)
	if err != nil {
		c.metrics.RecordTurn(ctx, "completion_error")
		return fmt.Errorf("interview: completion failed: %w", err)
	}
	if usage != nil {
		c.meterTokens(ctx, int64(usage.TotalTokens))
	}

	if !c.conv.AppendAssistant(gen, reply) {
		c.log.Info("conversation reset mid-turn, discarding completion")
		c.metrics.RecordTurn(ctx, "stale_generation")
		return nil
	}
	c.sink.Assistant(reply)

	c.synthesize(ctx, reply)

	c.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	c.metrics.RecordTurn(ctx, "completed")
	return nil
}

// Feedback asks the completion backend to review the interview so far. The
// fixed feedback instruction is appended as a final system message of the
// request only; the stored history is unchanged.
func (c *Controller) Feedback(ctx context.Context) (string, chat.Usage, error) {
	msgs := append(c.conv.Messages(), chat.Message{Role: RoleSystem, Content: feedbackInstruction})

	chatStart := time.Now()
	resp, err := c.chatP.Complete(ctx, chat.Request{Messages: msgs})
	c.metrics.ChatDuration.Record(ctx, time.Since(chatStart).Seconds())
	if err != nil {
		c.metrics.RecordProviderError(ctx, "chat", "chat")
		return "", chat.Usage{}, fmt.Errorf("interview: feedback failed: %w", err)
	}
	c.metrics.RecordProviderRequest(ctx, "chat", "chat", "ok")
	c.meterTokens(ctx, int64(resp.Usage.TotalTokens))
	return resp.Content, resp.Usage, nil
}

// streamCompletion sends the conversation to the completion backend and
// forwards growing partial snapshots to the sink in arrival order. It
// returns the final reply text and, when the backend reported it, the usage
// for the call.
func (c *Controller) streamCompletion(ctx context.Context) (string, *chat.Usage, error) {
	chatStart := time.Now()
	ch, err := c.chatP.StreamCompletion(ctx, chat.Request{Messages: c.conv.Messages()})
	if err != nil {
		c.metrics.RecordProviderError(ctx, "chat", "chat")
		return "", nil, err
	}

	var sb strings.Builder
	var usage *chat.Usage
	var streamErr error
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			streamErr = errors.New(chunk.Text)
			break
		}
		if chunk.FinishReason != "" {
			usage = chunk.Usage
			break
		}
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			c.sink.Partial(sb.String())
		}
	}
	go drainChunks(ch)

	c.metrics.ChatDuration.Record(ctx, time.Since(chatStart).Seconds())
	if streamErr != nil {
		c.metrics.RecordProviderError(ctx, "chat", "chat")
		return "", nil, streamErr
	}
	c.metrics.RecordProviderRequest(ctx, "chat", "chat", "ok")
	return sb.String(), usage, nil
}

// synthesize renders the reply as speech and hands it to the sink. Failures
// are logged and swallowed: a turn with text but no audio is acceptable.
func (c *Controller) synthesize(ctx context.Context, text string) {
	ttsStart := time.Now()
	res, err := c.ttsP.Synthesize(ctx, text, c.Voice())
	c.metrics.TTSDuration.Record(ctx, time.Since(ttsStart).Seconds())
	if err != nil {
		c.log.Warn("speech synthesis failed, continuing without audio", "error", err)
		c.metrics.RecordProviderError(ctx, "tts", "tts")
		return
	}
	c.metrics.RecordProviderRequest(ctx, "tts", "tts", "ok")
	c.sink.Audio(res.Audio, res.ContentType)
	c.meterTokens(ctx, int64(res.Usage.TotalTokens))
}

// transcribeSecondary runs the secondary transcriber under its own deadline.
// The returned channel yields the secondary text, or "" on failure or
// timeout, and is then closed.
func (c *Controller) transcribeSecondary(ctx context.Context, clip audio.Clip) <-chan string {
	out := make(chan string, 1)
	go func() {
		defer close(out)
		sctx, cancel := context.WithTimeout(ctx, c.secondaryTimeout)
		defer cancel()
		res, err := c.secondary.Transcribe(sctx, clip)
		if err != nil {
			c.log.Debug("secondary transcription failed", "error", err)
			c.metrics.RecordProviderError(ctx, "secondary", "stt")
			return
		}
		c.metrics.RecordProviderRequest(ctx, "secondary", "stt", "ok")
		out <- strings.TrimSpace(res.Text)
	}()
	return out
}

// meterTokens records n tokens against the session. Metering never fails a
// turn; session creation errors are handled inside the tracker.
func (c *Controller) meterTokens(ctx context.Context, n int64) {
	if c.meter == nil || n <= 0 {
		return
	}
	if err := c.meter.EnsureSession(ctx); err != nil {
		c.log.Warn("session tracking unavailable", "error", err)
	}
	c.meter.AddTokens(ctx, n)
}

// drainChunks discards the remainder of an abandoned stream so the
// provider's goroutine can finish.
func drainChunks(ch <-chan chat.Chunk) {
	for range ch {
	}
}
