package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/intervox-ai/intervox/internal/interview"
	"github.com/intervox-ai/intervox/internal/usage"
	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/provider/tts"
)

// sourceBuffer is the frame backlog one gateway source tolerates before it
// starts dropping. At 16 kHz mono with ~20 ms frames this is several seconds
// of audio.
const sourceBuffer = 256

// clientMessage is the JSON control envelope a gateway client sends. Binary
// WebSocket frames carry raw PCM and bypass this envelope entirely.
type clientMessage struct {
	Type           string `json:"type"`
	Name           string `json:"name,omitempty"`           // set_interview_type
	JobDescription string `json:"jobDescription,omitempty"` // set_interview_type
	Voice          string `json:"voice,omitempty"`          // set_voice
	SampleRate     int    `json:"sampleRate,omitempty"`     // start
	Channels       int    `json:"channels,omitempty"`       // start
}

// serverEvent is the JSON envelope for every event the gateway emits.
type serverEvent struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Data        string `json:"data,omitempty"` // base64 audio
	ContentType string `json:"contentType,omitempty"`
	SessionID   string `json:"sessionId,omitempty"`
	TotalTokens int64  `json:"totalTokens,omitempty"`
	Message     string `json:"message,omitempty"` // error detail
}

// handleVoice upgrades the connection and runs one interview session over
// it: the client streams PCM frames and control messages, the server runs
// the capture pipeline and turn controller and streams events back.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	user := usage.User{
		ID:    r.URL.Query().Get("user_id"),
		Email: r.URL.Query().Get("user_email"),
	}
	if user.ID == "" {
		user.ID = "anonymous"
	}

	sess, err := s.newVoiceSession(conn, user)
	if err != nil {
		s.log.Error("voice session setup failed", "error", err)
		return
	}

	s.metrics.ActiveVoiceSessions.Add(r.Context(), 1)
	defer s.metrics.ActiveVoiceSessions.Add(r.Context(), -1)

	sess.run(r.Context())
	conn.Close(websocket.StatusNormalClosure, "session ended")
}

// voiceSession is the per-connection state of one gateway interview.
type voiceSession struct {
	srv      *Server
	conn     *websocket.Conn
	log      *slog.Logger
	conv     *interview.Conversation
	recorder *audio.Recorder
	ctrl     *interview.Controller
	tracker  *usage.Tracker

	writeMu sync.Mutex // one websocket writer at a time

	mu         sync.Mutex
	ctx        context.Context // connection lifetime, set by run
	src        *wsSource
	sampleRate int
	channels   int

	turns sync.WaitGroup
}

func (s *Server) newVoiceSession(conn *websocket.Conn, user usage.User) (*voiceSession, error) {
	t, err := s.deps.Types.Get(s.defaultType)
	if err != nil {
		return nil, err
	}

	vs := &voiceSession{
		srv:        s,
		conn:       conn,
		log:        s.log,
		conv:       interview.NewConversation(t, s.jobDescription),
		sampleRate: defaultSampleRate,
		channels:   defaultChannels,
	}
	vs.tracker = usage.NewTracker(s.deps.Store, user, t.Name,
		usage.WithLogger(s.log), usage.WithMetrics(s.metrics))

	var detOpts []audio.DetectorOption
	if s.audio.EnergyThreshold > 0 {
		detOpts = append(detOpts, audio.WithEnergyThreshold(s.audio.EnergyThreshold))
	}
	if s.audio.SpeechFrames > 0 {
		detOpts = append(detOpts, audio.WithSpeechFrames(s.audio.SpeechFrames))
	}
	if s.audio.SilenceFrames > 0 {
		detOpts = append(detOpts, audio.WithSilenceFrames(s.audio.SilenceFrames))
	}
	recOpts := []audio.RecorderOption{audio.WithDetector(audio.NewDetector(detOpts...))}
	if s.audio.MaxRecording > 0 {
		recOpts = append(recOpts, audio.WithMaxDuration(s.audio.MaxRecording))
	}
	vs.recorder = audio.NewRecorder(vs.onSilence, recOpts...)

	ctrlOpts := []interview.Option{
		interview.WithMeter(vs.tracker),
		interview.WithMetrics(s.metrics),
		interview.WithLogger(s.log),
		interview.WithVoice(s.voiceDefault()),
	}
	if s.audio.MinClipBytes > 0 {
		ctrlOpts = append(ctrlOpts, interview.WithMinClipBytes(s.audio.MinClipBytes))
	}
	if s.deps.SecondarySTT != nil {
		ctrlOpts = append(ctrlOpts, interview.WithSecondaryTranscriber(s.deps.SecondarySTT))
		if s.audio.SecondaryTimeout > 0 {
			ctrlOpts = append(ctrlOpts, interview.WithSecondaryTimeout(s.audio.SecondaryTimeout))
		}
	}
	vs.ctrl = interview.NewController(vs.conv, vs.recorder, s.deps.STT, s.deps.Chat, s.deps.TTS, vs, ctrlOpts...)
	return vs, nil
}

// run reads frames and control messages until the connection drops, then
// drains in-flight turns and closes out the session.
func (vs *voiceSession) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vs.mu.Lock()
	vs.ctx = ctx
	vs.mu.Unlock()

	for {
		typ, data, err := vs.conn.Read(ctx)
		if err != nil {
			break
		}
		switch typ {
		case websocket.MessageBinary:
			vs.pushFrame(data)
		case websocket.MessageText:
			vs.handleControl(ctx, data)
		}
	}

	if _, err := vs.recorder.Stop(); err != nil {
		vs.log.Debug("recorder stop on disconnect", "error", err)
	}
	vs.turns.Wait()

	// Session completion must outlive the connection context.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer closeCancel()
	vs.tracker.CompleteSession(closeCtx)
}

// pushFrame hands one binary PCM frame to the active recording, if any.
func (vs *voiceSession) pushFrame(data []byte) {
	vs.mu.Lock()
	src := vs.src
	rate := vs.sampleRate
	ch := vs.channels
	vs.mu.Unlock()
	if src == nil {
		return
	}
	src.Push(audio.Frame{Data: data, SampleRate: rate, Channels: ch})
}

func (vs *voiceSession) handleControl(ctx context.Context, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		vs.sendError(ctx, "invalid control message")
		return
	}

	switch msg.Type {
	case "start":
		vs.handleStart(ctx, msg)
	case "stop":
		vs.startTurn(ctx)
	case "set_interview_type":
		vs.handleSetType(ctx, msg)
	case "set_voice":
		vs.handleSetVoice(ctx, msg)
	case "feedback":
		vs.handleFeedback(ctx)
	default:
		vs.sendError(ctx, "unknown control message type")
	}
}

func (vs *voiceSession) handleStart(ctx context.Context, msg clientMessage) {
	if vs.recorder.Recording() {
		vs.sendError(ctx, "recording already in progress")
		return
	}

	src := newWSSource()
	vs.mu.Lock()
	vs.src = src
	if msg.SampleRate > 0 {
		vs.sampleRate = msg.SampleRate
	}
	if msg.Channels > 0 {
		vs.channels = msg.Channels
	}
	vs.mu.Unlock()

	if err := vs.recorder.Start(ctx, src); err != nil {
		vs.sendError(ctx, err.Error())
	}
}

// onSilence is the recorder's end-of-turn callback. It runs on a recorder
// goroutine, so processing must not block it.
func (vs *voiceSession) onSilence() {
	vs.mu.Lock()
	ctx := vs.ctx
	vs.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	vs.startTurn(ctx)
}

// startTurn launches turn processing. The controller's own re-entrancy
// guard makes overlapping triggers (silence callback racing an explicit
// stop) harmless.
func (vs *voiceSession) startTurn(ctx context.Context) {
	vs.turns.Add(1)
	go func() {
		defer vs.turns.Done()
		if err := vs.ctrl.ProcessTurn(ctx); err != nil {
			vs.sendError(ctx, err.Error())
		}
		vs.sendUsage(ctx)
	}()
}

func (vs *voiceSession) handleSetType(ctx context.Context, msg clientMessage) {
	t, err := vs.srv.deps.Types.Get(msg.Name)
	if err != nil {
		vs.sendError(ctx, err.Error())
		return
	}
	jd := msg.JobDescription
	if jd == "" {
		jd = vs.srv.jobDescription
	}
	vs.conv.Reset(t, jd)
	vs.tracker.Reset(ctx, t.Name)
	vs.log.Info("interview type switched", "type", t.Name)
}

func (vs *voiceSession) handleSetVoice(ctx context.Context, msg clientMessage) {
	v, err := tts.ParseVoice(msg.Voice)
	if err != nil {
		vs.sendError(ctx, err.Error())
		return
	}
	vs.ctrl.SetVoice(v)
}

func (vs *voiceSession) handleFeedback(ctx context.Context) {
	vs.turns.Add(1)
	go func() {
		defer vs.turns.Done()
		text, _, err := vs.ctrl.Feedback(ctx)
		if err != nil {
			vs.sendError(ctx, err.Error())
			return
		}
		vs.send(ctx, serverEvent{Type: "feedback", Text: text})
		vs.sendUsage(ctx)
	}()
}

// --- interview.Sink ---

func (vs *voiceSession) Partial(text string) {
	vs.send(context.Background(), serverEvent{Type: "partial", Text: text})
}

func (vs *voiceSession) Assistant(text string) {
	vs.send(context.Background(), serverEvent{Type: "assistant", Text: text})
}

func (vs *voiceSession) Audio(data []byte, contentType string) {
	vs.send(context.Background(), serverEvent{
		Type:        "audio",
		Data:        base64.StdEncoding.EncodeToString(data),
		ContentType: contentType,
	})
}

var _ interview.Sink = (*voiceSession)(nil)

func (vs *voiceSession) sendUsage(ctx context.Context) {
	vs.send(ctx, serverEvent{
		Type:        "usage",
		SessionID:   vs.tracker.SessionID(),
		TotalTokens: vs.tracker.Total(),
	})
}

func (vs *voiceSession) sendError(ctx context.Context, msg string) {
	vs.send(ctx, serverEvent{Type: "error", Message: msg})
}

func (vs *voiceSession) send(ctx context.Context, ev serverEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	vs.writeMu.Lock()
	defer vs.writeMu.Unlock()
	if err := vs.conn.Write(ctx, websocket.MessageText, b); err != nil {
		vs.log.Debug("event write failed", "type", ev.Type, "error", err)
	}
}

// wsSource adapts the stream of binary WebSocket frames to audio.Source.
// Push drops frames once the buffer is full rather than blocking the read
// loop.
type wsSource struct {
	mu     sync.Mutex
	frames chan audio.Frame
	closed bool
}

func newWSSource() *wsSource {
	return &wsSource{frames: make(chan audio.Frame, sourceBuffer)}
}

func (s *wsSource) Frames() <-chan audio.Frame { return s.frames }

// Push enqueues a frame. Frames arriving after Close are discarded.
func (s *wsSource) Push(f audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.frames <- f:
	default:
	}
}

func (s *wsSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.frames)
	return nil
}

var _ audio.Source = (*wsSource)(nil)
