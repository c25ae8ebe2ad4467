// Package server exposes the interview backend over HTTP: stateless proxy
// endpoints mirroring the provider APIs (transcribe, chat, speech, feedback),
// a CRUD surface over the session store, health and metrics endpoints, and a
// WebSocket voice gateway that runs the full capture/turn pipeline per
// connection.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/intervox-ai/intervox/internal/health"
	"github.com/intervox-ai/intervox/internal/interview"
	"github.com/intervox-ai/intervox/internal/observe"
	"github.com/intervox-ai/intervox/internal/session"
	"github.com/intervox-ai/intervox/pkg/provider/chat"
	"github.com/intervox-ai/intervox/pkg/provider/stt"
	"github.com/intervox-ai/intervox/pkg/provider/tts"
)

// shutdownTimeout bounds graceful connection draining on exit.
const shutdownTimeout = 10 * time.Second

// AudioSettings tunes the per-connection capture pipeline of the voice
// gateway. Zero values fall back to the package defaults of pkg/audio and
// internal/interview.
type AudioSettings struct {
	EnergyThreshold  float64
	SpeechFrames     int
	SilenceFrames    int
	MaxRecording     time.Duration
	MinClipBytes     int
	SecondaryTimeout time.Duration
}

// Deps carries the collaborators a Server routes requests to. STT, Chat and
// TTS are required; the rest are optional.
type Deps struct {
	STT          stt.Provider
	SecondarySTT stt.Provider // optional second transcription source
	Chat         chat.Provider
	TTS          tts.Provider
	Store        session.Store // nil disables the sessions API
	StorePinger  health.Pinger // optional readiness probe for the store
	Types        *interview.Types
}

// Option configures a Server during construction.
type Option func(*Server)

// WithLogger overrides the logger. Default is slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics overrides the metrics sink. Default is observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAudioSettings tunes the voice gateway capture pipeline.
func WithAudioSettings(a AudioSettings) Option {
	return func(s *Server) { s.audio = a }
}

// WithDefaultInterviewType sets the interview type used by voice sessions
// that never choose one. Default is interview.DefaultType.
func WithDefaultInterviewType(name string) Option {
	return func(s *Server) { s.defaultType = name }
}

// WithDefaultVoice sets the synthesis voice voice sessions start with.
func WithDefaultVoice(v tts.Voice) Option {
	return func(s *Server) { s.defaultVoice = v }
}

// WithJobDescription sets the job description appended to every interview
// system prompt.
func WithJobDescription(jd string) Option {
	return func(s *Server) { s.jobDescription = jd }
}

// Server is the HTTP/WebSocket API over the interview backend.
type Server struct {
	deps    Deps
	log     *slog.Logger
	metrics *observe.Metrics
	audio   AudioSettings

	defaultType    string
	jobDescription string

	mu           sync.RWMutex
	defaultVoice tts.Voice

	router chi.Router
}

// SetDefaultVoice changes the voice new voice sessions start with. Active
// sessions are unaffected.
func (s *Server) SetDefaultVoice(v tts.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultVoice = v
}

func (s *Server) voiceDefault() tts.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultVoice
}

// New assembles the router over the given dependencies.
func New(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:         deps,
		log:          slog.Default(),
		metrics:      observe.DefaultMetrics(),
		defaultType:  interview.DefaultType,
		defaultVoice: tts.DefaultVoice,
	}
	if s.deps.Types == nil {
		s.deps.Types = interview.NewTypes()
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	var checkers []health.Checker
	if deps.StorePinger != nil {
		checkers = append(checkers, health.StoreChecker(deps.StorePinger))
	}
	health.New(checkers...).Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/transcribe", s.handleTranscribe)
		r.Post("/chat", s.handleChat)
		r.Post("/speech", s.handleSpeech)
		r.Post("/feedback", s.handleFeedback)

		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/tokens", s.handleAddTokens)
		r.Post("/sessions/{id}/complete", s.handleCompleteSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/users/{userID}/sessions", s.handleListSessions)

		r.Get("/voice", s.handleVoice)
	})

	s.router = r
	return s
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server on addr until ctx is cancelled, then drains
// connections gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return s.serve(ctx, addr, "", "")
}

// ListenAndServeTLS is ListenAndServe over HTTPS.
func (s *Server) ListenAndServeTLS(ctx context.Context, addr, certFile, keyFile string) error {
	return s.serve(ctx, addr, certFile, keyFile)
}

func (s *Server) serve(ctx context.Context, addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", "addr", addr, "tls", certFile != "")
		var err error
		if certFile != "" {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// writeJSON writes v as the JSON body of a response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the standard {"error": ...} body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
