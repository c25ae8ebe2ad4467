// Package coqui provides a local Coqui TTS-backed provider that connects to
// either a Coqui XTTS v2 server or a standard Coqui TTS server via its REST
// API.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts
//     with URL query parameters.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body.
//
// Coqui addresses voices by speaker name rather than by preset, so each named
// voice preset maps to a speaker; by default the preset name itself is used
// as the speaker id, and WithSpeaker overrides individual entries.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
	"github.com/intervox-ai/intervox/pkg/tokens"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second

	xttsEndpoint     = "/tts_to_audio/"
	standardEndpoint = "/api/tts"
)

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code sent to the TTS server (e.g.,
// "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode. Use APIModeStandard (default) for the
// standard Coqui TTS Docker image or APIModeXTTS for the XTTS v2 API server.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// WithSpeaker maps a named voice preset to a Coqui speaker id, overriding
// the default of using the preset name itself.
func WithSpeaker(voice tts.Voice, speaker string) Option {
	return func(p *Provider) {
		p.speakers[voice] = speaker
	}
}

// Provider implements tts.Provider backed by a locally-running Coqui TTS
// server. It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	apiMode    APIMode
	speakers   map[tts.Voice]string
	httpClient *http.Client
}

// New creates a Provider targeting the Coqui server at serverURL (e.g.,
// "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		apiMode:    APIModeStandard,
		speakers:   make(map[tts.Voice]string),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize implements tts.Provider. Both server modes return a WAV body.
// The server reports no usage, so TotalTokens is estimated from the input
// text.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Result, error) {
	if text == "" {
		return tts.Result{}, errors.New("coqui: text must not be empty")
	}
	if voice == "" {
		voice = tts.DefaultVoice
	}
	speaker := p.speakers[voice]
	if speaker == "" {
		speaker = string(voice)
	}

	var (
		audio []byte
		err   error
	)
	switch p.apiMode {
	case APIModeXTTS:
		audio, err = p.synthesizeXTTS(ctx, text, speaker)
	default:
		audio, err = p.synthesizeStandard(ctx, text, speaker)
	}
	if err != nil {
		return tts.Result{}, err
	}

	return tts.Result{
		Audio:       audio,
		ContentType: "audio/wav",
		Usage:       tts.Usage{TotalTokens: tokens.Count(text)},
	}, nil
}

// synthesizeStandard performs a GET /api/tts request against the standard
// Coqui TTS server.
func (p *Provider) synthesizeStandard(ctx context.Context, text, speaker string) ([]byte, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("speaker_id", speaker)
	q.Set("language_id", p.language)

	endpoint := p.serverURL + standardEndpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	return p.do(req)
}

// xttsRequest is the JSON payload for POST /tts_to_audio/.
type xttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// synthesizeXTTS performs a POST /tts_to_audio/ request against the XTTS v2
// API server.
func (p *Provider) synthesizeXTTS(ctx context.Context, text, speaker string) ([]byte, error) {
	payload, err := json.Marshal(xttsRequest{
		Text:       text,
		SpeakerWav: speaker,
		Language:   p.language,
	})
	if err != nil {
		return nil, fmt.Errorf("coqui: encode request: %w", err)
	}

	endpoint := p.serverURL + xttsEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("coqui: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req)
}

func (p *Provider) do(req *http.Request) ([]byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("coqui: server returned HTTP %d: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read audio body: %w", err)
	}
	return audio, nil
}
