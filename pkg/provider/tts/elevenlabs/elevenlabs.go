// Package elevenlabs provides a TTS provider backed by the ElevenLabs
// text-to-speech REST API.
//
// ElevenLabs addresses voices by opaque voice id rather than by preset name,
// so each named voice preset is mapped to a voice id. The built-in mapping
// covers the premade ElevenLabs voices; WithVoiceID overrides individual
// entries.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
	"github.com/intervox-ai/intervox/pkg/tokens"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "mp3_44100_128"
)

// defaultVoiceIDs maps the named voice presets to premade ElevenLabs voices
// of a comparable character.
var defaultVoiceIDs = map[tts.Voice]string{
	tts.VoiceAlloy:   "21m00Tcm4TlvDq8ikWAM", // Rachel
	tts.VoiceEcho:    "29vD33N1CtxCmqQRPOHJ", // Drew
	tts.VoiceFable:   "D38z5RcWu1voky8WS1ja", // Fin
	tts.VoiceOnyx:    "2EiwWnXFnvU5JabPnv8n", // Clyde
	tts.VoiceNova:    "EXAVITQu4vr4xnSDxMaL", // Sarah
	tts.VoiceShimmer: "ThT5KcBeYPX3keUQqHPh", // Dorothy
}

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API endpoint. Useful for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithModel sets the ElevenLabs model id (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128").
// Non-MP3 formats change the bytes returned but the content type reported is
// always that of the configured format.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithVoiceID maps a named voice preset to an ElevenLabs voice id,
// overriding the built-in mapping.
func WithVoiceID(voice tts.Voice, id string) Option {
	return func(p *Provider) {
		p.voiceIDs[voice] = id
	}
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// Provider implements tts.Provider backed by the ElevenLabs REST API. It is
// safe for concurrent use.
type Provider struct {
	apiKey       string
	baseURL      string
	model        string
	outputFormat string
	voiceIDs     map[tts.Voice]string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		voiceIDs:     make(map[tts.Voice]string, len(defaultVoiceIDs)),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for v, id := range defaultVoiceIDs {
		p.voiceIDs[v] = id
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisRequest is the JSON payload for POST /v1/text-to-speech/{voice_id}.
type synthesisRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements tts.Provider. The API reports no usage, so
// TotalTokens is estimated from the input text.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Result, error) {
	if text == "" {
		return tts.Result{}, errors.New("elevenlabs: text must not be empty")
	}
	if voice == "" {
		voice = tts.DefaultVoice
	}
	voiceID, ok := p.voiceIDs[voice]
	if !ok {
		return tts.Result{}, fmt.Errorf("elevenlabs: no voice id mapped for voice %q", voice)
	}

	payload, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       p.model,
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", p.baseURL, voiceID, p.outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return tts.Result{}, fmt.Errorf("elevenlabs: server returned HTTP %d: %s", resp.StatusCode, body)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, fmt.Errorf("elevenlabs: read audio body: %w", err)
	}

	return tts.Result{
		Audio:       audio,
		ContentType: contentTypeFor(p.outputFormat),
		Usage:       tts.Usage{TotalTokens: tokens.Count(text)},
	}, nil
}

// contentTypeFor maps an ElevenLabs output format name to its MIME type.
func contentTypeFor(format string) string {
	switch {
	case len(format) >= 3 && format[:3] == "mp3":
		return "audio/mpeg"
	case len(format) >= 3 && format[:3] == "pcm":
		return "audio/pcm"
	case len(format) >= 4 && format[:4] == "ulaw":
		return "audio/basic"
	default:
		return "application/octet-stream"
	}
}
