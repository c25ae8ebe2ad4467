// Package openai provides a TTS provider backed by the OpenAI speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
	"github.com/intervox-ai/intervox/pkg/tokens"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider implements tts.Provider using the OpenAI speech endpoint. Output
// is MP3.
type Provider struct {
	client oai.Client
	model  oai.SpeechModel
	speed  float64
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	model   string
	speed   float64
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithModel overrides the speech model. Defaults to tts-1.
func WithModel(model string) Option {
	return func(c *config) {
		c.model = model
	}
}

// WithSpeed sets the playback speed multiplier (0.25–4.0).
func WithSpeed(speed float64) Option {
	return func(c *config) {
		c.speed = speed
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI TTS Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	model := oai.SpeechModelTTS1
	if cfg.model != "" {
		model = oai.SpeechModel(cfg.model)
	}

	return &Provider{
		client: oai.NewClient(reqOpts...),
		model:  model,
		speed:  cfg.speed,
	}, nil
}

// Synthesize implements tts.Provider. The speech endpoint reports no usage,
// so TotalTokens is estimated from the input text.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Result, error) {
	if text == "" {
		return tts.Result{}, fmt.Errorf("openai: text must not be empty")
	}
	if voice == "" {
		voice = tts.DefaultVoice
	}

	params := oai.AudioSpeechNewParams{
		Model:          p.model,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatMP3,
	}
	if p.speed > 0 {
		params.Speed = oai.Float(p.speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return tts.Result{}, fmt.Errorf("openai: speech synthesis: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return tts.Result{}, fmt.Errorf("openai: read audio body: %w", err)
	}

	return tts.Result{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Usage:       tts.Usage{TotalTokens: tokens.Count(text)},
	}, nil
}
