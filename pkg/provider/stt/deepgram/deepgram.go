// Package deepgram provides a Deepgram-backed STT provider using the
// prerecorded transcription REST API. Each finalized clip is submitted as one
// batch request.
//
// Usage:
//
//	p, err := deepgram.New("dg-api-key", deepgram.WithModel("nova-2"))
//	result, err := p.Transcribe(ctx, clip)
package deepgram

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

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/provider/stt"
	"github.com/intervox-ai/intervox/pkg/tokens"
)

const (
	defaultBaseURL = "https://api.deepgram.com"
	defaultModel   = "nova-2"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API endpoint. Useful for tests.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithModel sets the Deepgram model (e.g., "nova-2", "enhanced"). Defaults
// to "nova-2".
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to Deepgram (e.g., "en", "de").
// When empty, Deepgram detects the language.
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
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

// Provider implements stt.Provider backed by the Deepgram prerecorded API.
// It is safe for concurrent use; each Transcribe call is an independent
// request.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// listenResponse is the subset of the Deepgram response the provider reads.
type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements stt.Provider. The clip's PCM is wrapped in a WAV
// container and POSTed to /v1/listen. Deepgram reports no token usage, so
// TotalTokens is estimated from the text.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (stt.Result, error) {
	if clip.Empty() {
		return stt.Result{}, errors.New("deepgram: clip must not be empty")
	}

	q := url.Values{}
	q.Set("model", p.model)
	q.Set("smart_format", "true")
	if p.language != "" {
		q.Set("language", p.language)
	}

	endpoint := p.baseURL + "/v1/listen?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(clip.WAV()))
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Result{}, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, body)
	}

	var lr listenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return stt.Result{}, fmt.Errorf("deepgram: parse JSON response: %w", err)
	}

	var text string
	if len(lr.Results.Channels) > 0 && len(lr.Results.Channels[0].Alternatives) > 0 {
		text = lr.Results.Channels[0].Alternatives[0].Transcript
	}

	return stt.Result{
		Text:  text,
		Usage: stt.Usage{TotalTokens: tokens.Count(text)},
	}, nil
}
