package coqui_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
	"github.com/intervox-ai/intervox/pkg/provider/tts/coqui"
)

func TestNewRequiresServerURL(t *testing.T) {
	t.Parallel()
	if _, err := coqui.New(""); err == nil {
		t.Fatal("New(\"\") returned nil error")
	}
}

func TestSynthesizeStandard(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("text"); got != "Walk me through your design." {
			t.Errorf("text = %q", got)
		}
		if got := q.Get("speaker_id"); got != "p225" {
			t.Errorf("speaker_id = %q", got)
		}
		if got := q.Get("language_id"); got != "de" {
			t.Errorf("language_id = %q", got)
		}
		w.Header().Set("Content-Type", "audio/wav")
		io.WriteString(w, "RIFFwav-bytes")
	}))
	defer srv.Close()

	p, err := coqui.New(srv.URL,
		coqui.WithLanguage("de"),
		coqui.WithSpeaker(tts.VoiceNova, "p225"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Synthesize(context.Background(), "Walk me through your design.", tts.VoiceNova)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got.Audio) != "RIFFwav-bytes" {
		t.Errorf("Audio = %q", got.Audio)
	}
	if got.ContentType != "audio/wav" {
		t.Errorf("ContentType = %q", got.ContentType)
	}
	if got.Usage.TotalTokens == 0 {
		t.Error("Usage.TotalTokens = 0, want a local estimate")
	}
}

func TestSynthesizeXTTS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tts_to_audio/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Text       string `json:"text"`
			SpeakerWav string `json:"speaker_wav"`
			Language   string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Text != "hello" {
			t.Errorf("text = %q", req.Text)
		}
		// No speaker override configured, so the preset name passes through.
		if req.SpeakerWav != "alloy" {
			t.Errorf("speaker_wav = %q", req.SpeakerWav)
		}
		if req.Language != "en" {
			t.Errorf("language = %q", req.Language)
		}
		io.WriteString(w, "RIFFwav-bytes")
	}))
	defer srv.Close()

	p, err := coqui.New(srv.URL, coqui.WithAPIMode(coqui.APIModeXTTS))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Synthesize(context.Background(), "hello", tts.VoiceAlloy)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got.Audio) != "RIFFwav-bytes" {
		t.Errorf("Audio = %q", got.Audio)
	}
}

func TestSynthesizeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := coqui.New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Synthesize(context.Background(), "hello", tts.VoiceAlloy)
	if err == nil {
		t.Fatal("Synthesize returned nil error on HTTP 500")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q does not mention the status code", err)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	t.Parallel()
	p, err := coqui.New("http://localhost:1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "", tts.VoiceAlloy); err == nil {
		t.Fatal("Synthesize(\"\") returned nil error")
	}
}
