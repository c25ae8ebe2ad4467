package deepgram_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/provider/stt/deepgram"
)

func testClip() audio.Clip {
	return audio.Clip{PCM: make([]byte, 3200), SampleRate: 16000, Channels: 1}
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := deepgram.New(""); err == nil {
		t.Fatal("New(\"\") returned nil error")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/listen" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token dg-test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		q := r.URL.Query()
		if got := q.Get("model"); got != "enhanced" {
			t.Errorf("model = %q", got)
		}
		if got := q.Get("language"); got != "de" {
			t.Errorf("language = %q", got)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !bytes.HasPrefix(body, []byte("RIFF")) {
			t.Error("uploaded body is not a WAV container")
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"hello from deepgram","confidence":0.98}]}]}}`)
	}))
	defer srv.Close()

	p, err := deepgram.New("dg-test-key",
		deepgram.WithBaseURL(srv.URL),
		deepgram.WithModel("enhanced"),
		deepgram.WithLanguage("de"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello from deepgram" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Usage.TotalTokens == 0 {
		t.Error("Usage.TotalTokens = 0, want a local estimate")
	}
}

func TestTranscribeEmptyResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":{"channels":[]}}`)
	}))
	defer srv.Close()

	p, err := deepgram.New("dg-test-key", deepgram.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Transcribe(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "" {
		t.Errorf("Text = %q, want empty for no alternatives", got.Text)
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_msg":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := deepgram.New("dg-test-key", deepgram.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Transcribe(context.Background(), testClip())
	if err == nil {
		t.Fatal("Transcribe returned nil error on HTTP 401")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error %q does not mention the status code", err)
	}
}

func TestTranscribeEmptyClip(t *testing.T) {
	t.Parallel()
	p, err := deepgram.New("dg-test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), audio.Clip{}); err == nil {
		t.Fatal("Transcribe(empty clip) returned nil error")
	}
}
