package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/intervox-ai/intervox/pkg/audio"
	"github.com/intervox-ai/intervox/pkg/provider/chat"
	"github.com/intervox-ai/intervox/pkg/provider/tts"
	"github.com/intervox-ai/intervox/pkg/tokens"
)

// Gateway audio format: 16-bit signed little-endian PCM, mono, 16 kHz. The
// proxy transcribe endpoint assumes the same when the request does not say
// otherwise.
const (
	defaultSampleRate = 16000
	defaultChannels   = 1
)

type transcribeRequest struct {
	// AudioData is base64 PCM, either bare or as a data URL
	// ("data:...;base64,<payload>").
	AudioData  string `json:"audioData"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type usageJSON struct {
	PromptTokens     int `json:"promptTokens,omitempty"`
	CompletionTokens int `json:"completionTokens,omitempty"`
	TotalTokens      int `json:"totalTokens"`
}

// handleTranscribe proxies one clip to the primary transcription backend.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	pcm, err := decodeAudioData(req.AudioData)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	clip := audio.Clip{PCM: pcm, SampleRate: req.SampleRate, Channels: req.Channels}
	if clip.SampleRate == 0 {
		clip.SampleRate = defaultSampleRate
	}
	if clip.Channels == 0 {
		clip.Channels = defaultChannels
	}

	res, err := s.deps.STT.Transcribe(r.Context(), clip)
	if err != nil {
		s.log.Error("transcription failed", "error", err)
		s.metrics.RecordProviderError(r.Context(), "primary", "stt")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.RecordProviderRequest(r.Context(), "primary", "stt", "ok")

	writeJSON(w, http.StatusOK, map[string]any{
		"text":  res.Text,
		"usage": usageJSON{TotalTokens: res.Usage.TotalTokens},
	})
}

// decodeAudioData accepts bare base64 or a data URL and returns the raw
// bytes.
func decodeAudioData(data string) ([]byte, error) {
	if data == "" {
		return nil, fmt.Errorf("audioData is required")
	}
	if i := strings.IndexByte(data, ','); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("audioData is not valid base64: %v", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("audioData is empty")
	}
	return raw, nil
}

type chatProxyRequest struct {
	Messages []chatMessageJSON `json:"messages"`
}

type chatMessageJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleChat streams a completion as server-sent events. Each event carries
// the full text so far; the terminal event carries done, the final response,
// and usage. A mid-stream provider failure becomes an error event, not an
// HTTP error: headers are long gone by then.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	msgs := make([]chat.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chat.Message{Role: m.Role, Content: m.Content}
	}

	ch, err := s.deps.Chat.StreamCompletion(r.Context(), chat.Request{Messages: msgs})
	if err != nil {
		s.metrics.RecordProviderError(r.Context(), "chat", "chat")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(v any) {
		b, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}

	var sb strings.Builder
	var usage *chat.Usage
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			s.metrics.RecordProviderError(r.Context(), "chat", "chat")
			writeEvent(map[string]string{"error": chunk.Text})
			go drainChunks(ch)
			return
		}
		if chunk.FinishReason != "" {
			usage = chunk.Usage
			break
		}
		if chunk.Text != "" {
			sb.WriteString(chunk.Text)
			writeEvent(map[string]string{"content": sb.String()})
		}
	}
	go drainChunks(ch)
	s.metrics.RecordProviderRequest(r.Context(), "chat", "chat", "ok")

	response := sb.String()
	u := chat.Usage{}
	if usage != nil {
		u = *usage
	} else {
		tms := make([]tokens.Message, len(msgs))
		for i, m := range msgs {
			tms[i] = tokens.Message{Role: m.Role, Content: m.Content}
		}
		u.PromptTokens = tokens.ForMessages(tms)
		u.CompletionTokens = tokens.Count(response)
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	writeEvent(map[string]any{
		"done":     true,
		"response": response,
		"usage": usageJSON{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		},
	})
}

// drainChunks discards the remainder of an abandoned stream so the
// provider's goroutine can finish.
func drainChunks(ch <-chan chat.Chunk) {
	for range ch {
	}
}

type speechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// handleSpeech synthesizes text and returns the encoded audio bytes.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	voice, err := tts.ParseVoice(req.Voice)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.TTS.Synthesize(r.Context(), req.Text, voice)
	if err != nil {
		s.log.Error("speech synthesis failed", "error", err)
		s.metrics.RecordProviderError(r.Context(), "tts", "tts")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.RecordProviderRequest(r.Context(), "tts", "tts", "ok")

	ct := res.ContentType
	if ct == "" {
		ct = "audio/mpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", fmt.Sprint(len(res.Audio)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}

// handleFeedback runs a non-streaming completion over the supplied
// conversation and returns the reviewer text plus usage.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req chatProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages is required")
		return
	}

	msgs := make([]chat.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = chat.Message{Role: m.Role, Content: m.Content}
	}

	resp, err := s.deps.Chat.Complete(r.Context(), chat.Request{Messages: msgs})
	if err != nil {
		s.log.Error("feedback completion failed", "error", err)
		s.metrics.RecordProviderError(r.Context(), "chat", "chat")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.RecordProviderRequest(r.Context(), "chat", "chat", "ok")

	writeJSON(w, http.StatusOK, map[string]any{
		"feedback": resp.Content,
		"usage": usageJSON{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	})
}
