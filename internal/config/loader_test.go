package config_test

import (
	"strings"
	"testing"

	"github.com/intervox-ai/intervox/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
providers:
  stt:
    name: openai
    api_key: sk-test
    model: whisper-1
  stt_secondary:
    name: whisper
    base_url: http://localhost:9000
  chat:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    name: openai
    api_key: sk-test
store:
  postgres_dsn: "postgres://localhost/intervox"
audio:
  energy_threshold: 300
  speech_frames: 3
  silence_frames: 50
  max_recording_ms: 30000
  min_clip_bytes: 1000
  secondary_stt_timeout_ms: 15000
interview:
  default_type: software-engineer
  voice: nova
  types:
    - name: sre
      prompt: You interview SRE candidates.
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.STTSecondary.BaseURL != "http://localhost:9000" {
		t.Errorf("stt_secondary.base_url = %q", cfg.Providers.STTSecondary.BaseURL)
	}
	if cfg.Audio.SilenceFrames != 50 {
		t.Errorf("silence_frames = %d", cfg.Audio.SilenceFrames)
	}
	if len(cfg.Interview.Types) != 1 || cfg.Interview.Types[0].Name != "sre" {
		t.Errorf("interview.types = %+v", cfg.Interview.Types)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  bind_port: 9090
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidVoice(t *testing.T) {
	t.Parallel()
	yaml := `
interview:
  voice: baritone
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown voice, got nil")
	}
	if !strings.Contains(err.Error(), "voice") {
		t.Errorf("error should mention voice, got: %v", err)
	}
}

func TestValidate_DuplicateTypeNames(t *testing.T) {
	t.Parallel()
	yaml := `
interview:
  types:
    - name: sre
      prompt: one
    - name: sre
      prompt: two
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for duplicate type names, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("error should mention duplicate, got: %v", err)
	}
}

func TestValidate_TypeRequiresNameAndPrompt(t *testing.T) {
	t.Parallel()
	yaml := `
interview:
  types:
    - name: ""
      prompt: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "name is required") {
		t.Errorf("error should mention the missing name, got: %v", err)
	}
	if !strings.Contains(errStr, "prompt is required") {
		t.Errorf("error should mention the missing prompt, got: %v", err)
	}
}

func TestValidate_NegativeAudioValues(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  energy_threshold: -1
  speech_frames: -3
  min_clip_bytes: -500
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	for _, field := range []string{"energy_threshold", "speech_frames", "min_clip_bytes"} {
		if !strings.Contains(errStr, field) {
			t.Errorf("error should mention %s, got: %v", field, err)
		}
	}
}

func TestValidate_SecondaryWithoutPrimary(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  stt_secondary:
    name: whisper
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for secondary stt without primary, got nil")
	}
	if !strings.Contains(err.Error(), "stt_secondary") {
		t.Errorf("error should mention stt_secondary, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/intervox/cert.pem
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for partial TLS config, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_EmptyConfigIsValid(t *testing.T) {
	t.Parallel()
	// An empty config is legal: everything warns, nothing errors.
	if err := config.Validate(&config.Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	chatNames := config.ValidProviderNames["chat"]
	if len(chatNames) == 0 {
		t.Fatal("ValidProviderNames[\"chat\"] should not be empty")
	}
	found := false
	for _, n := range chatNames {
		if n == "openai" {
			found = true
			break
		}
	}
	if !found {
		t.Error("ValidProviderNames[\"chat\"] should contain \"openai\"")
	}
}
