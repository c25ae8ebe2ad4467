package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/intervox-ai/intervox/pkg/provider/tts"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":  {"openai", "whisper", "deepgram"},
	"chat": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":  {"openai", "elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider names: warn for unrecognised values, they may be typos.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTSecondary.Name)
	validateProviderName("chat", cfg.Providers.Chat.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	// Provider availability warnings
	if cfg.Providers.Chat.Name == "" {
		slog.Warn("no chat provider configured; the interviewer will not be able to respond")
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("no stt provider configured; spoken answers cannot be transcribed")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no tts provider configured; replies will be text-only")
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; sessions will be tracked locally only")
	}

	// Audio tuning
	if cfg.Audio.EnergyThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio.energy_threshold %.2f must not be negative", cfg.Audio.EnergyThreshold))
	}
	if cfg.Audio.SpeechFrames < 0 {
		errs = append(errs, fmt.Errorf("audio.speech_frames %d must not be negative", cfg.Audio.SpeechFrames))
	}
	if cfg.Audio.SilenceFrames < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_frames %d must not be negative", cfg.Audio.SilenceFrames))
	}
	if cfg.Audio.MaxRecordingMS < 0 {
		errs = append(errs, fmt.Errorf("audio.max_recording_ms %d must not be negative", cfg.Audio.MaxRecordingMS))
	}
	if cfg.Audio.MinClipBytes < 0 {
		errs = append(errs, fmt.Errorf("audio.min_clip_bytes %d must not be negative", cfg.Audio.MinClipBytes))
	}
	if cfg.Audio.SecondarySTTTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("audio.secondary_stt_timeout_ms %d must not be negative", cfg.Audio.SecondarySTTTimeoutMS))
	}
	if cfg.Audio.SpeechFrames > 0 && cfg.Audio.SilenceFrames > 0 && cfg.Audio.SilenceFrames <= cfg.Audio.SpeechFrames {
		slog.Warn("audio.silence_frames is not larger than audio.speech_frames; turns may end during natural pauses",
			"speech_frames", cfg.Audio.SpeechFrames,
			"silence_frames", cfg.Audio.SilenceFrames,
		)
	}

	// Interview
	if cfg.Interview.Voice != "" {
		if _, err := tts.ParseVoice(cfg.Interview.Voice); err != nil {
			errs = append(errs, fmt.Errorf("interview.voice: %w", err))
		}
	}
	typeNamesSeen := make(map[string]int, len(cfg.Interview.Types))
	for i, t := range cfg.Interview.Types {
		prefix := fmt.Sprintf("interview.types[%d]", i)
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := typeNamesSeen[t.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of interview.types[%d]", prefix, t.Name, prev))
			}
			typeNamesSeen[t.Name] = i
		}
		if t.Prompt == "" {
			errs = append(errs, fmt.Errorf("%s.prompt is required", prefix))
		}
	}

	// Secondary STT without a primary is almost certainly a mistake.
	if cfg.Providers.STTSecondary.Name != "" && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_secondary is configured but providers.stt is not"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
