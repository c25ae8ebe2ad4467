// Command intervox is the main entry point for the Intervox interview server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/intervox-ai/intervox/internal/config"
	"github.com/intervox-ai/intervox/internal/interview"
	"github.com/intervox-ai/intervox/internal/observe"
	"github.com/intervox-ai/intervox/internal/server"
	sessionpg "github.com/intervox-ai/intervox/internal/session/postgres"
	"github.com/intervox-ai/intervox/pkg/provider/chat"
	"github.com/intervox-ai/intervox/pkg/provider/chat/anyllm"
	chatoai "github.com/intervox-ai/intervox/pkg/provider/chat/openai"
	"github.com/intervox-ai/intervox/pkg/provider/stt"
	"github.com/intervox-ai/intervox/pkg/provider/stt/deepgram"
	sttoai "github.com/intervox-ai/intervox/pkg/provider/stt/openai"
	"github.com/intervox-ai/intervox/pkg/provider/stt/whisper"
	"github.com/intervox-ai/intervox/pkg/provider/tts"
	"github.com/intervox-ai/intervox/pkg/provider/tts/coqui"
	"github.com/intervox-ai/intervox/pkg/provider/tts/elevenlabs"
	ttsoai "github.com/intervox-ai/intervox/pkg/provider/tts/openai"
)

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "intervox: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it without
	// rebuilding the logger.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	slog.Info("intervox starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "intervox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	deps, err := buildDeps(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Session store (optional) ──────────────────────────────────────────────
	if dsn := cfg.Store.PostgresDSN; dsn != "" {
		store, err := sessionpg.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect session store", "err", err)
			return 1
		}
		defer store.Close()
		deps.Store = store
		deps.StorePinger = store
		slog.Info("session store connected")
	} else {
		slog.Info("no session store configured, sessions are tracked locally only")
	}

	// ── Interview types ───────────────────────────────────────────────────────
	types := interview.NewTypes()
	for _, tc := range cfg.Interview.Types {
		if err := types.Register(interview.Type{Name: tc.Name, Prompt: tc.Prompt}); err != nil {
			slog.Error("invalid interview type", "name", tc.Name, "err", err)
			return 1
		}
	}
	deps.Types = types

	// ── Server ────────────────────────────────────────────────────────────────
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithAudioSettings(audioSettings(cfg.Audio)),
	}
	if cfg.Interview.DefaultType != "" {
		opts = append(opts, server.WithDefaultInterviewType(cfg.Interview.DefaultType))
	}
	if cfg.Interview.Voice != "" {
		v, err := tts.ParseVoice(cfg.Interview.Voice)
		if err != nil {
			slog.Error("invalid default voice", "voice", cfg.Interview.Voice, "err", err)
			return 1
		}
		opts = append(opts, server.WithDefaultVoice(v))
	}
	if cfg.Interview.JobDescription != "" {
		opts = append(opts, server.WithJobDescription(cfg.Interview.JobDescription))
	}
	srv := server.New(deps, opts...)

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		applyReload(config.Diff(old, new), new, level, srv, types)
	})
	if err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, listenAddr)
	slog.Info("server ready, press Ctrl+C to shut down")

	// ── Serve ─────────────────────────────────────────────────────────────────
	if tc := cfg.Server.TLS; tc != nil {
		err = srv.ListenAndServeTLS(ctx, listenAddr, tc.CertFile, tc.KeyFile)
	} else {
		err = srv.ListenAndServe(ctx, listenAddr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// applyReload hot-applies the safe subset of a config change: log level,
// default voice, and interview type prompts. Everything else needs a restart.
func applyReload(d config.ConfigDiff, cfg *config.Config, level *slog.LevelVar, srv *server.Server, types *interview.Types) {
	if d.LogLevelChanged {
		level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.VoiceChanged {
		v, err := tts.ParseVoice(d.NewVoice)
		if err != nil {
			slog.Warn("ignoring invalid voice from config reload", "voice", d.NewVoice, "err", err)
		} else {
			srv.SetDefaultVoice(v)
			slog.Info("default voice changed", "voice", d.NewVoice)
		}
	}
	for _, tc := range d.TypeChanges {
		if tc.Removed {
			slog.Warn("interview type removal requires a restart", "name", tc.Name)
			continue
		}
		for _, c := range cfg.Interview.Types {
			if c.Name != tc.Name {
				continue
			}
			if err := types.Register(interview.Type{Name: c.Name, Prompt: c.Prompt}); err != nil {
				slog.Warn("ignoring invalid interview type from config reload", "name", c.Name, "err", err)
			} else {
				slog.Info("interview type updated", "name", c.Name)
			}
		}
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the completion backends reached through any-llm-go.
// "openai" chat deliberately uses the native openai-go client instead, for
// streamed usage reporting.
var anyllmBackends = []string{
	"anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []sttoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttoai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, sttoai.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, sttoai.WithLanguage(lang))
		}
		return sttoai.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	// ── Chat ──────────────────────────────────────────────────────────────────

	reg.RegisterChat("openai", func(entry config.ProviderEntry) (chat.Provider, error) {
		var opts []chatoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, chatoai.WithBaseURL(entry.BaseURL))
		}
		return chatoai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, backend := range anyllmBackends {
		reg.RegisterChat(backend, func(entry config.ProviderEntry) (chat.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []ttsoai.Option
		if entry.BaseURL != "" {
			opts = append(opts, ttsoai.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, ttsoai.WithModel(entry.Model))
		}
		return ttsoai.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})
}

// buildDeps instantiates the providers named in cfg. STT, chat, and TTS are
// all required; the secondary transcriber is optional.
func buildDeps(cfg *config.Config, reg *config.Registry) (server.Deps, error) {
	var deps server.Deps

	if cfg.Providers.STT.Name == "" || cfg.Providers.Chat.Name == "" || cfg.Providers.TTS.Name == "" {
		return deps, errors.New("providers.stt, providers.chat, and providers.tts must all be configured")
	}

	p, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return deps, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	deps.STT = p
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if name := cfg.Providers.STTSecondary.Name; name != "" {
		p, err := reg.CreateSTT(cfg.Providers.STTSecondary)
		if err != nil {
			return deps, fmt.Errorf("create secondary stt provider %q: %w", name, err)
		}
		deps.SecondarySTT = p
		slog.Info("provider created", "kind", "stt_secondary", "name", name)
	}

	c, err := reg.CreateChat(cfg.Providers.Chat)
	if err != nil {
		return deps, fmt.Errorf("create chat provider %q: %w", cfg.Providers.Chat.Name, err)
	}
	deps.Chat = c
	slog.Info("provider created", "kind", "chat", "name", cfg.Providers.Chat.Name)

	t, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return deps, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	deps.TTS = t
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	return deps, nil
}

// audioSettings converts the config's millisecond fields to durations.
func audioSettings(a config.AudioConfig) server.AudioSettings {
	return server.AudioSettings{
		EnergyThreshold:  a.EnergyThreshold,
		SpeechFrames:     a.SpeechFrames,
		SilenceFrames:    a.SilenceFrames,
		MaxRecording:     time.Duration(a.MaxRecordingMS) * time.Millisecond,
		MinClipBytes:     a.MinClipBytes,
		SecondaryTimeout: time.Duration(a.SecondarySTTTimeoutMS) * time.Millisecond,
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, listenAddr string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Intervox, startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("STT 2nd", cfg.Providers.STTSecondary.Name, cfg.Providers.STTSecondary.Model)
	printProvider("Chat", cfg.Providers.Chat.Name, cfg.Providers.Chat.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	if cfg.Store.PostgresDSN != "" {
		fmt.Printf("║  Session store   : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Session store   : %-19s ║\n", "(local only)")
	}
	fmt.Printf("║  Custom types    : %-19d ║\n", len(cfg.Interview.Types))
	fmt.Printf("║  Listen addr     : %-19s ║\n", listenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
