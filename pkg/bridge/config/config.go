// Package config loads bridge configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLMProvider selects the completion backend.
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
)

type Config struct {
	Addr string

	// PublicHost is the externally reachable host used to build the media
	// stream URL in the webhook response, e.g. "bridge.example.com".
	PublicHost string

	// Providers.
	LLM           LLMProvider
	OpenAIAPIKey  string
	OpenAIBaseURL string // empty => api.openai.com
	GeminiAPIKey  string

	STTModel     string
	STTLanguage  string
	ChatModel    string
	SystemPrompt string
	TTSModel     string
	TTSVoice     string

	// Persistence. Empty DatabaseURL disables call recording.
	DatabaseURL string

	// Conversation behavior.
	Greeting      string
	HistoryWindow int

	// Voice activity detection.
	SilenceThresholdRMS float64
	MinSpeechDuration   time.Duration
	MaxSpeechDuration   time.Duration
	SilenceDuration     time.Duration
	MinBufferDuration   time.Duration

	// Stage timeouts.
	TranscribeTimeout time.Duration
	CompleteTimeout   time.Duration
	SynthesizeTimeout time.Duration

	// Transport.
	FrameDuration     time.Duration
	WriteTimeout      time.Duration
	ReadHeaderTimeout time.Duration

	StatusBuffer        int
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:       envOr("VOICEBRIDGE_ADDR", ":8080"),
		PublicHost: strings.TrimSpace(os.Getenv("VOICEBRIDGE_PUBLIC_HOST")),

		LLM:           LLMProvider(envOr("VOICEBRIDGE_LLM_PROVIDER", string(LLMProviderOpenAI))),
		OpenAIAPIKey:  strings.TrimSpace(os.Getenv("VOICEBRIDGE_OPENAI_API_KEY")),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("VOICEBRIDGE_OPENAI_BASE_URL")),
		GeminiAPIKey:  strings.TrimSpace(os.Getenv("VOICEBRIDGE_GEMINI_API_KEY")),

		STTModel:     envOr("VOICEBRIDGE_STT_MODEL", "whisper-1"),
		STTLanguage:  strings.TrimSpace(os.Getenv("VOICEBRIDGE_STT_LANGUAGE")),
		ChatModel:    envOr("VOICEBRIDGE_CHAT_MODEL", ""),
		SystemPrompt: strings.TrimSpace(os.Getenv("VOICEBRIDGE_SYSTEM_PROMPT")),
		TTSModel:     envOr("VOICEBRIDGE_TTS_MODEL", "tts-1"),
		TTSVoice:     envOr("VOICEBRIDGE_TTS_VOICE", "alloy"),

		DatabaseURL: strings.TrimSpace(os.Getenv("VOICEBRIDGE_DATABASE_URL")),

		Greeting:      envOr("VOICEBRIDGE_GREETING", "Hello! I'm an AI assistant. How can I help you today?"),
		HistoryWindow: envIntOr("VOICEBRIDGE_HISTORY_WINDOW", 10),

		SilenceThresholdRMS: envFloat64Or("VOICEBRIDGE_SILENCE_THRESHOLD_RMS", 20),
		MinSpeechDuration:   envDurationOr("VOICEBRIDGE_MIN_SPEECH_DURATION", 500*time.Millisecond),
		MaxSpeechDuration:   envDurationOr("VOICEBRIDGE_MAX_SPEECH_DURATION", 10*time.Second),
		SilenceDuration:     envDurationOr("VOICEBRIDGE_SILENCE_DURATION", time.Second),
		MinBufferDuration:   envDurationOr("VOICEBRIDGE_MIN_BUFFER_DURATION", 200*time.Millisecond),

		TranscribeTimeout: envDurationOr("VOICEBRIDGE_TRANSCRIBE_TIMEOUT", 15*time.Second),
		CompleteTimeout:   envDurationOr("VOICEBRIDGE_COMPLETE_TIMEOUT", 20*time.Second),
		SynthesizeTimeout: envDurationOr("VOICEBRIDGE_SYNTHESIZE_TIMEOUT", 20*time.Second),

		FrameDuration:     envDurationOr("VOICEBRIDGE_FRAME_DURATION", 20*time.Millisecond),
		WriteTimeout:      envDurationOr("VOICEBRIDGE_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout: envDurationOr("VOICEBRIDGE_READ_HEADER_TIMEOUT", 10*time.Second),

		StatusBuffer:        envIntOr("VOICEBRIDGE_STATUS_BUFFER", 64),
		ShutdownGracePeriod: envDurationOr("VOICEBRIDGE_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.LLM {
	case LLMProviderOpenAI, LLMProviderGemini:
	default:
		return Config{}, fmt.Errorf("VOICEBRIDGE_LLM_PROVIDER must be one of openai|gemini")
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("VOICEBRIDGE_OPENAI_API_KEY is required for transcription and synthesis")
	}
	if cfg.LLM == LLMProviderGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("VOICEBRIDGE_GEMINI_API_KEY must be set when VOICEBRIDGE_LLM_PROVIDER=gemini")
	}

	if cfg.SilenceThresholdRMS < 0 {
		return Config{}, fmt.Errorf("VOICEBRIDGE_SILENCE_THRESHOLD_RMS must be >= 0")
	}
	if cfg.MinSpeechDuration <= 0 {
		return Config{}, fmt.Errorf("VOICEBRIDGE_MIN_SPEECH_DURATION must be > 0")
	}
	if cfg.MaxSpeechDuration <= cfg.MinSpeechDuration {
		return Config{}, fmt.Errorf("VOICEBRIDGE_MAX_SPEECH_DURATION must be > VOICEBRIDGE_MIN_SPEECH_DURATION")
	}
	if cfg.SilenceDuration <= 0 {
		return Config{}, fmt.Errorf("VOICEBRIDGE_SILENCE_DURATION must be > 0")
	}
	if cfg.MinBufferDuration <= 0 {
		return Config{}, fmt.Errorf("VOICEBRIDGE_MIN_BUFFER_DURATION must be > 0")
	}
	if cfg.FrameDuration <= 0 {
		return Config{}, fmt.Errorf("VOICEBRIDGE_FRAME_DURATION must be > 0")
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("VOICEBRIDGE_HISTORY_WINDOW must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
