package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vango-go/voicebridge/internal/dotenv"
	"github.com/vango-go/voicebridge/pkg/bridge/config"
	"github.com/vango-go/voicebridge/pkg/bridge/server"
	"github.com/vango-go/voicebridge/pkg/bridge/status"
	"github.com/vango-go/voicebridge/pkg/pipeline"
	"github.com/vango-go/voicebridge/pkg/pipeline/llm"
	"github.com/vango-go/voicebridge/pkg/pipeline/stt"
	"github.com/vango-go/voicebridge/pkg/pipeline/tts"
	"github.com/vango-go/voicebridge/pkg/store"
)

func buildCompleter(ctx context.Context, cfg config.Config) (pipeline.Completer, error) {
	switch cfg.LLM {
	case config.LLMProviderGemini:
		return llm.NewGemini(ctx, cfg.GeminiAPIKey, llm.GeminiOptions{
			Model:        cfg.ChatModel,
			SystemPrompt: cfg.SystemPrompt,
		})
	default:
		return llm.NewOpenAI(cfg.OpenAIAPIKey, llm.Options{
			BaseURL:      cfg.OpenAIBaseURL,
			Model:        cfg.ChatModel,
			SystemPrompt: cfg.SystemPrompt,
		}), nil
	}
}

func buildPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pipeline.Adapter, error) {
	transcriber := stt.NewOpenAI(cfg.OpenAIAPIKey, stt.Options{
		BaseURL:  cfg.OpenAIBaseURL,
		Model:    cfg.STTModel,
		Language: cfg.STTLanguage,
	})
	completer, err := buildCompleter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build completer: %w", err)
	}
	synthesizer := tts.NewOpenAI(cfg.OpenAIAPIKey, tts.Options{
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.TTSModel,
		Voice:   cfg.TTSVoice,
	})

	return pipeline.New(transcriber, completer, synthesizer, pipeline.Config{
		TranscribeTimeout: cfg.TranscribeTimeout,
		CompleteTimeout:   cfg.CompleteTimeout,
		SynthesizeTimeout: cfg.SynthesizeTimeout,
	}, logger), nil
}

// buildStore connects to Postgres and runs migrations. An empty DSN disables
// persistence entirely, in which case the returned store is nil.
func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("call persistence disabled, no database configured")
		return nil, func() {}, nil
	}

	if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return store.New(pool), pool.Close, nil
}

// callStatusWriter is the slice of the store the status handler needs.
type callStatusWriter interface {
	UpdateStatus(ctx context.Context, streamSID, state string) error
}

// statusRecorder returns a sink handler that writes each call state
// transition to the call record. It runs on the sink's worker goroutine, so
// blocking on the database never touches the audio path.
func statusRecorder(st callStatusWriter, timeout time.Duration, logger *slog.Logger) status.Handler {
	return func(u status.Update) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := st.UpdateStatus(ctx, u.StreamSID, string(u.State)); err != nil {
			logger.Error("persist call status failed", "stream_sid", u.StreamSID, "state", string(u.State), "err", err)
		}
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	adapter, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	st, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	deps := server.Dependencies{Pipeline: adapter}
	var statusHandler status.Handler
	if st != nil {
		deps.Recorder = st
		deps.Calls = st
		statusHandler = statusRecorder(st, 3*time.Second, logger)
	}

	statusSink := status.NewSink(statusHandler, cfg.StatusBuffer, logger)
	defer statusSink.Close()
	deps.Status = statusSink

	srv := server.New(cfg, logger, deps)

	logger.Info("starting voicebridge",
		"addr", cfg.Addr,
		"llm_provider", string(cfg.LLM),
		"store_enabled", st != nil)

	listenErrCh := make(chan error, 1)
	go func() { listenErrCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("voicebridge stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "voicebridge: %v\n", err)
		return 1
	}
	if err := run(ctx, logger); err != nil {
		fmt.Fprintf(stderr, "voicebridge: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr))
}
