// Package pipeline turns one caller utterance into one spoken reply. It chains
// the three external stages (transcription, completion, synthesis) behind a
// single call and owns the audio format conversions at each boundary, so the
// session controller only ever handles telephony-rate audio.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/vango-go/voicebridge/pkg/audio"
)

// Conversation roles as used by the completion providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one exchange entry in the conversation history.
type Turn struct {
	Role    string
	Content string
}

// Transcriber converts speech to text. Input is 16-bit mono PCM at the
// transcription sample rate.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// Completer produces the assistant reply for a user message, given the prior
// conversation history in chronological order.
type Completer interface {
	Complete(ctx context.Context, history []Turn, userText string) (string, error)
}

// Synthesizer converts text to 16-bit mono PCM at the synthesis sample rate.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ErrNoTranscript is returned when transcription succeeds but yields no text.
// The session treats it as "nothing was said" and resumes listening.
var ErrNoTranscript = errors.New("pipeline: empty transcript")

// fallbackReply is spoken when the completion stage returns empty text.
const fallbackReply = "I'm sorry, I didn't catch that. Could you please repeat?"

// Config bounds each external stage independently so one slow provider cannot
// stall the whole turn.
type Config struct {
	TranscribeTimeout time.Duration
	CompleteTimeout   time.Duration
	SynthesizeTimeout time.Duration
}

// DefaultConfig returns the default stage timeouts.
func DefaultConfig() Config {
	return Config{
		TranscribeTimeout: 15 * time.Second,
		CompleteTimeout:   20 * time.Second,
		SynthesizeTimeout: 20 * time.Second,
	}
}

// Result is one completed pipeline turn. Audio is mu-law at the telephony
// rate, ready to frame and send.
type Result struct {
	Transcript string
	Reply      string
	Audio      []byte
}

// Adapter runs the utterance pipeline. Providers are injected so tests can
// substitute fakes for the external services.
type Adapter struct {
	stt    Transcriber
	llm    Completer
	tts    Synthesizer
	cfg    Config
	logger *slog.Logger
}

// New creates an adapter. logger may be nil.
func New(stt Transcriber, llm Completer, tts Synthesizer, cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{stt: stt, llm: llm, tts: tts, cfg: cfg, logger: logger}
}

// ProcessUtterance takes one drained utterance as 16-bit mono PCM at the
// telephony rate and runs it through transcription, completion, and synthesis.
// Errors are tagged with the stage that produced them. An utterance that
// transcribes to nothing returns ErrNoTranscript; an empty completion is
// replaced by a spoken clarification request rather than dead air.
func (a *Adapter) ProcessUtterance(ctx context.Context, wirePCM []byte, history []Turn) (*Result, error) {
	start := time.Now()

	upsampled, err := audio.UpsampleForTranscription(wirePCM)
	if err != nil {
		return nil, &StageError{Stage: StageTranscribe, Err: err}
	}

	transcript, err := a.transcribe(ctx, upsampled)
	if err != nil {
		return nil, &StageError{Stage: StageTranscribe, Err: err}
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, ErrNoTranscript
	}
	a.logger.Info("utterance transcribed", "chars", len(transcript), "elapsed", time.Since(start))

	reply, err := a.complete(ctx, history, transcript)
	if err != nil {
		return nil, &StageError{Stage: StageComplete, Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		a.logger.Warn("completion returned empty text, using clarification fallback")
		reply = fallbackReply
	}

	pcm, err := a.synthesize(ctx, reply)
	if err != nil {
		return nil, &StageError{Stage: StageSynthesize, Err: err}
	}
	wire, err := a.toWire(pcm)
	if err != nil {
		return nil, &StageError{Stage: StageSynthesize, Err: err}
	}

	a.logger.Info("pipeline turn complete",
		"transcript_chars", len(transcript),
		"reply_chars", len(reply),
		"audio_bytes", len(wire),
		"elapsed", time.Since(start))

	return &Result{Transcript: transcript, Reply: reply, Audio: wire}, nil
}

// SynthesizeOnly produces wire-ready audio for text the agent originates
// itself, such as the greeting.
func (a *Adapter) SynthesizeOnly(ctx context.Context, text string) ([]byte, error) {
	pcm, err := a.synthesize(ctx, text)
	if err != nil {
		return nil, &StageError{Stage: StageSynthesize, Err: err}
	}
	wire, err := a.toWire(pcm)
	if err != nil {
		return nil, &StageError{Stage: StageSynthesize, Err: err}
	}
	return wire, nil
}

func (a *Adapter) transcribe(ctx context.Context, pcm []byte) (string, error) {
	ctx, cancel := a.stageContext(ctx, a.cfg.TranscribeTimeout)
	defer cancel()
	return a.stt.Transcribe(ctx, pcm)
}

func (a *Adapter) complete(ctx context.Context, history []Turn, userText string) (string, error) {
	ctx, cancel := a.stageContext(ctx, a.cfg.CompleteTimeout)
	defer cancel()
	return a.llm.Complete(ctx, history, userText)
}

func (a *Adapter) synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := a.stageContext(ctx, a.cfg.SynthesizeTimeout)
	defer cancel()
	return a.tts.Synthesize(ctx, text)
}

func (a *Adapter) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// toWire converts synthesis-rate PCM to telephony mu-law.
func (a *Adapter) toWire(pcm []byte) ([]byte, error) {
	downsampled, err := audio.DownsampleToWire(pcm, audio.SynthesisSampleRate)
	if err != nil {
		return nil, err
	}
	return audio.EncodeMuLaw(downsampled)
}
