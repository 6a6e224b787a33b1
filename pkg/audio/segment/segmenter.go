// Package segment implements the voice-activity-driven utterance segmenter.
// It accumulates decoded telephony audio and decides when the caller has
// finished one contiguous utterance, using RMS energy against a configurable
// silence threshold plus wall-clock timers.
package segment

import (
	"log/slog"
	"time"

	"github.com/vango-go/voicebridge/pkg/audio"
)

// Config holds the per-session VAD thresholds. All five are deployment-time
// tunables; see DefaultConfig for the defaults.
type Config struct {
	// SilenceThresholdRMS is the RMS energy above which a chunk counts as
	// speech.
	SilenceThresholdRMS float64

	// MinSpeechDuration is the minimum utterance length before silence can
	// complete it.
	MinSpeechDuration time.Duration

	// MaxSpeechDuration bounds an utterance regardless of silence, keeping
	// latency and buffer growth bounded even on a stuck-open channel.
	MaxSpeechDuration time.Duration

	// SilenceDuration is the trailing silence required to end an utterance.
	SilenceDuration time.Duration

	// MinBufferDuration is the minimum buffered audio the transcription
	// service will accept.
	MinBufferDuration time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		SilenceThresholdRMS: 20,
		MinSpeechDuration:   500 * time.Millisecond,
		MaxSpeechDuration:   10 * time.Second,
		SilenceDuration:     time.Second,
		MinBufferDuration:   200 * time.Millisecond,
	}
}

// bytesPerSecond of buffered linear PCM at the telephony rate.
const bytesPerSecond = audio.WireSampleRate * audio.BytesPerSample

// Segmenter accumulates decoded audio chunks for one session and reports
// utterance completion. It is owned by a single session goroutine and is not
// safe for concurrent use.
type Segmenter struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	chunks      [][]byte
	bufferBytes int

	speechDetected    bool
	utteranceStart    time.Time
	lastSpeech        time.Time
	consecutiveSilent int
}

// New creates a segmenter. now may be nil, in which case time.Now is used;
// tests inject a fake clock.
func New(cfg Config, logger *slog.Logger, now func() time.Time) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Segmenter{cfg: cfg, logger: logger, now: now}
}

// AddChunk decodes one mu-law wire payload, classifies it as speech or
// silence by RMS energy, and appends the decoded PCM to the utterance buffer.
// It reports whether this chunk crossed the speech threshold; the session
// controller uses the per-chunk decision for barge-in while synthesized audio
// is playing. A chunk that fails to decode is logged and skipped; buffer and
// timers are left untouched.
//
// The utterance start time is set when the first chunk lands in an empty
// buffer, even if that chunk is silence: leading silence is retained so the
// transcription service sees the true onset.
func (s *Segmenter) AddChunk(wirePayload []byte) bool {
	pcm, err := audio.DecodeMuLaw(wirePayload)
	if err != nil {
		s.logger.Warn("dropping undecodable audio chunk", "err", err)
		return false
	}
	rms, err := audio.RMS(pcm)
	if err != nil {
		s.logger.Warn("dropping unmeasurable audio chunk", "err", err)
		return false
	}

	now := s.now()
	isSpeech := rms > s.cfg.SilenceThresholdRMS
	if isSpeech {
		s.lastSpeech = now
		s.consecutiveSilent = 0
		s.speechDetected = true
	} else {
		s.consecutiveSilent++
	}
	if len(s.chunks) == 0 {
		s.utteranceStart = now
	}
	s.chunks = append(s.chunks, pcm)
	s.bufferBytes += len(pcm)

	s.logger.Debug("audio chunk buffered", "rms", rms, "speech", isSpeech, "buffered_bytes", s.bufferBytes)
	return isSpeech
}

// SpeechDetected reports whether any chunk of the current utterance has
// crossed the speech threshold since the last drain.
func (s *Segmenter) SpeechDetected() bool {
	return s.speechDetected
}

// BufferedDuration returns the duration of audio accumulated so far.
func (s *Segmenter) BufferedDuration() time.Duration {
	return time.Duration(s.bufferBytes) * time.Second / bytesPerSecond
}

// HasCompleteUtterance reports whether the buffer holds a finished utterance:
// enough audio for the transcription service, and either confirmed speech
// followed by sufficient trailing silence, or the hard maximum duration. The
// maximum fires even without confirmed speech so a stuck-open channel cannot
// grow the buffer without bound.
func (s *Segmenter) HasCompleteUtterance() bool {
	if len(s.chunks) == 0 {
		return false
	}
	if s.BufferedDuration() < s.cfg.MinBufferDuration {
		return false
	}

	now := s.now()
	utteranceDur := now.Sub(s.utteranceStart)
	silenceDur := now.Sub(s.lastSpeech)

	if s.speechDetected && utteranceDur >= s.cfg.MinSpeechDuration && silenceDur >= s.cfg.SilenceDuration {
		return true
	}
	return utteranceDur >= s.cfg.MaxSpeechDuration
}

// TakeAndClear drains the buffer, returning all chunks concatenated in
// arrival order, and atomically resets the derived state. It returns nil for
// an empty buffer; callers treat that as "nothing to process".
func (s *Segmenter) TakeAndClear() []byte {
	if len(s.chunks) == 0 {
		return nil
	}

	out := make([]byte, 0, s.bufferBytes)
	for _, c := range s.chunks {
		out = append(out, c...)
	}

	s.chunks = nil
	s.bufferBytes = 0
	s.speechDetected = false
	s.utteranceStart = time.Time{}
	s.lastSpeech = time.Time{}
	s.consecutiveSilent = 0

	s.logger.Info("utterance drained", "bytes", len(out), "duration", time.Duration(len(out))*time.Second/bytesPerSecond)
	return out
}
