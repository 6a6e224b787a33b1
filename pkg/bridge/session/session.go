// Package session runs one telephony call: it consumes the inbound media
// stream, segments caller speech, drives the utterance pipeline, and plays
// synthesized replies back at wire pace with barge-in support.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-go/voicebridge/pkg/audio/segment"
	"github.com/vango-go/voicebridge/pkg/bridge/metrics"
	"github.com/vango-go/voicebridge/pkg/bridge/protocol"
	"github.com/vango-go/voicebridge/pkg/bridge/sessions"
	"github.com/vango-go/voicebridge/pkg/bridge/status"
	"github.com/vango-go/voicebridge/pkg/pipeline"
)

// DefaultGreeting is spoken when a stream starts.
const DefaultGreeting = "Hello! I'm an AI assistant. How can I help you today?"

// State is the session's position in the listen/think/speak cycle.
type State int

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Pipeline is the utterance processor the session drives.
type Pipeline interface {
	ProcessUtterance(ctx context.Context, wirePCM []byte, history []pipeline.Turn) (*pipeline.Result, error)
	SynthesizeOnly(ctx context.Context, text string) ([]byte, error)
}

// Recorder persists call records. All persistence is best-effort: failures
// are logged and the call continues.
type Recorder interface {
	CreateCall(ctx context.Context, streamSID, callSID string) (uuid.UUID, error)
	EndCall(ctx context.Context, callID uuid.UUID) error
	AppendTurn(ctx context.Context, callID uuid.UUID, role, content string) error
}

type Config struct {
	FrameDuration time.Duration // pacing interval for outbound audio
	WriteTimeout  time.Duration
	Greeting      string // empty string disables the greeting
	HistoryWindow int    // turns of history given to the completion stage
	StoreTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		FrameDuration: 20 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
		Greeting:      DefaultGreeting,
		HistoryWindow: 10,
		StoreTimeout:  3 * time.Second,
	}
}

type Dependencies struct {
	Conn      Conn
	Logger    *slog.Logger
	Pipeline  Pipeline
	Segmenter *segment.Segmenter
	Recorder  Recorder // optional
	Status    *status.Sink
	Metrics   *metrics.Metrics
	Tracker   *sessions.Tracker
	Config    Config
}

// Session is single-goroutine at its core: Run owns all state, and the read
// loop and speak loop communicate with it over channels.
type Session struct {
	conn     Conn
	logger   *slog.Logger
	pipeline Pipeline
	seg      *segment.Segmenter
	recorder Recorder
	statuses *status.Sink
	metrics  *metrics.Metrics
	tracker  *sessions.Tracker
	cfg      Config

	writer *frameWriter

	state      State
	streamSID  string
	callSID    string
	callID     uuid.UUID
	hasCallID  bool
	history    []pipeline.Turn
	unregister func()

	cancelRun   context.CancelFunc
	speakCancel context.CancelFunc

	pipeCh     chan pipeOutcome
	senderDone chan error
}

type inboundFrame struct {
	data []byte
	err  error
}

type pipeOutcome struct {
	result   *pipeline.Result
	err      error
	greeting bool
}

func New(deps Dependencies) *Session {
	cfg := deps.Config
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 20 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		conn:       deps.Conn,
		logger:     logger,
		pipeline:   deps.Pipeline,
		seg:        deps.Segmenter,
		recorder:   deps.Recorder,
		statuses:   deps.Status,
		metrics:    deps.Metrics,
		tracker:    deps.Tracker,
		cfg:        cfg,
		writer:     &frameWriter{ws: deps.Conn, timeout: cfg.WriteTimeout},
		state:      StateIdle,
		pipeCh:     make(chan pipeOutcome, 1),
		senderDone: make(chan error, 1),
	}
}

// Run processes the stream until it stops, the peer disconnects, or ctx is
// canceled.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelRun = cancel
	defer s.teardown()

	readCh := make(chan inboundFrame, 64)
	go s.readLoop(ctx, readCh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case frame := <-readCh:
			if frame.err != nil {
				if isExpectedClose(frame.err) {
					s.logger.Info("media stream closed by peer")
					return nil
				}
				return frame.err
			}
			done, err := s.handleFrame(ctx, frame.data)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case outcome := <-s.pipeCh:
			s.handleOutcome(ctx, outcome)

		case err := <-s.senderDone:
			s.finishSpeaking(err)
		}
	}
}

func (s *Session) readLoop(ctx context.Context, out chan<- inboundFrame) {
	for {
		_, data, err := s.conn.ReadMessage()
		select {
		case out <- inboundFrame{data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func isExpectedClose(err error) bool {
	return errors.Is(err, io.EOF) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

// handleFrame dispatches one inbound frame. It reports done=true when the
// stream signaled its end.
func (s *Session) handleFrame(ctx context.Context, data []byte) (done bool, err error) {
	msg, err := protocol.DecodeInbound(data)
	if err != nil {
		// One malformed frame does not end a phone call.
		s.logger.Warn("dropping undecodable frame", "err", err)
		return false, nil
	}

	switch m := msg.(type) {
	case protocol.Connected:
		s.logger.Debug("media stream connected", "protocol", m.Protocol, "version", m.Version)
	case protocol.Start:
		s.handleStart(ctx, m)
	case protocol.Media:
		s.handleMedia(ctx, m)
	case protocol.Stop:
		s.logger.Info("media stream stopped", "stream_sid", m.StreamSID, "call_sid", m.CallSID)
		return true, nil
	case protocol.Mark:
		s.logger.Debug("playback mark acknowledged", "name", m.Name)
	}
	return false, nil
}

func (s *Session) handleStart(ctx context.Context, m protocol.Start) {
	s.streamSID = m.StreamSID
	s.callSID = m.CallSID
	s.logger = s.logger.With("stream_sid", m.StreamSID, "call_sid", m.CallSID)
	s.logger.Info("call started", "tracks", m.Tracks, "encoding", m.MediaFormat.Encoding)

	if s.tracker != nil {
		s.unregister = s.tracker.Register(m.StreamSID, sessions.Handle{CallSID: m.CallSID, Cancel: s.cancelRun})
	}
	if s.metrics != nil {
		s.metrics.SessionsTotal.Inc()
		s.metrics.ActiveSessions.Inc()
	}
	s.notify(status.StateConnected)

	if s.recorder != nil {
		storeCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
		defer cancel()
		id, err := s.recorder.CreateCall(storeCtx, m.StreamSID, m.CallSID)
		if err != nil {
			s.logger.Error("create call record failed", "err", err)
		} else {
			s.callID = id
			s.hasCallID = true
		}
	}

	if s.cfg.Greeting == "" {
		s.setState(StateListening, status.StateListening)
		return
	}
	s.setState(StateThinking, status.StateThinking)
	go func() {
		wire, err := s.pipeline.SynthesizeOnly(ctx, s.cfg.Greeting)
		outcome := pipeOutcome{greeting: true, err: err}
		if err == nil {
			outcome.result = &pipeline.Result{Reply: s.cfg.Greeting, Audio: wire}
		}
		select {
		case s.pipeCh <- outcome:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) handleMedia(ctx context.Context, m protocol.Media) {
	chunkIsSpeech := s.seg.AddChunk(m.Payload)

	switch s.state {
	case StateSpeaking:
		// Barge-in keys off the chunk just added, not the sticky
		// per-utterance flag: speech buffered while thinking must not let
		// a silent chunk cancel the reply.
		if chunkIsSpeech {
			s.bargeIn()
		}
	case StateListening:
		if s.seg.HasCompleteUtterance() {
			if pcm := s.seg.TakeAndClear(); pcm != nil {
				s.startPipeline(ctx, pcm)
			}
		}
	case StateIdle, StateThinking:
		// Buffer only. While thinking, new audio accumulates for the next
		// utterance.
	}
}

// bargeIn cancels playback when the caller speaks over the agent. The
// interrupting audio is already in the segmenter and becomes the next
// utterance.
func (s *Session) bargeIn() {
	if s.speakCancel == nil {
		return
	}
	s.speakCancel()
	s.speakCancel = nil

	if data, err := protocol.EncodeClear(s.streamSID); err == nil {
		if err := s.writer.write(data); err != nil {
			s.logger.Warn("clear frame write failed", "err", err)
		}
	}
	if s.metrics != nil {
		s.metrics.BargeIns.Inc()
	}
	s.logger.Info("barge-in, canceled playback")
	s.setState(StateListening, status.StateListening)
}

func (s *Session) startPipeline(ctx context.Context, pcm []byte) {
	s.setState(StateThinking, status.StateThinking)
	if s.metrics != nil {
		s.metrics.Utterances.Inc()
	}

	history := s.historyWindow()
	start := time.Now()
	go func() {
		res, err := s.pipeline.ProcessUtterance(ctx, pcm, history)
		if err == nil && s.metrics != nil {
			s.metrics.PipelineSeconds.Observe(time.Since(start).Seconds())
		}
		select {
		case s.pipeCh <- pipeOutcome{result: res, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *Session) handleOutcome(ctx context.Context, outcome pipeOutcome) {
	if outcome.err != nil {
		switch {
		case errors.Is(outcome.err, pipeline.ErrNoTranscript):
			s.logger.Debug("utterance had no transcript")
		default:
			s.logger.Error("pipeline turn failed", "err", outcome.err)
			var se *pipeline.StageError
			if s.metrics != nil && errors.As(outcome.err, &se) {
				s.metrics.StageFailures.WithLabelValues(string(se.Stage)).Inc()
			}
		}
		s.setState(StateListening, status.StateListening)
		return
	}

	res := outcome.result
	if outcome.greeting {
		// The greeting is a real assistant turn: later completions see it
		// as context, and the transcript records it.
		greet := pipeline.Turn{Role: pipeline.RoleAssistant, Content: res.Reply}
		s.history = append(s.history, greet)
		s.persistTurns(greet)
	} else {
		userTurn := pipeline.Turn{Role: pipeline.RoleUser, Content: res.Transcript}
		replyTurn := pipeline.Turn{Role: pipeline.RoleAssistant, Content: res.Reply}
		s.history = append(s.history, userTurn, replyTurn)
		s.persistTurns(userTurn, replyTurn)
	}

	if len(res.Audio) == 0 {
		s.setState(StateListening, status.StateListening)
		return
	}
	s.startSpeaking(ctx, res.Audio)
}

func (s *Session) startSpeaking(ctx context.Context, wire []byte) {
	speakCtx, cancel := context.WithCancel(ctx)
	s.speakCancel = cancel
	s.setState(StateSpeaking, status.StateSpeaking)

	go func() {
		err := s.sendPaced(speakCtx, wire)
		select {
		case s.senderDone <- err:
		case <-ctx.Done():
		}
	}()
}

// finishSpeaking handles the speak loop ending, either by playing out fully
// or by cancellation. After a barge-in the state is already Listening and is
// left alone.
func (s *Session) finishSpeaking(err error) {
	if s.speakCancel != nil {
		s.speakCancel()
		s.speakCancel = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("playback ended with error", "err", err)
	}
	if s.state == StateSpeaking {
		s.setState(StateListening, status.StateListening)
	}
}

// persistTurns writes turns to the store off the audio path, in order.
func (s *Session) persistTurns(turns ...pipeline.Turn) {
	if s.recorder == nil || !s.hasCallID || len(turns) == 0 {
		return
	}
	callID := s.callID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
		defer cancel()
		for _, turn := range turns {
			if err := s.recorder.AppendTurn(ctx, callID, turn.Role, turn.Content); err != nil {
				s.logger.Error("persist turn failed", "role", turn.Role, "err", err)
			}
		}
	}()
}

// historyWindow returns the most recent turns, bounded by config.
func (s *Session) historyWindow() []pipeline.Turn {
	if len(s.history) <= s.cfg.HistoryWindow {
		return append([]pipeline.Turn(nil), s.history...)
	}
	return append([]pipeline.Turn(nil), s.history[len(s.history)-s.cfg.HistoryWindow:]...)
}

func (s *Session) setState(st State, ext status.State) {
	if s.state == st {
		return
	}
	s.logger.Debug("session state", "from", s.state.String(), "to", st.String())
	s.state = st
	s.notify(ext)
}

func (s *Session) notify(st status.State) {
	if s.statuses == nil {
		return
	}
	s.statuses.Notify(status.Update{StreamSID: s.streamSID, CallSID: s.callSID, State: st})
}

func (s *Session) teardown() {
	if s.speakCancel != nil {
		s.speakCancel()
		s.speakCancel = nil
	}
	if s.unregister != nil {
		s.unregister()
		s.unregister = nil
		if s.metrics != nil {
			s.metrics.ActiveSessions.Dec()
		}
	}
	s.notify(status.StateDisconnected)
	if s.recorder != nil && s.hasCallID {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
		defer cancel()
		if err := s.recorder.EndCall(ctx, s.callID); err != nil {
			s.logger.Error("end call record failed", "err", err)
		}
	}
	_ = s.conn.Close()
	s.logger.Info("session closed")
}
