// Package status publishes call lifecycle transitions to an out-of-band
// consumer without ever blocking the audio path.
package status

import (
	"log/slog"
	"sync"
	"time"
)

// State is a coarse call state for external observers.
type State string

const (
	StateConnected    State = "connected"
	StateListening    State = "listening"
	StateThinking     State = "thinking"
	StateSpeaking     State = "speaking"
	StateDisconnected State = "disconnected"
)

// Update is one state transition on one stream.
type Update struct {
	StreamSID string
	CallSID   string
	State     State
	At        time.Time
}

// Handler consumes updates. It runs on the sink's worker goroutine and may
// block without affecting sessions.
type Handler func(Update)

// Sink fans session state transitions out to a handler asynchronously.
// Notify never blocks: when the buffer is full the update is dropped and
// counted, because a slow observer must not stall a live call.
type Sink struct {
	ch      chan Update
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewSink starts a sink delivering to handler. A nil handler logs updates at
// debug level.
func NewSink(handler Handler, buffer int, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	if handler == nil {
		handler = func(u Update) {
			logger.Debug("call status", "stream_sid", u.StreamSID, "state", string(u.State))
		}
	}

	s := &Sink{
		ch:     make(chan Update, buffer),
		logger: logger,
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for u := range s.ch {
			handler(u)
		}
	}()
	return s
}

// Notify queues an update without blocking. Updates sent after Close are
// dropped.
func (s *Sink) Notify(u Update) {
	if u.At.IsZero() {
		u.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- u:
	default:
		s.dropped++
		s.logger.Warn("status update dropped", "stream_sid", u.StreamSID, "state", string(u.State), "dropped_total", s.dropped)
	}
}

// Dropped returns the number of updates discarded due to a full buffer.
func (s *Sink) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops the worker after draining queued updates.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
}
