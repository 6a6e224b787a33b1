package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/voicebridge/pkg/audio"
	"github.com/vango-go/voicebridge/pkg/bridge/protocol"
)

// Conn is the subset of a websocket connection the session uses. Tests
// substitute an in-memory implementation.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// playbackMarkName labels the mark sent after a fully played reply.
const playbackMarkName = "playback-complete"

// frameWriter serializes frame writes: the speak loop and the control path
// both write to the socket.
type frameWriter struct {
	ws      Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (w *frameWriter) write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, data)
}

// sendPaced writes mu-law audio as fixed-duration frames at real-time pace,
// so the telephony side never buffers more than it is playing. Cancellation
// is checked before every write: after a barge-in at most the frame already
// being written reaches the wire.
func (s *Session) sendPaced(ctx context.Context, wire []byte) error {
	frameBytes := int(s.cfg.FrameDuration * audio.WireSampleRate / time.Second)
	if frameBytes <= 0 {
		frameBytes = 160
	}

	ticker := time.NewTicker(s.cfg.FrameDuration)
	defer ticker.Stop()

	for off := 0; off < len(wire); off += frameBytes {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := off + frameBytes
		if end > len(wire) {
			end = len(wire)
		}
		data, err := protocol.EncodeMedia(s.streamSID, wire[off:end])
		if err != nil {
			return err
		}
		if err := s.writer.write(data); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.FramesSent.Inc()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	// A mark after the last frame lets the telephony side acknowledge when
	// playback actually finished on the device. Canceled sends skip it.
	data, err := protocol.EncodeMark(s.streamSID, playbackMarkName)
	if err != nil {
		return err
	}
	return s.writer.write(data)
}
