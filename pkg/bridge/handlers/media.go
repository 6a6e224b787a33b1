package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vango-go/voicebridge/pkg/audio/segment"
	"github.com/vango-go/voicebridge/pkg/bridge/config"
	"github.com/vango-go/voicebridge/pkg/bridge/metrics"
	"github.com/vango-go/voicebridge/pkg/bridge/session"
	"github.com/vango-go/voicebridge/pkg/bridge/sessions"
	"github.com/vango-go/voicebridge/pkg/bridge/status"
)

// MediaHandler upgrades /media to a websocket and runs one session per
// stream.
type MediaHandler struct {
	Config   config.Config
	Logger   *slog.Logger
	Pipeline session.Pipeline
	Recorder session.Recorder
	Status   *status.Sink
	Metrics  *metrics.Metrics
	Tracker  *sessions.Tracker
}

func (h MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{
		// The telephony provider sets no browser Origin header.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("media upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	seg := segment.New(segment.Config{
		SilenceThresholdRMS: h.Config.SilenceThresholdRMS,
		MinSpeechDuration:   h.Config.MinSpeechDuration,
		MaxSpeechDuration:   h.Config.MaxSpeechDuration,
		SilenceDuration:     h.Config.SilenceDuration,
		MinBufferDuration:   h.Config.MinBufferDuration,
	}, logger, nil)

	sess := session.New(session.Dependencies{
		Conn:      conn,
		Logger:    logger,
		Pipeline:  h.Pipeline,
		Segmenter: seg,
		Recorder:  h.Recorder,
		Status:    h.Status,
		Metrics:   h.Metrics,
		Tracker:   h.Tracker,
		Config: session.Config{
			FrameDuration: h.Config.FrameDuration,
			WriteTimeout:  h.Config.WriteTimeout,
			Greeting:      h.Config.Greeting,
			HistoryWindow: h.Config.HistoryWindow,
		},
	})

	if err := sess.Run(r.Context()); err != nil {
		logger.Error("session ended with error", "err", err)
	}
}
