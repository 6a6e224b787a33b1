// Package handlers contains the bridge's HTTP surface: the voice webhook
// that tells telephony where to stream, the media websocket endpoint, and
// health endpoints.
package handlers

import (
	"encoding/xml"
	"log/slog"
	"net/http"

	"github.com/vango-go/voicebridge/pkg/bridge/config"
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// VoiceWebhookHandler answers the inbound-call webhook with instructions to
// open a media stream back to this server.
type VoiceWebhookHandler struct {
	Config config.Config
	Logger *slog.Logger
}

func (h VoiceWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	host := h.Config.PublicHost
	if host == "" {
		host = r.Host
	}
	streamURL := "wss://" + host + "/media"

	if h.Logger != nil {
		h.Logger.Info("voice webhook answered",
			"call_sid", r.FormValue("CallSid"),
			"from", r.FormValue("From"),
			"stream_url", streamURL)
	}

	body, err := xml.Marshal(twimlResponse{Connect: twimlConnect{Stream: twimlStream{URL: streamURL}}})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}
