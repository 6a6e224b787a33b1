package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vango-go/voicebridge/pkg/bridge/config"
	"github.com/vango-go/voicebridge/pkg/bridge/sessions"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config  config.Config
	Tracker *sessions.Tracker
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		ActiveSessions int      `json:"active_sessions"`
		ActiveStreams  []string `json:"active_streams,omitempty"`
		StoreEnabled   bool     `json:"store_enabled"`
		LLMProvider    string   `json:"llm_provider"`
		PublicHostSet  bool     `json:"public_host_set"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	if h.Config.OpenAIAPIKey == "" {
		issues = append(issues, "openai api key missing")
	}
	if h.Config.LLM == config.LLMProviderGemini && h.Config.GeminiAPIKey == "" {
		issues = append(issues, "gemini api key missing")
	}
	if h.Config.FrameDuration <= 0 {
		issues = append(issues, "frame duration must be > 0")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		ActiveSessions: h.Tracker.Count(),
		ActiveStreams:  h.Tracker.ActiveStreams(),
		StoreEnabled:   h.Config.DatabaseURL != "",
		LLMProvider:    string(h.Config.LLM),
		PublicHostSet:  h.Config.PublicHost != "",
		Issues:         issues,
	})
}
