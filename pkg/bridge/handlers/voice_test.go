package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/vango-go/voicebridge/pkg/bridge/config"
	"github.com/vango-go/voicebridge/pkg/bridge/sessions"
)

func TestVoiceWebhook_ReturnsStreamInstruction(t *testing.T) {
	h := VoiceWebhookHandler{Config: config.Config{PublicHost: "bridge.example.com"}}

	form := url.Values{"CallSid": {"CA123"}, "From": {"+15550100"}}
	req := httptest.NewRequest(http.MethodPost, "/voice", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content type = %q", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `<Stream url="wss://bridge.example.com/media">`) &&
		!strings.Contains(string(body), `<Stream url="wss://bridge.example.com/media"></Stream>`) {
		t.Fatalf("body missing stream url: %s", body)
	}
	if !strings.Contains(string(body), "<Connect>") {
		t.Fatalf("body missing connect element: %s", body)
	}
}

func TestVoiceWebhook_FallsBackToRequestHost(t *testing.T) {
	h := VoiceWebhookHandler{Config: config.Config{}}

	req := httptest.NewRequest(http.MethodPost, "/voice", nil)
	req.Host = "fallback.example.com"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "wss://fallback.example.com/media") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestVoiceWebhook_RejectsGet(t *testing.T) {
	h := VoiceWebhookHandler{}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voice", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReadyHandler_ReportsIssues(t *testing.T) {
	h := ReadyHandler{
		Config:  config.Config{LLM: config.LLMProviderGemini, FrameDuration: 0},
		Tracker: sessions.NewTracker(),
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"openai api key missing", "gemini api key missing", "frame duration"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body %q missing %q", body, want)
		}
	}
}

func TestReadyHandler_ListsActiveStreams(t *testing.T) {
	tracker := sessions.NewTracker()
	unregister := tracker.Register("MZ9", sessions.Handle{CallSID: "CA9"})
	defer unregister()

	h := ReadyHandler{
		Config:  config.Config{LLM: config.LLMProviderOpenAI, OpenAIAPIKey: "sk-test", FrameDuration: 20 * time.Millisecond},
		Tracker: tracker,
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "MZ9") {
		t.Fatalf("body %q missing active stream", body)
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}
