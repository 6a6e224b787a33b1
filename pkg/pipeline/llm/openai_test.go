package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/voicebridge/pkg/pipeline"
)

func TestNewOpenAI_Defaults(t *testing.T) {
	p := NewOpenAI("api-key", Options{})
	if p.model != "gpt-4o-mini" || p.maxTokens != 150 || p.temp != 0.7 {
		t.Fatalf("defaults = %q/%d/%f", p.model, p.maxTokens, p.temp)
	}
	if p.system != DefaultSystemPrompt {
		t.Fatalf("system prompt not defaulted")
	}
}

func TestComplete_BuildsMessagesInOrder(t *testing.T) {
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"sure thing"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("api-key", Options{BaseURL: srv.URL})
	history := []pipeline.Turn{
		{Role: pipeline.RoleUser, Content: "first"},
		{Role: pipeline.RoleAssistant, Content: "second"},
	}
	reply, err := p.Complete(context.Background(), history, "third")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "sure thing" {
		t.Fatalf("reply = %q", reply)
	}

	if len(gotReq.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Fatalf("first message role = %q, want system", gotReq.Messages[0].Role)
	}
	if gotReq.Messages[1].Content != "first" || gotReq.Messages[2].Content != "second" {
		t.Fatalf("history out of order: %v", gotReq.Messages)
	}
	if last := gotReq.Messages[3]; last.Role != "user" || last.Content != "third" {
		t.Fatalf("last message = %v", last)
	}
	if gotReq.MaxTokens != 150 {
		t.Fatalf("max_tokens = %d", gotReq.MaxTokens)
	}
}

func TestComplete_NoChoicesIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	p := NewOpenAI("api-key", Options{BaseURL: srv.URL})
	if _, err := p.Complete(context.Background(), nil, "hello"); err == nil {
		t.Fatalf("expected error for empty choices")
	}
}
