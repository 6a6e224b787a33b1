package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vango-go/voicebridge/pkg/store"
)

type fakeCallStore struct {
	call      *store.Call
	turns     []store.Turn
	gotLimit  int
	gotCallID uuid.UUID
}

func (f *fakeCallStore) GetCall(ctx context.Context, callID uuid.UUID) (*store.Call, error) {
	f.gotCallID = callID
	if f.call == nil {
		return nil, pgx.ErrNoRows
	}
	return f.call, nil
}

func (f *fakeCallStore) RecentTurns(ctx context.Context, callID uuid.UUID, limit int) ([]store.Turn, error) {
	f.gotLimit = limit
	return f.turns, nil
}

func callRequest(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/calls/"+id, nil)
	req.SetPathValue("id", id)
	return req
}

func TestCallLogHandler_ReturnsCallWithTurns(t *testing.T) {
	callID := uuid.New()
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fs := &fakeCallStore{
		call: &store.Call{ID: callID, StreamSID: "MZ1", CallSID: "CA1", Status: "disconnected", StartedAt: started},
		turns: []store.Turn{
			{Role: "assistant", Content: "hello there", CreatedAt: started},
			{Role: "user", Content: "hi", CreatedAt: started.Add(time.Second)},
		},
	}
	h := CallLogHandler{Store: fs}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, callRequest(callID.String()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		ID        uuid.UUID `json:"id"`
		StreamSID string    `json:"stream_sid"`
		Status    string    `json:"status"`
		Turns     []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.ID != callID || resp.StreamSID != "MZ1" || resp.Status != "disconnected" {
		t.Fatalf("call = %+v", resp)
	}
	if len(resp.Turns) != 2 || resp.Turns[0].Role != "assistant" || resp.Turns[1].Content != "hi" {
		t.Fatalf("turns = %+v", resp.Turns)
	}
	if fs.gotCallID != callID {
		t.Fatalf("queried call %s, want %s", fs.gotCallID, callID)
	}
	if fs.gotLimit != defaultTurnLimit {
		t.Fatalf("limit = %d, want %d", fs.gotLimit, defaultTurnLimit)
	}
}

func TestCallLogHandler_LimitOverride(t *testing.T) {
	fs := &fakeCallStore{call: &store.Call{ID: uuid.New()}}
	h := CallLogHandler{Store: fs}

	req := callRequest(fs.call.ID.String())
	req.URL.RawQuery = "limit=5"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || fs.gotLimit != 5 {
		t.Fatalf("status = %d, limit = %d", rec.Code, fs.gotLimit)
	}
}

func TestCallLogHandler_Errors(t *testing.T) {
	h := CallLogHandler{Store: &fakeCallStore{}}

	cases := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"unknown call", callRequest(uuid.New().String()), http.StatusNotFound},
		{"bad id", callRequest("not-a-uuid"), http.StatusBadRequest},
		{"post", httptest.NewRequest(http.MethodPost, "/calls/x", nil), http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, tc.req)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.status)
		}
	}
}
