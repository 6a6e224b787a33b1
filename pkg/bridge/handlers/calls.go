package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vango-go/voicebridge/pkg/store"
)

// defaultTurnLimit bounds the turns returned for one call.
const defaultTurnLimit = 50

// CallStore is the read side of the store the call log handler needs.
type CallStore interface {
	GetCall(ctx context.Context, callID uuid.UUID) (*store.Call, error)
	RecentTurns(ctx context.Context, callID uuid.UUID, limit int) ([]store.Turn, error)
}

// CallLogHandler serves one call record with its recent conversation turns.
// Registered only when persistence is enabled.
type CallLogHandler struct {
	Store  CallStore
	Logger *slog.Logger
}

type callTurnResp struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type callResp struct {
	ID        uuid.UUID      `json:"id"`
	StreamSID string         `json:"stream_sid"`
	CallSID   string         `json:"call_sid"`
	Status    string         `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
	Turns     []callTurnResp `json:"turns"`
}

func (h CallLogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	callID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid call id", http.StatusBadRequest)
		return
	}
	limit := defaultTurnLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	call, err := h.Store.GetCall(r.Context(), callID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "call not found", http.StatusNotFound)
			return
		}
		logger.Error("fetch call failed", "call_id", callID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	turns, err := h.Store.RecentTurns(r.Context(), callID, limit)
	if err != nil {
		logger.Error("fetch turns failed", "call_id", callID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := callResp{
		ID:        call.ID,
		StreamSID: call.StreamSID,
		CallSID:   call.CallSID,
		Status:    call.Status,
		StartedAt: call.StartedAt,
		EndedAt:   call.EndedAt,
		Turns:     make([]callTurnResp, 0, len(turns)),
	}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, callTurnResp{Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}
