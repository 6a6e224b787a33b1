// Package store persists call records and conversation turns in Postgres.
// Persistence is best-effort from the session's point of view: a failed write
// is logged and the call continues, so the audio path never blocks on the
// database.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Call is one telephony call handled by the bridge.
type Call struct {
	ID        uuid.UUID
	StreamSID string
	CallSID   string
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Turn is one conversation entry within a call.
type Turn struct {
	ID        uuid.UUID
	CallID    uuid.UUID
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a connection pool for the given DSN and verifies it with a
// ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// CreateCall records the start of a call and returns its ID.
func (s *Store) CreateCall(ctx context.Context, streamSID, callSID string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO calls (id, stream_sid, call_sid, status, started_at) VALUES ($1, $2, $3, 'connected', now())`,
		id, streamSID, callSID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert call: %w", err)
	}
	return id, nil
}

// EndCall stamps the call's end time.
func (s *Store) EndCall(ctx context.Context, callID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE calls SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`,
		callID)
	if err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	return nil
}

// UpdateStatus records the latest call state. The status sink keys updates by
// stream SID because sessions report transitions before any call ID exists on
// their side.
func (s *Store) UpdateStatus(ctx context.Context, streamSID, state string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE calls SET status = $2 WHERE stream_sid = $1`,
		streamSID, state)
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	return nil
}

// AppendTurn records one conversation turn for a call.
func (s *Store) AppendTurn(ctx context.Context, callID uuid.UUID, role, content string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_turns (id, call_id, role, content, created_at) VALUES ($1, $2, $3, $4, now())`,
		uuid.New(), callID, role, content)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// RecentTurns returns the last limit turns of a call in chronological order.
func (s *Store) RecentTurns(ctx context.Context, callID uuid.UUID, limit int) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, call_id, role, content, created_at
		   FROM conversation_turns
		  WHERE call_id = $1
		  ORDER BY created_at DESC, id DESC
		  LIMIT $2`,
		callID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.CallID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	reverseTurns(turns)
	return turns, nil
}

// GetCall fetches one call record.
func (s *Store) GetCall(ctx context.Context, callID uuid.UUID) (*Call, error) {
	var c Call
	err := s.pool.QueryRow(ctx,
		`SELECT id, stream_sid, call_sid, status, started_at, ended_at FROM calls WHERE id = $1`,
		callID).Scan(&c.ID, &c.StreamSID, &c.CallSID, &c.Status, &c.StartedAt, &c.EndedAt)
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return &c, nil
}

// reverseTurns flips newest-first query results into chronological order.
func reverseTurns(turns []Turn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
