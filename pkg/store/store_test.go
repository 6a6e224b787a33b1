package store

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReverseTurns(t *testing.T) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	turns := []Turn{
		{ID: uuid.New(), Content: "third", CreatedAt: base.Add(2 * time.Second)},
		{ID: uuid.New(), Content: "second", CreatedAt: base.Add(time.Second)},
		{ID: uuid.New(), Content: "first", CreatedAt: base},
	}

	reverseTurns(turns)

	for i, want := range []string{"first", "second", "third"} {
		if turns[i].Content != want {
			t.Fatalf("turn %d = %q, want %q", i, turns[i].Content, want)
		}
	}
}

func TestReverseTurns_EmptyAndSingle(t *testing.T) {
	reverseTurns(nil)

	one := []Turn{{Content: "only"}}
	reverseTurns(one)
	if one[0].Content != "only" {
		t.Fatalf("single element changed")
	}
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no embedded migrations")
	}
}

func TestMigrations_CallsTableTracksStatus(t *testing.T) {
	sql, err := migrationsFS.ReadFile("migrations/00001_init.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}
	if !strings.Contains(string(sql), "status") {
		t.Fatalf("calls table has no status column")
	}
}
