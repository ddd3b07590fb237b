package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/replica/internal/state"
)

func setupIndex(t *testing.T) *state.DB {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate index: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Now()
	for _, id := range []string{"aaaa1111-done", "aaaa2222-done", "bbbb3333-live"} {
		err := db.CreateSession(&state.Session{
			ID:         id,
			TargetURL:  "https://example.com/" + id,
			SessionDir: "/tmp/" + id,
			StartedAt:  now,
		})
		if err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	for _, id := range []string{"aaaa1111-done", "aaaa2222-done"} {
		if err := db.FinishSession(id, state.Outcome{Status: state.SessionBelowThreshold}); err != nil {
			t.Fatalf("finish session: %v", err)
		}
	}
	return db
}

func TestForgetSession(t *testing.T) {
	db := setupIndex(t)

	s, err := forgetSession(db, "aaaa1111")
	if err != nil {
		t.Fatalf("forgetSession: %v", err)
	}
	if s.ID != "aaaa1111-done" {
		t.Errorf("removed %s, want aaaa1111-done", s.ID)
	}
	got, err := db.GetSession("aaaa1111-done")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("session still in the index")
	}
	if other, _ := db.GetSession("aaaa2222-done"); other == nil {
		t.Error("unrelated session was removed")
	}
}

func TestForgetSession_Errors(t *testing.T) {
	db := setupIndex(t)

	tests := []struct {
		id   string
		want string
	}{
		{"zzzz", "no session matches"},
		{"aaaa", "matches 2 sessions"},
		{"bbbb", "still running"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			_, err := forgetSession(db, tt.id)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("forgetSession(%q) = %v, want error containing %q", tt.id, err, tt.want)
			}
		})
	}

	if live, _ := db.GetSession("bbbb3333-live"); live == nil {
		t.Error("running session must not be removed")
	}
}
