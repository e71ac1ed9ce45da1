package store

import (
	"testing"

	"github.com/torvik/statusbridge/internal/shared"
)

func newTestStore(t *testing.T) *TokenStore {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewTokenStore(db)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestTokenStore(t *testing.T) {
	t.Run("Round Trip", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.Set(KeySpotifyRefresh, "refresh-abc"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		value, err := s.Get(KeySpotifyRefresh)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if value != "refresh-abc" {
			t.Errorf("expected 'refresh-abc', got %q", value)
		}
	})

	t.Run("Missing Key", func(t *testing.T) {
		s := newTestStore(t)

		value, err := s.Get("nope")
		if err != nil {
			t.Fatalf("expected no error for missing key, got %v", err)
		}
		if value != "" {
			t.Errorf("expected empty value, got %q", value)
		}
	})

	t.Run("Last Write Wins", func(t *testing.T) {
		s := newTestStore(t)

		for _, v := range []string{"first", "second", "third"} {
			if err := s.Set(KeyMicrosoftRefresh, v); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		value, err := s.Get(KeyMicrosoftRefresh)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if value != "third" {
			t.Errorf("expected 'third', got %q", value)
		}
	})

	t.Run("Keys Are Independent", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.Set(KeyMicrosoftRefresh, "ms"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := s.Set(KeySpotifyRefresh, "sp"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		ms, _ := s.Get(KeyMicrosoftRefresh)
		sp, _ := s.Get(KeySpotifyRefresh)
		if ms != "ms" || sp != "sp" {
			t.Errorf("expected independent values, got %q and %q", ms, sp)
		}
	})
}
