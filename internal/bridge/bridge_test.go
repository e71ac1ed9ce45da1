package bridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/torvik/statusbridge/internal/publish"
	"github.com/torvik/statusbridge/internal/services"
	"github.com/torvik/statusbridge/internal/session"
	"github.com/torvik/statusbridge/internal/shared"
	sbtesting "github.com/torvik/statusbridge/internal/testing"
	"golang.org/x/oauth2"
)

type memStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemStore() *memStore { return &memStore{m: map[string]string{}} }

func (s *memStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *memStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

// tokenServer counts token-endpoint requests and hands out numbered pairs.
type tokenServer struct {
	*httptest.Server
	requests atomic.Int64
	fail     atomic.Bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.requests.Add(1)
		if ts.fail.Load() {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"access-%d","refresh_token":"refresh-%d","token_type":"Bearer"}`, n, n)
	}))
	t.Cleanup(ts.Close)
	return ts
}

// playerServer serves a minimal now-playing payload and can reject the next
// request with a 401 regardless of the bearer presented.
type playerServer struct {
	*httptest.Server
	rejectNext atomic.Bool
	failAll    atomic.Bool
	requests   atomic.Int64
	track      atomic.Value
}

func newPlayerServer(t *testing.T) *playerServer {
	t.Helper()
	ps := &playerServer{}
	ps.track.Store("Song")
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ps.requests.Add(1)
		if ps.failAll.Load() {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}
		if ps.rejectNext.CompareAndSwap(true, false) {
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"is_playing":true,"item":{"name":%q,"artists":[{"name":"Artist"}]},"device":{"name":"Desk"}}`,
			ps.track.Load().(string))
	}))
	t.Cleanup(ps.Close)
	return ps
}

type fixture struct {
	bridge  *Bridge
	session *session.Session
	store   *memStore
	tokens  *tokenServer
	player  *playerServer
	sink    string
}

func newFixture(t *testing.T, refreshToken string) *fixture {
	t.Helper()
	logger := shared.NewLogger(nil)

	tokens := newTokenServer(t)
	player := newPlayerServer(t)

	store := newMemStore()
	if refreshToken != "" {
		store.Set("spotify_refresh", refreshToken)
	}

	conf := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8888/callback",
		Scopes:       []string{"user-read-playback-state"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/authorize",
			TokenURL: tokens.URL,
		},
	}

	sess, err := session.New(conf, store, "spotify_refresh", logger)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	playerClient := services.NewPlayerClient(player.Client(), sess)
	playerClient.SetBaseURL(player.URL)

	sink := filepath.Join(t.TempDir(), "spotify")
	publisher := publish.New(publish.ModePlain, sink, "", "", logger)

	b := New(Options{
		Name:              "playback",
		Session:           sess,
		Poller:            &PlaybackPoller{Client: playerClient, Width: 35},
		Publisher:         publisher,
		Logger:            logger,
		HomeURL:           "http://localhost:8888",
		FetchFailedStatus: "Couldn't get currently playing data",
	})

	return &fixture{bridge: b, session: sess, store: store, tokens: tokens, player: player, sink: sink}
}

func TestBridge(t *testing.T) {
	t.Run("Home Redirects To Login When Logged Out", func(t *testing.T) {
		f := newFixture(t, "")

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Errorf("expected redirect to /login, got %q", loc)
		}
		if got := sbtesting.MustReadFile(t, f.sink); got != "Not logged in, please visit http://localhost:8888" {
			t.Errorf("expected login hint in sink, got %q", got)
		}
		if f.tokens.requests.Load() != 0 {
			t.Errorf("expected no token requests while logged out, got %d", f.tokens.requests.Load())
		}
	})

	t.Run("Login Redirects To Provider", func(t *testing.T) {
		f := newFixture(t, "")

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		loc := rec.Header().Get("Location")
		for _, want := range []string{"accounts.example.com/authorize", "client_id=client-id", "state="} {
			if !strings.Contains(loc, want) {
				t.Errorf("expected authorization URL to contain %q, got %q", want, loc)
			}
		}
	})

	t.Run("Home Publishes Now Playing", func(t *testing.T) {
		f := newFixture(t, "seed-refresh")

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Body.String() != "Song - Artist" {
			t.Errorf("expected summary in response, got %q", rec.Body.String())
		}
		if got := sbtesting.MustReadFile(t, f.sink); got != "Song - Artist" {
			t.Errorf("expected plain sink content, got %q", got)
		}
	})

	t.Run("Rejected Token Refreshed Once", func(t *testing.T) {
		f := newFixture(t, "seed-refresh")

		// Warm the session so an access token is cached.
		if _, err := f.bridge.RunPoll(context.Background()); err != nil {
			t.Fatalf("warm-up poll failed: %v", err)
		}
		before := f.tokens.requests.Load()

		f.player.rejectNext.Store(true)
		f.player.track.Store("Next Song")

		info, err := f.bridge.RunPoll(context.Background())
		if err != nil {
			t.Fatalf("poll after rejection failed: %v", err)
		}
		if info != "Next Song - Artist" {
			t.Errorf("expected retried summary, got %q", info)
		}
		if got := f.tokens.requests.Load() - before; got != 1 {
			t.Errorf("expected exactly one refresh after rejection, got %d", got)
		}
	})

	t.Run("Refresh Failure Publishes Fixed Status", func(t *testing.T) {
		f := newFixture(t, "seed-refresh")
		f.tokens.fail.Store(true)

		info, err := f.bridge.RunPoll(context.Background())
		if err == nil {
			t.Fatal("expected refresh failure")
		}
		if info != "Error getting access token from refresh token" {
			t.Errorf("unexpected status: %q", info)
		}
		if got := sbtesting.MustReadFile(t, f.sink); got != info {
			t.Errorf("expected status in sink, got %q", got)
		}
		if got, _ := f.store.Get("spotify_refresh"); got != "seed-refresh" {
			t.Errorf("refresh token must survive a failed refresh, got %q", got)
		}
	})

	t.Run("Fetch Failure Publishes Bridge Status", func(t *testing.T) {
		f := newFixture(t, "seed-refresh")
		f.player.failAll.Store(true)

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Couldn't get currently playing data") {
			t.Errorf("expected fixed fetch-failure body, got %q", rec.Body.String())
		}
		if got := sbtesting.MustReadFile(t, f.sink); got != "Couldn't get currently playing data" {
			t.Errorf("expected fixed status in sink, got %q", got)
		}
	})

	t.Run("Callback Exchanges And Redirects Home", func(t *testing.T) {
		f := newFixture(t, "")

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=auth-code", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
		}
		if loc := rec.Header().Get("Location"); loc != "/" {
			t.Errorf("expected redirect home, got %q", loc)
		}
		if got, _ := f.store.Get("spotify_refresh"); got != "refresh-1" {
			t.Errorf("expected persisted refresh token, got %q", got)
		}
	})

	t.Run("Callback Exchange Failure", func(t *testing.T) {
		f := newFixture(t, "")
		f.tokens.fail.Store(true)

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=bad-code", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Error getting access token from authorization code") {
			t.Errorf("unexpected body: %q", rec.Body.String())
		}
		if got := sbtesting.MustReadFile(t, f.sink); got != "Error getting access token from authorization code" {
			t.Errorf("expected failure status in sink, got %q", got)
		}
	})

	t.Run("Callback Without Code", func(t *testing.T) {
		f := newFixture(t, "")

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Unknown Path", func(t *testing.T) {
		f := newFixture(t, "")

		rec := httptest.NewRecorder()
		f.bridge.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
