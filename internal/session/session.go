// package session owns the OAuth token lifecycle for one bridge account.
//
// A Session holds at most one access/refresh token pair. The access token is
// never pre-validated; staleness is discovered when an upstream call fails
// and the client calls [Session.Invalidate] before retrying. Refresh-token
// exchanges are serialized: a second caller arriving while an exchange is in
// flight waits for the same result instead of issuing its own call, since
// providers may rotate a refresh token on first use.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/torvik/statusbridge/internal/shared"
	"golang.org/x/oauth2"
)

// Store is the subset of the token store the session needs.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Session manages the credentials for a single configured account.
type Session struct {
	config *oauth2.Config
	store  Store
	key    string
	logger *log.Logger

	mu        sync.Mutex
	access    string
	refresh   string
	inflight  chan struct{}
	flightErr error
}

// New creates a Session seeded from any refresh token persisted under key.
func New(config *oauth2.Config, st Store, key string, logger *log.Logger) (*Session, error) {
	refresh, err := st.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted refresh token: %w", err)
	}

	return &Session{
		config:  config,
		store:   st,
		key:     key,
		logger:  logger,
		refresh: refresh,
	}, nil
}

// AuthURL returns the provider authorization URL for the code flow.
func (s *Session) AuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// LoggedIn reports whether the session holds any credential at all.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access != "" || s.refresh != ""
}

// Exchange trades an authorization code for a token pair, caches the access
// token, and persists the refresh token.
func (s *Session) Exchange(ctx context.Context, code string) error {
	tok, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthExchange, err)
	}

	s.mu.Lock()
	s.access = tok.AccessToken
	if tok.RefreshToken != "" {
		s.refresh = tok.RefreshToken
	}
	refresh := s.refresh
	s.mu.Unlock()

	s.persist(refresh)
	return nil
}

// AccessToken returns a usable access token.
//
// The cached token is returned without a network call when present. With
// only a refresh token, a refresh exchange runs (at most one in flight;
// concurrent callers share its outcome). With no credentials at all,
// [shared.ErrNotLoggedIn] is returned so the caller can redirect to login.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	for {
		s.mu.Lock()
		if s.access != "" {
			tok := s.access
			s.mu.Unlock()
			return tok, nil
		}

		if s.inflight != nil {
			done := s.inflight
			s.mu.Unlock()

			select {
			case <-done:
			case <-ctx.Done():
				return "", ctx.Err()
			}

			s.mu.Lock()
			err := s.flightErr
			s.mu.Unlock()
			if err != nil {
				return "", err
			}
			continue
		}

		if s.refresh == "" {
			s.mu.Unlock()
			return "", shared.ErrNotLoggedIn
		}

		done := make(chan struct{})
		s.inflight = done
		refresh := s.refresh
		s.mu.Unlock()

		s.logger.Info("refreshing access token")
		tok, err := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()

		s.mu.Lock()
		s.inflight = nil
		if err != nil {
			// The refresh token stays in place even though it may be
			// invalid; the operator re-logging in beats silent state loss.
			s.flightErr = fmt.Errorf("%w: %v", shared.ErrAuthExchange, err)
			err = s.flightErr
			close(done)
			s.mu.Unlock()
			return "", err
		}

		s.flightErr = nil
		s.access = tok.AccessToken
		if tok.RefreshToken != "" {
			s.refresh = tok.RefreshToken
		}
		access, rotated := s.access, s.refresh
		close(done)
		s.mu.Unlock()

		s.persist(rotated)
		return access, nil
	}
}

// Invalidate clears the cached access token if it still equals tok. The
// refresh token is untouched. Upstream clients call this after a 401 so the
// next [Session.AccessToken] call performs a refresh exchange.
func (s *Session) Invalidate(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.access == tok {
		s.access = ""
	}
}

func (s *Session) persist(refresh string) {
	if refresh == "" {
		return
	}
	if err := s.store.Set(s.key, refresh); err != nil {
		s.logger.Warn("failed to persist refresh token", "error", err)
	}
}
