// package services implements the authenticated REST clients for the
// upstream resource APIs (Microsoft Graph calendars, Spotify playback).
//
// Clients attach a bearer token from the session on every call and
// distinguish exactly two failure classes: [shared.ErrUnauthorized] (the
// provider rejected the token; the client invalidates it and retries the
// request once after a refresh) and everything else (surfaced to the caller
// and left for the next poll tick).
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/torvik/statusbridge/internal/shared"
	"golang.org/x/time/rate"
)

// Tokener is the subset of the OAuth session the clients need.
type Tokener interface {
	// AccessToken returns a usable access token or [shared.ErrNotLoggedIn].
	AccessToken(ctx context.Context) (string, error)

	// Invalidate discards the cached access token if it still equals tok.
	Invalidate(tok string)
}

// client is the shared transport core for the upstream clients.
type client struct {
	httpClient *http.Client
	session    Tokener
	limiter    *rate.Limiter
}

func newClient(httpClient *http.Client, session Tokener) client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return client{
		httpClient: httpClient,
		session:    session,
		// Generous ceiling; polls are minute-scale but an inbound request
		// can fan out to one call per calendar.
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// getJSON performs an authenticated GET and decodes a 2xx JSON body into out
// (skipped for 204 or a nil out). A 401 invalidates the token and retries
// the request exactly once with a freshly ensured token.
func (c *client) getJSON(ctx context.Context, url string, headers map[string]string, out any) (int, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		tok, err := c.session.AccessToken(ctx)
		if err != nil {
			return 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			c.session.Invalidate(tok)
			if attempt == 0 {
				continue
			}
			return resp.StatusCode, fmt.Errorf("%w after refresh", shared.ErrUnauthorized)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return resp.StatusCode, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
		}

		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				resp.Body.Close()
				return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
			}
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	}
}
