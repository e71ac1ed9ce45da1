// package bridge ties one account's session, upstream poller, and publisher
// together and runs them behind a poll schedule and a small HTTP front door.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
	"github.com/torvik/statusbridge/internal/publish"
	"github.com/torvik/statusbridge/internal/session"
	"github.com/torvik/statusbridge/internal/shared"
)

// Fixed operator-facing status strings, also written to the sink so failures
// show up on the status bar.
const (
	msgCodeExchangeFailed = "Error getting access token from authorization code"
	msgRefreshFailed      = "Error getting access token from refresh token"
)

// Poller fetches upstream state and derives the status to publish.
type Poller interface {
	Poll(ctx context.Context) (publish.Status, error)
}

// Options collects the collaborators for one bridge instance.
type Options struct {
	Name      string
	Session   *session.Session
	Poller    Poller
	Publisher *publish.Publisher
	Logger    *log.Logger
	// HomeURL is shown in the not-logged-in status so the operator knows
	// where to complete the login flow.
	HomeURL string
	// FetchFailedStatus is the fixed status published when an upstream
	// fetch fails for non-auth reasons.
	FetchFailedStatus string
}

// Bridge runs the poll loop and serves the HTTP front door for one account.
type Bridge struct {
	name        string
	session     *session.Session
	poller      Poller
	publisher   *publish.Publisher
	logger      *log.Logger
	homeURL     string
	fetchFailed string
	cron        *cron.Cron
}

// New creates a Bridge from its collaborators.
func New(opts Options) *Bridge {
	return &Bridge{
		name:        opts.Name,
		session:     opts.Session,
		poller:      opts.Poller,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
		homeURL:     opts.HomeURL,
		fetchFailed: opts.FetchFailedStatus,
	}
}

// RunPoll executes one poll cycle: fetch, summarize, publish. The returned
// summary is what was published, including the fixed error statuses. Errors
// never crash the loop; they are logged, published, and returned for the
// HTTP handler to map onto a response.
func (b *Bridge) RunPoll(ctx context.Context) (string, error) {
	st, err := b.poller.Poll(ctx)

	switch {
	case err == nil:
		b.publisher.Publish(ctx, st)
		return st.Summary, nil

	case errors.Is(err, shared.ErrNotLoggedIn):
		info := fmt.Sprintf("Not logged in, please visit %s", b.homeURL)
		b.publisher.Publish(ctx, publish.Status{Summary: info})
		return info, err

	case errors.Is(err, shared.ErrAuthExchange), errors.Is(err, shared.ErrUnauthorized):
		b.logger.Error("token refresh failed", "bridge", b.name, "error", err)
		b.publisher.Publish(ctx, publish.Status{Summary: msgRefreshFailed})
		return msgRefreshFailed, err

	default:
		b.logger.Error("poll failed", "bridge", b.name, "error", err)
		b.publisher.Publish(ctx, publish.Status{Summary: b.fetchFailed})
		return b.fetchFailed, err
	}
}

// Start runs one poll immediately, then schedules repeats at the given
// interval. The schedule is fixed: no backoff, no tick cancellation; a slow
// poll just delays the next tick's effective start.
func (b *Bridge) Start(ctx context.Context, interval time.Duration) error {
	b.RunPoll(ctx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		b.RunPoll(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule poll: %w", err)
	}
	c.Start()
	b.cron = c

	b.logger.Info("poll loop started", "bridge", b.name, "interval", interval)
	return nil
}

// Stop halts the poll schedule, waiting for a running tick to finish.
func (b *Bridge) Stop() {
	if b.cron != nil {
		<-b.cron.Stop().Done()
	}
}

// Routes implements [server.Handler].
func (b *Bridge) Routes() []string {
	return []string{"/", "/login", "/callback"}
}

// ServeHTTP dispatches the three front door endpoints.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		b.handleHome(w, r)
	case "/login":
		b.handleLogin(w, r)
	case "/callback":
		b.handleCallback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleHome runs a poll synchronously and responds with the summary, or
// redirects to /login when no credentials exist.
func (b *Bridge) handleHome(w http.ResponseWriter, r *http.Request) {
	info, err := b.RunPoll(r.Context())
	if errors.Is(err, shared.ErrNotLoggedIn) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if err != nil {
		http.Error(w, info, http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, info)
}

func (b *Bridge) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, b.session.AuthURL(shared.GenerateState()), http.StatusFound)
}

// handleCallback completes the authorization-code exchange and bounces the
// operator back to the home page.
func (b *Bridge) handleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		b.logger.Warn("authorization denied", "bridge", b.name, "error", errParam, "description", errDesc)
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if err := b.session.Exchange(r.Context(), code); err != nil {
		b.logger.Error("code exchange failed", "bridge", b.name, "error", err)
		b.publisher.Publish(r.Context(), publish.Status{Summary: msgCodeExchangeFailed})
		http.Error(w, msgCodeExchangeFailed, http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}
