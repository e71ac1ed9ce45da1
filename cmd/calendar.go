package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/torvik/statusbridge/internal/bridge"
	"github.com/torvik/statusbridge/internal/publish"
	"github.com/torvik/statusbridge/internal/services"
	"github.com/torvik/statusbridge/internal/session"
	"github.com/torvik/statusbridge/internal/shared"
	"github.com/torvik/statusbridge/internal/store"
	"github.com/torvik/statusbridge/internal/summary"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Microsoft identity platform endpoints for the common (multi-tenant) realm.
var microsoftEndpoint = oauth2.Endpoint{
	AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
	TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
}

// Calendar wires up and runs the calendar bridge until interrupted.
func (r *Runner) Calendar(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if !config.Credentials.Microsoft.Valid() {
		return fmt.Errorf("%w: microsoft client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	mode, err := publish.ParseMode(config.Publish.Mode)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open token database: %w", err)
	}
	defer db.Close()

	tokens, err := store.NewTokenStore(db)
	if err != nil {
		return err
	}

	oauthConf := &oauth2.Config{
		ClientID:     config.Credentials.Microsoft.ClientID,
		ClientSecret: config.Credentials.Microsoft.ClientSecret,
		RedirectURL:  config.Server.RedirectURI(config.Server.CalendarPort),
		Scopes:       []string{"offline_access", "calendars.read"},
		Endpoint:     microsoftEndpoint,
	}

	sess, err := session.New(oauthConf, tokens, store.KeyMicrosoftRefresh, r.logger)
	if err != nil {
		return err
	}

	client := services.NewCalendarClient(http.DefaultClient, sess, config.Calendar.Timezone)

	rules := summary.DefaultCalendarRules()
	if config.Calendar.GraceMinutes > 0 {
		rules.GraceMinutes = config.Calendar.GraceMinutes
	}
	if config.Calendar.LookaheadDays > 0 {
		rules.LookaheadDays = config.Calendar.LookaheadDays
	}
	if config.Calendar.DenyList != nil {
		rules.DenyList = config.Calendar.DenyList
	}

	publisher := publish.New(
		mode,
		config.Publish.CalendarSink,
		filepath.Join(config.Publish.IconDir, "calendar.png"),
		config.Publish.NotifyURL,
		r.logger,
	)

	b := bridge.New(bridge.Options{
		Name:              "calendar",
		Session:           sess,
		Poller:            &bridge.CalendarPoller{Client: client, Rules: rules},
		Publisher:         publisher,
		Logger:            shared.WithLogger(r.logger, "bridge", "calendar"),
		HomeURL:           config.Server.HomeURL(config.Server.CalendarPort),
		FetchFailedStatus: "Couldn't get upcoming events",
	})

	interval := time.Duration(config.Calendar.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.CalendarPort)
	return r.serve(ctx, b, addr, interval)
}
