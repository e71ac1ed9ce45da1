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
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

var spotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// Playback wires up and runs the playback bridge until interrupted.
func (r *Runner) Playback(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if !config.Credentials.Spotify.Valid() {
		return fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
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
		ClientID:     config.Credentials.Spotify.ClientID,
		ClientSecret: config.Credentials.Spotify.ClientSecret,
		RedirectURL:  config.Server.RedirectURI(config.Server.PlaybackPort),
		Scopes:       []string{"user-read-playback-state"},
		Endpoint:     spotifyEndpoint,
	}

	sess, err := session.New(oauthConf, tokens, store.KeySpotifyRefresh, r.logger)
	if err != nil {
		return err
	}

	client := services.NewPlayerClient(http.DefaultClient, sess)

	width := config.Playback.DisplayWidth
	if width <= 0 {
		width = 35
	}

	publisher := publish.New(
		mode,
		config.Publish.PlaybackSink,
		filepath.Join(config.Publish.IconDir, "spotify.png"),
		config.Publish.NotifyURL,
		r.logger,
	)

	b := bridge.New(bridge.Options{
		Name:              "playback",
		Session:           sess,
		Poller:            &bridge.PlaybackPoller{Client: client, Width: width},
		Publisher:         publisher,
		Logger:            shared.WithLogger(r.logger, "bridge", "playback"),
		HomeURL:           config.Server.HomeURL(config.Server.PlaybackPort),
		FetchFailedStatus: "Couldn't get currently playing data",
	})

	interval := time.Duration(config.Playback.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.PlaybackPort)
	return r.serve(ctx, b, addr, interval)
}
