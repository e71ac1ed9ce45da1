// Spotify player client.
//
// Response shapes based on https://developer.spotify.com/documentation/web-api/reference/get-information-about-the-users-current-playback
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// PlaybackState is a snapshot of the account's current playback. Each poll
// replaces the prior snapshot wholesale; no history is kept.
type PlaybackState struct {
	IsPlaying bool
	Track     string
	Artist    string
	Device    string
}

type playerResponse struct {
	IsPlaying bool `json:"is_playing"`
	Item      struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"item"`
	Device struct {
		Name string `json:"name"`
	} `json:"device"`
}

// PlayerClient fetches the current playback snapshot.
type PlayerClient struct {
	client
	baseURL string
}

// NewPlayerClient creates a Spotify player client.
func NewPlayerClient(httpClient *http.Client, session Tokener) *PlayerClient {
	return &PlayerClient{
		client:  newClient(httpClient, session),
		baseURL: spotifyBaseURL,
	}
}

// SetBaseURL overrides the Spotify endpoint, used by tests.
func (c *PlayerClient) SetBaseURL(base string) {
	c.baseURL = base
}

// NowPlaying fetches the current playback state. A 204 from the provider
// means no active device and yields a zero snapshot.
func (c *PlayerClient) NowPlaying(ctx context.Context) (PlaybackState, error) {
	var body playerResponse
	status, err := c.getJSON(ctx, c.baseURL+"/me/player", nil, &body)
	if err != nil {
		return PlaybackState{}, fmt.Errorf("failed to fetch playback state: %w", err)
	}
	if status == http.StatusNoContent {
		return PlaybackState{}, nil
	}

	var artists []string
	for _, a := range body.Item.Artists {
		artists = append(artists, a.Name)
	}

	return PlaybackState{
		IsPlaying: body.IsPlaying,
		Track:     body.Item.Name,
		Artist:    strings.Join(artists, ", "),
		Device:    body.Device.Name,
	}, nil
}
