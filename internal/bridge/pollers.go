package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/torvik/statusbridge/internal/publish"
	"github.com/torvik/statusbridge/internal/services"
	"github.com/torvik/statusbridge/internal/summary"
)

// Upstream events are fetched over a week even though display looks ahead
// fewer days, so the agenda tooltip always covers the full day.
const calendarWindowDays = 7

// CalendarPoller derives the next-event status from the account's calendars.
type CalendarPoller struct {
	Client *services.CalendarClient
	Rules  summary.CalendarRules
	// Clock is swappable for tests; nil means [time.Now].
	Clock func() time.Time
}

func (p *CalendarPoller) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// Poll implements [Poller].
func (p *CalendarPoller) Poll(ctx context.Context) (publish.Status, error) {
	now := p.now()
	events, err := p.Client.Events(ctx, now, calendarWindowDays)
	if err != nil {
		return publish.Status{}, err
	}

	agenda := summary.Agenda(events, now)
	return publish.Status{
		Summary: summary.NextEventSummary(events, now, p.Rules),
		Badge:   fmt.Sprintf("[%d Today]", len(agenda)),
		Detail:  agenda,
	}, nil
}

// PlaybackPoller derives the now-playing status from the account's player.
type PlaybackPoller struct {
	Client *services.PlayerClient
	// Width bounds the published "track - artist" line.
	Width int
}

// Poll implements [Poller].
func (p *PlaybackPoller) Poll(ctx context.Context) (publish.Status, error) {
	state, err := p.Client.NowPlaying(ctx)
	if err != nil {
		return publish.Status{}, err
	}

	st := publish.Status{Summary: summary.NowPlayingSummary(state, p.Width)}
	if state.Device != "" {
		st.Detail = []string{"Playing on " + state.Device}
	}
	return st, nil
}
