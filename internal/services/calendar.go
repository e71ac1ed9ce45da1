// Microsoft Graph calendar client.
//
// Response shapes based on https://learn.microsoft.com/en-us/graph/api/resources/event
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// Busy-status values reported by Graph in the showAs field.
const (
	ShowAsBusy        = "busy"
	ShowAsFree        = "free"
	ShowAsTentative   = "tentative"
	ShowAsOutOfOffice = "oof"
)

// Event is one calendar entry, normalized at the client boundary. Events are
// never mutated after construction; callers filter and sort copies.
type Event struct {
	Subject string
	Start   time.Time
	End     time.Time
	ShowAs  string
}

// IsBusy reports whether the event blocks the owner's time.
func (e Event) IsBusy() bool {
	return e.ShowAs == ShowAsBusy
}

type graphCalendarList struct {
	Value []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"value"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type graphEventList struct {
	Value []struct {
		Subject string        `json:"subject"`
		ShowAs  string        `json:"showAs"`
		Start   graphDateTime `json:"start"`
		End     graphDateTime `json:"end"`
	} `json:"value"`
}

// CalendarClient fetches calendar events for the configured account.
type CalendarClient struct {
	client
	baseURL  string
	timezone string // Windows time zone name for the Prefer header, may be empty
	loc      *time.Location
}

// NewCalendarClient creates a Graph calendar client. The timezone is passed
// verbatim in the Prefer header so event times arrive pre-converted.
func NewCalendarClient(httpClient *http.Client, session Tokener, timezone string) *CalendarClient {
	return &CalendarClient{
		client:   newClient(httpClient, session),
		baseURL:  graphBaseURL,
		timezone: timezone,
		loc:      time.Local,
	}
}

// SetBaseURL overrides the Graph endpoint, used by tests.
func (c *CalendarClient) SetBaseURL(base string) {
	c.baseURL = base
}

// Events fetches every calendar's events in a window from the start of the
// current day through windowDays, merged and stable-sorted by start time.
func (c *CalendarClient) Events(ctx context.Context, now time.Time, windowDays int) ([]Event, error) {
	var calendars graphCalendarList
	if _, err := c.getJSON(ctx, c.baseURL+"/me/calendars", c.headers(), &calendars); err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, windowDays)

	query := url.Values{}
	query.Set("startdatetime", start.UTC().Format(time.RFC3339))
	query.Set("enddatetime", end.UTC().Format(time.RFC3339))
	query.Set("$top", "50")

	var events []Event
	for _, cal := range calendars.Value {
		viewURL := fmt.Sprintf("%s/me/calendars/%s/calendarview?%s", c.baseURL, url.PathEscape(cal.ID), query.Encode())

		var page graphEventList
		if _, err := c.getJSON(ctx, viewURL, c.headers(), &page); err != nil {
			return nil, fmt.Errorf("failed to fetch calendar view for %q: %w", cal.Name, err)
		}

		for _, item := range page.Value {
			start, err := c.parseTime(item.Start)
			if err != nil {
				continue
			}
			end, err := c.parseTime(item.End)
			if err != nil {
				continue
			}
			events = append(events, Event{
				Subject: item.Subject,
				Start:   start,
				End:     end,
				ShowAs:  item.ShowAs,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	return events, nil
}

func (c *CalendarClient) headers() map[string]string {
	if c.timezone == "" {
		return nil
	}
	return map[string]string{
		"Prefer": fmt.Sprintf("outlook.timezone=%q", c.timezone),
	}
}

// parseTime parses Graph's zoneless dateTime strings, which carry up to
// seven fractional digits and no offset.
func (c *CalendarClient) parseTime(dt graphDateTime) (time.Time, error) {
	value := dt.DateTime
	if i := strings.IndexByte(value, '.'); i >= 0 {
		value = value[:i]
	}
	return time.ParseInLocation("2006-01-02T15:04:05", value, c.loc)
}
