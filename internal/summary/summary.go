// package summary derives the one-line status and detail payload from raw
// upstream results. Everything here is pure: inputs in, strings out.
package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/torvik/statusbridge/internal/services"
)

// Fixed sentinels shown when there is nothing to report.
const (
	NoUpcomingEvents = "No Upcoming Events"
	NothingPlaying   = "Nothing currently playing"
)

// CalendarRules controls next-event selection and display.
type CalendarRules struct {
	// GraceMinutes keeps an event eligible this many minutes after it starts.
	GraceMinutes int
	// LookaheadDays bounds how far ahead an event may start.
	LookaheadDays int
	// DenyList skips events whose subject contains any entry, case-insensitively.
	DenyList []string
	// MaxSubjectWidth truncates the displayed subject.
	MaxSubjectWidth int
}

// DefaultCalendarRules mirrors the recommended configuration defaults.
func DefaultCalendarRules() CalendarRules {
	return CalendarRules{
		GraceMinutes:    5,
		LookaheadDays:   3,
		DenyList:        []string{"standup", "triage"},
		MaxSubjectWidth: 35,
	}
}

// NextEvent selects the earliest-starting busy event that lies inside the
// lookahead window and whose subject passes the deny-list. The input must
// already be sorted ascending by start time.
func NextEvent(events []services.Event, now time.Time, rules CalendarRules) (services.Event, bool) {
	grace := time.Duration(rules.GraceMinutes) * time.Minute
	horizon := now.AddDate(0, 0, rules.LookaheadDays)

	for _, e := range events {
		if !e.IsBusy() {
			continue
		}
		if !e.Start.Add(grace).After(now) {
			continue
		}
		if !e.Start.Before(horizon) {
			continue
		}
		if denied(e.Subject, rules.DenyList) {
			continue
		}
		return e, true
	}
	return services.Event{}, false
}

// NextEventSummary renders the next event as "Subject - when", or the
// no-events sentinel.
func NextEventSummary(events []services.Event, now time.Time, rules CalendarRules) string {
	next, ok := NextEvent(events, now, rules)
	if !ok {
		return NoUpcomingEvents
	}
	return Truncate(next.Subject, rules.MaxSubjectWidth) + " - " + humanTime(next.Start, now)
}

// Agenda renders today's events as "3:04pm - 3:30pm: Subject" lines,
// excluding cancelled-looking entries.
func Agenda(events []services.Event, now time.Time) []string {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var lines []string
	for _, e := range events {
		if e.Start.Before(dayStart) || !e.Start.Before(dayEnd) {
			continue
		}
		if strings.Contains(e.Subject, "Canceled") {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s - %s: %s", clockFormat(e.Start), clockFormat(e.End), e.Subject))
	}
	return lines
}

// NowPlayingSummary renders "{track} - {artist}" bounded by width, or the
// nothing-playing sentinel.
func NowPlayingSummary(state services.PlaybackState, width int) string {
	if !state.IsPlaying {
		return NothingPlaying
	}
	return Truncate(state.Track+" - "+state.Artist, width)
}

// Truncate bounds s to max runes, marking cuts with an ellipsis. Strings at
// or under the limit come back unchanged.
func Truncate(s string, max int) string {
	if max <= 3 {
		max = 4
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func denied(subject string, denyList []string) bool {
	lowered := strings.ToLower(subject)
	for _, term := range denyList {
		if term == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func clockFormat(t time.Time) string {
	return strings.ToLower(t.Format("3:04PM"))
}

// humanTime renders a start instant relative to now: "Today at 3:04 PM",
// "Tomorrow at ...", the weekday within a week, else a plain date.
func humanTime(t, now time.Time) string {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := int(t.Sub(dayStart).Hours() / 24)
	if t.Before(dayStart) {
		days = -1
	}

	switch {
	case days == 0:
		return "Today at " + t.Format("3:04 PM")
	case days == 1:
		return "Tomorrow at " + t.Format("3:04 PM")
	case days > 1 && days < 7:
		return t.Format("Monday") + " at " + t.Format("3:04 PM")
	default:
		return t.Format("01/02/2006")
	}
}
