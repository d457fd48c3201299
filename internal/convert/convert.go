// Package convert translates parsed source events into the canonical,
// backend-ready event representation.
package convert

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"icsimport/internal/model"
	"icsimport/internal/tz"
)

// Translate maps one source event into a canonical event plus its
// exception dates.
//
//   - The iCalUID is the source UID when present; otherwise a random
//     identifier is generated and tagged as such.
//   - Start and end zones are normalized to IANA names; floating times
//     adopt calendarZone. Both start and end are required.
//   - Recurrence and exception dates are populated only for recurring
//     events.
//   - The description is composed from the source description, the URL
//     property, and a provenance line when the originating page differs
//     from that URL.
func Translate(ev model.SourceEvent, page model.PageContext, calendarZone string) (model.CanonicalEvent, []model.ExceptionDate, error) {
	var out model.CanonicalEvent

	out.ID = eventID(ev)
	out.Summary = ev.Summary
	out.Location = ev.Location
	out.AllDay = ev.AllDay
	out.Source = page
	out.Description = composeDescription(ev, page)

	if ev.Start.IsZero() {
		return out, nil, errors.New("event has no start")
	}
	if ev.End.IsZero() {
		return out, nil, errors.New("event has no end")
	}

	startZone := tz.Normalize(ev.StartZone, calendarZone)
	endZone := tz.Normalize(ev.EndZone, calendarZone)
	out.Start = model.EventTime{Time: anchor(ev.Start, ev.StartZone, startZone), Zone: startZone}
	out.End = model.EventTime{Time: anchor(ev.End, ev.EndZone, endZone), Zone: endZone}

	if !ev.IsRecurring() {
		return out, nil, nil
	}

	lines, exceptions, err := extractRecurrence(ev, startZone)
	if err != nil {
		return out, nil, err
	}
	out.Recurrence = lines
	return out, exceptions, nil
}

func eventID(ev model.SourceEvent) model.EventID {
	if ev.UID != "" {
		return model.EventID{Value: ev.UID}
	}
	return model.EventID{Value: uuid.NewString(), Generated: true}
}

// anchor re-expresses t in the normalized zone. Floating times keep
// their wall clock and adopt the zone; zoned times are unchanged (only
// the zone's name was normalized, not its rules).
func anchor(t time.Time, rawZone, normalized string) time.Time {
	if rawZone != "" && rawZone != tz.Floating {
		return t
	}
	loc, err := time.LoadLocation(normalized)
	if err != nil {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func composeDescription(ev model.SourceEvent, page model.PageContext) string {
	var parts []string
	if ev.Description != "" {
		parts = append(parts, ev.Description)
	}
	if ev.URL != "" {
		parts = append(parts, ev.URL)
	}
	desc := strings.Join(parts, "\n\n")

	if page.URL != "" && page.URL != ev.URL {
		line := fmt.Sprintf("Imported from %s", page.URL)
		if desc == "" {
			return line
		}
		desc += "\n" + line
	}
	return desc
}
