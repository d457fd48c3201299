package convert

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"icsimport/internal/model"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// ToGoogleEvent packs a canonical event into the calendar/v3 wire
// representation consumed by Events.Import.
func ToGoogleEvent(ce model.CanonicalEvent) *calendar.Event {
	ev := &calendar.Event{
		ICalUID:     ce.ID.Value,
		Summary:     ce.Summary,
		Location:    ce.Location,
		Description: ce.Description,
		Status:      "confirmed",
		Start:       toEventDateTime(ce.Start, ce.AllDay),
		End:         toEventDateTime(ce.End, ce.AllDay),
		Recurrence:  ce.Recurrence,
		Reminders: &calendar.EventReminders{
			UseDefault:      true,
			ForceSendFields: []string{"UseDefault"},
		},
	}

	if ce.Source.URL != "" {
		ev.Source = &calendar.EventSource{
			Title: ce.Source.Title,
			Url:   ce.Source.URL,
		}
	}

	return ev
}

// toEventDateTime renders an EventTime either as a date (all-day) or as
// a zone-qualified local date-time. The offset is omitted on purpose:
// the API resolves the wall clock against TimeZone, which is what keeps
// recurring series anchored to their zone across DST transitions.
func toEventDateTime(et model.EventTime, allDay bool) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: et.Time.Format(dateLayout)}
	}
	return &calendar.EventDateTime{
		DateTime: et.Time.Format(dateTimeLayout),
		TimeZone: et.Zone,
	}
}

// OriginalStart renders an exception date the way instance originalStart
// values are matched: RFC 3339 for timed values, plain date for
// midnight-anchored all-day values.
func OriginalStart(ex model.ExceptionDate, allDay bool) string {
	if allDay {
		return ex.Time.Format(dateLayout)
	}
	return ex.Time.Format(time.RFC3339)
}
