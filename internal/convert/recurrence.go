package convert

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"icsimport/internal/model"
	"icsimport/internal/tz"
)

// extractRecurrence produces the backend recurrence-rule lines and the
// exception-date list for a recurring source event.
//
// The rule lines are the verbatim RRULE/RDATE content lines captured at
// parse time; EXDATE is deliberately not forwarded (exceptions are
// reconciled against generated instances after import) and EXRULE is
// never read at all. The exception list comes from expanding the
// event's recurrence set, seeded with its start time, and collecting
// every date the set marks excluded.
func extractRecurrence(ev model.SourceEvent, zone string) ([]string, []model.ExceptionDate, error) {
	var set rrule.Set

	if ev.RRule != "" {
		r, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			return nil, nil, fmt.Errorf("bad RRULE %q: %w", ev.RRule, err)
		}
		r.DTStart(ev.Start)
		set.RRule(r)
	}
	set.DTStart(ev.Start)

	loc := ev.Start.Location()
	for _, ex := range ev.ExDates {
		set.ExDate(exceptionInstant(ex, zone, loc))
	}

	excluded := set.GetExDate()
	exceptions := make([]model.ExceptionDate, 0, len(excluded))
	for _, t := range excluded {
		exceptions = append(exceptions, model.ExceptionDate{Time: t, Zone: zone})
	}

	return ev.RecurrenceLines, exceptions, nil
}

// exceptionInstant places a raw EXDATE value on the timeline. Zoned
// values are aligned with the event start's location (rrule compares
// instants); floating values keep their wall clock and adopt the
// normalized zone.
func exceptionInstant(ex model.ExceptionDate, zone string, startLoc *time.Location) time.Time {
	if ex.Zone != "" && ex.Zone != tz.Floating {
		return ex.Time.In(startLoc)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return ex.Time
	}
	t := ex.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
