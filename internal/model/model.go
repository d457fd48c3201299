package model

import "time"

// PageContext describes the page on which the .ics link was activated.
// It is carried into the created events as provenance so the target
// calendar UI can point back at where an event came from.
type PageContext struct {
	Title string
	URL   string
}

// EventID is the iCalUID an event will be imported under.
//
// Generated reports whether Value was minted locally because the source
// event carried no UID. Generated IDs are random: importing the same
// UID-less document twice produces two distinct events.
type EventID struct {
	Value     string
	Generated bool
}

// EventTime is a date-time plus the IANA zone it is anchored in.
type EventTime struct {
	Time time.Time
	Zone string
}

// SourceEvent is one VEVENT as extracted from a parsed document, before
// translation. Field values are kept close to the wire: recurrence
// properties are verbatim lines, exception dates keep their own zone.
//
// EXRULE is intentionally absent; the parser never reads it.
type SourceEvent struct {
	UID string // empty when the source omits UID

	Summary     string
	Description string
	Location    string
	URL         string // URL property, if any

	Start     time.Time
	End       time.Time // zero when the source omits DTEND
	StartZone string    // TZID param, "UTC", or tz.Floating
	EndZone   string
	AllDay    bool

	// RRule is the raw RRULE value ("FREQ=..."), empty for non-recurring
	// events. RecurrenceLines holds the serialized RRULE:/RDATE: property
	// lines exactly as they will be handed to the backend.
	RRule           string
	RecurrenceLines []string

	ExDates []ExceptionDate
}

// IsRecurring reports whether the event defines a recurring series.
func (ev SourceEvent) IsRecurring() bool {
	return len(ev.RecurrenceLines) > 0
}

// CanonicalEvent is the translated, backend-ready representation of a
// source event.
//
// Recurrence is non-empty exactly when the source event was recurring.
type CanonicalEvent struct {
	ID EventID // iCalUID

	Summary     string
	Description string
	Location    string

	Start  EventTime
	End    EventTime
	AllDay bool

	Recurrence []string

	Source PageContext
}

// ExceptionDate is one instance of a recurring series that must not
// occur. It is produced during translation and consumed (matched
// against backend-generated instances) during reconciliation.
type ExceptionDate struct {
	Time time.Time
	Zone string
}
