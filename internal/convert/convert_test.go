package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icsimport/internal/model"
	"icsimport/internal/tz"
)

var page = model.PageContext{Title: "Conference program", URL: "https://conf.example.org/program"}

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func timedEvent(t *testing.T) model.SourceEvent {
	loc := berlin(t)
	return model.SourceEvent{
		UID:       "evt-1@example.org",
		Summary:   "Talk",
		Start:     time.Date(2025, 1, 6, 10, 0, 0, 0, loc),
		End:       time.Date(2025, 1, 6, 11, 0, 0, 0, loc),
		StartZone: "Europe/Berlin",
		EndZone:   "Europe/Berlin",
	}
}

func TestTranslateNonRecurring(t *testing.T) {
	ce, exceptions, err := Translate(timedEvent(t), page, "Europe/Berlin")
	require.NoError(t, err)

	assert.Equal(t, "evt-1@example.org", ce.ID.Value)
	assert.False(t, ce.ID.Generated)
	assert.Empty(t, ce.Recurrence)
	assert.Empty(t, exceptions)
	assert.Equal(t, "Europe/Berlin", ce.Start.Zone)
	assert.Equal(t, "Europe/Berlin", ce.End.Zone)
	assert.Equal(t, page, ce.Source)
}

func TestTranslateFloatingAdoptsCalendarZone(t *testing.T) {
	ev := timedEvent(t)
	ev.Start = time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	ev.End = time.Date(2025, 1, 6, 11, 0, 0, 0, time.UTC)
	ev.StartZone = tz.Floating
	ev.EndZone = tz.Floating

	ce, _, err := Translate(ev, page, "Asia/Tokyo")
	require.NoError(t, err)

	assert.Equal(t, "Asia/Tokyo", ce.Start.Zone)
	assert.Equal(t, "Asia/Tokyo", ce.End.Zone)
	// The wall clock is preserved, not the instant.
	assert.Equal(t, 10, ce.Start.Time.Hour())
	assert.Equal(t, "Asia/Tokyo", ce.Start.Time.Location().String())
}

func TestTranslateLegacyZoneNormalized(t *testing.T) {
	ev := timedEvent(t)
	ev.StartZone = "Eastern Standard Time"
	ev.EndZone = "Eastern Standard Time"

	ce, _, err := Translate(ev, page, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", ce.Start.Zone)
}

func TestTranslateGeneratesUIDWhenMissing(t *testing.T) {
	ev := timedEvent(t)
	ev.UID = ""

	first, _, err := Translate(ev, page, "Europe/Berlin")
	require.NoError(t, err)
	second, _, err := Translate(ev, page, "Europe/Berlin")
	require.NoError(t, err)

	assert.True(t, first.ID.Generated)
	assert.NotEmpty(t, first.ID.Value)
	assert.NotEqual(t, first.ID.Value, second.ID.Value)
}

func TestTranslateRequiresStartAndEnd(t *testing.T) {
	ev := timedEvent(t)
	ev.End = time.Time{}
	_, _, err := Translate(ev, page, "Europe/Berlin")
	assert.Error(t, err)

	ev = timedEvent(t)
	ev.Start = time.Time{}
	_, _, err = Translate(ev, page, "Europe/Berlin")
	assert.Error(t, err)
}

func TestTranslateRecurring(t *testing.T) {
	loc := berlin(t)
	ev := timedEvent(t)
	ev.RRule = "FREQ=WEEKLY;COUNT=5"
	ev.RecurrenceLines = []string{
		"RRULE:FREQ=WEEKLY;COUNT=5",
		"RDATE;TZID=Europe/Berlin:20250301T100000",
	}
	ev.ExDates = []model.ExceptionDate{
		{Time: time.Date(2025, 1, 13, 10, 0, 0, 0, loc), Zone: "Europe/Berlin"},
	}

	ce, exceptions, err := Translate(ev, page, "Europe/Berlin")
	require.NoError(t, err)

	assert.Equal(t, ev.RecurrenceLines, ce.Recurrence)
	require.Len(t, exceptions, 1)
	assert.Equal(t, "Europe/Berlin", exceptions[0].Zone)
	assert.True(t, exceptions[0].Time.Equal(time.Date(2025, 1, 13, 10, 0, 0, 0, loc)))
}

func TestTranslateRejectsBadRRule(t *testing.T) {
	ev := timedEvent(t)
	ev.RRule = "FREQ=NOPE"
	ev.RecurrenceLines = []string{"RRULE:FREQ=NOPE"}

	_, _, err := Translate(ev, page, "Europe/Berlin")
	assert.Error(t, err)
}

func TestComposeDescription(t *testing.T) {
	cases := []struct {
		name string
		ev   model.SourceEvent
		page model.PageContext
		want string
	}{
		{
			name: "description only",
			ev:   model.SourceEvent{Description: "details"},
			want: "details",
		},
		{
			name: "url appended on blank line",
			ev:   model.SourceEvent{Description: "details", URL: "https://x.example/e"},
			want: "details\n\nhttps://x.example/e",
		},
		{
			name: "page provenance when it differs from url",
			ev:   model.SourceEvent{Description: "details", URL: "https://x.example/e"},
			page: model.PageContext{URL: "https://page.example/p"},
			want: "details\n\nhttps://x.example/e\nImported from https://page.example/p",
		},
		{
			name: "no provenance when page equals url",
			ev:   model.SourceEvent{Description: "details", URL: "https://x.example/e"},
			page: model.PageContext{URL: "https://x.example/e"},
			want: "details\n\nhttps://x.example/e",
		},
		{
			name: "everything empty",
			ev:   model.SourceEvent{},
			want: "",
		},
		{
			name: "provenance only",
			ev:   model.SourceEvent{},
			page: model.PageContext{URL: "https://page.example/p"},
			want: "Imported from https://page.example/p",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, composeDescription(tc.ev, tc.page))
		})
	}
}

func TestToGoogleEventTimed(t *testing.T) {
	ce, _, err := Translate(timedEvent(t), page, "Europe/Berlin")
	require.NoError(t, err)

	gev := ToGoogleEvent(ce)
	assert.Equal(t, "evt-1@example.org", gev.ICalUID)
	assert.Equal(t, "confirmed", gev.Status)
	assert.Equal(t, "2025-01-06T10:00:00", gev.Start.DateTime)
	assert.Equal(t, "Europe/Berlin", gev.Start.TimeZone)
	assert.Empty(t, gev.Start.Date)
	assert.True(t, gev.Reminders.UseDefault)
	require.NotNil(t, gev.Source)
	assert.Equal(t, page.URL, gev.Source.Url)
	assert.Equal(t, page.Title, gev.Source.Title)
}

func TestToGoogleEventAllDay(t *testing.T) {
	loc := berlin(t)
	ev := model.SourceEvent{
		UID:       "allday-1",
		AllDay:    true,
		Start:     time.Date(2025, 1, 6, 0, 0, 0, 0, loc),
		End:       time.Date(2025, 1, 7, 0, 0, 0, 0, loc),
		StartZone: tz.Floating,
		EndZone:   tz.Floating,
	}
	ce, _, err := Translate(ev, model.PageContext{}, "Europe/Berlin")
	require.NoError(t, err)

	gev := ToGoogleEvent(ce)
	assert.Equal(t, "2025-01-06", gev.Start.Date)
	assert.Empty(t, gev.Start.DateTime)
	assert.Equal(t, "2025-01-07", gev.End.Date)
	assert.Nil(t, gev.Source)
}

func TestOriginalStart(t *testing.T) {
	loc := berlin(t)
	ex := model.ExceptionDate{Time: time.Date(2025, 1, 13, 10, 0, 0, 0, loc), Zone: "Europe/Berlin"}
	assert.Equal(t, "2025-01-13T10:00:00+01:00", OriginalStart(ex, false))
	assert.Equal(t, "2025-01-13", OriginalStart(ex, true))
}
