package ics

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "icsimport/internal/log"
	"icsimport/internal/model"
	"icsimport/internal/tz"
)

// ParseError marks structurally invalid iCalendar input.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "ics: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Parse preprocesses and parses an iCalendar document into SourceEvents.
//
// Every VTIMEZONE found in the document is registered into reg before
// any date-time value is interpreted, so custom TZIDs resolve for the
// remainder of the flow. A structurally invalid document returns
// *ParseError; extraction failures on individual VEVENTs are logged and
// the event is skipped.
//
// EXRULE is never read.
func Parse(reg *Registry, body []byte) ([]model.SourceEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Err: errors.New("empty document")}
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(Preprocess(body)))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	for _, comp := range cal.Components {
		if vtzComp, ok := comp.(*ical.VTimezone); ok {
			registerVTimezone(reg, vtzComp)
		}
	}

	events := make([]model.SourceEvent, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(reg, ve)
		if perr != nil {
			appLog.Warn("skipping VEVENT", "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parsed", "event_count", len(events))
	return events, nil
}

// registerVTimezone resolves one VTIMEZONE definition into reg. Zones
// whose TZID maps to the IANA database use the database entry; anything
// else becomes a fixed zone from the first TZOFFSETTO found in the
// STANDARD/DAYLIGHT subcomponents.
func registerVTimezone(reg *Registry, vtzComp *ical.VTimezone) {
	var tzid string
	for _, p := range vtzComp.UnknownPropertiesIANAProperties() {
		if p.IANAToken == "TZID" {
			tzid = p.Value
			break
		}
	}
	if tzid == "" {
		return
	}

	if loc, err := time.LoadLocation(tz.Normalize(tzid, "")); err == nil {
		reg.Register(tzid, loc)
		return
	}

	for _, sub := range vtzComp.SubComponents() {
		for _, p := range sub.UnknownPropertiesIANAProperties() {
			if p.IANAToken != "TZOFFSETTO" {
				continue
			}
			if secs, err := parseUTCOffset(p.Value); err == nil {
				reg.Register(tzid, time.FixedZone(tzid, secs))
				return
			}
		}
	}

	appLog.Warn("VTIMEZONE with unusable definition", "tzid", tzid)
}

// parseUTCOffset parses an RFC 5545 UTC offset (+HHMM, -HHMMSS) into
// seconds east of UTC.
func parseUTCOffset(v string) (int, error) {
	if len(v) < 5 {
		return 0, errors.New("short utc-offset")
	}
	sign := 1
	switch v[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, errors.New("utc-offset missing sign")
	}
	digits := v[1:]
	if len(digits) != 4 && len(digits) != 6 {
		return 0, errors.New("bad utc-offset length")
	}
	secs := 0
	for i := 0; i < len(digits); i += 2 {
		if digits[i] < '0' || digits[i] > '9' || digits[i+1] < '0' || digits[i+1] > '9' {
			return 0, errors.New("bad utc-offset digit")
		}
		n := int(digits[i]-'0')*10 + int(digits[i+1]-'0')
		switch i {
		case 0:
			secs += n * 3600
		case 2:
			secs += n * 60
		case 4:
			secs += n
		}
	}
	return sign * secs, nil
}

func parseVEvent(reg *Registry, ve *ical.VEvent) (model.SourceEvent, error) {
	var out model.SourceEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty("URL"); p != nil {
		out.URL = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	start, startZone, allDay, err := parseDateTimeProperty(reg, dtStart)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.StartZone = startZone
	out.AllDay = allDay

	out.EndZone = startZone
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
		end, endZone, _, err := parseDateTimeProperty(reg, dtEnd)
		if err != nil {
			return out, err
		}
		out.End = end
		out.EndZone = endZone
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		out.RRule = p.Value
		out.RecurrenceLines = append(out.RecurrenceLines, "RRULE:"+p.Value)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyRdate) {
		if p.Value == "" {
			continue
		}
		out.RecurrenceLines = append(out.RecurrenceLines, serializeLine("RDATE", &p.BaseProperty))
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		zone := propertyZone(&p.BaseProperty, p.Value)
		loc := reg.Location(zone)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, terr := parseDateTimeValue(part, loc)
			if terr != nil {
				appLog.Warn("unparseable EXDATE entry dropped", "value", part)
				continue
			}
			out.ExDates = append(out.ExDates, model.ExceptionDate{Time: t, Zone: zone})
		}
	}

	return out, nil
}

// parseDateTimeProperty interprets a DTSTART/DTEND property, returning
// the parsed time, its zone identifier (TZID, "UTC", or tz.Floating)
// and whether the value is date-only.
func parseDateTimeProperty(reg *Registry, p *ical.IANAProperty) (time.Time, string, bool, error) {
	zone := propertyZone(&p.BaseProperty, p.Value)
	allDay := !strings.Contains(p.Value, "T")
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			allDay = true
		}
	}

	t, err := parseDateTimeValue(p.Value, reg.Location(zone))
	if err != nil {
		return time.Time{}, "", false, err
	}
	return t, zone, allDay, nil
}

// propertyZone determines the zone identifier of a date property:
// explicit TZID parameter, "UTC" for Z-suffixed values, tz.Floating
// otherwise.
func propertyZone(p *ical.BaseProperty, value string) string {
	if params := p.ICalParameters; params != nil {
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 && tzs[0] != "" {
			return tzs[0]
		}
	}
	if strings.HasSuffix(value, "Z") {
		return "UTC"
	}
	return tz.Floating
}

// parseDateTimeValue parses a basic ICS DATE / DATE-TIME value in loc.
func parseDateTimeValue(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty date value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// serializeLine rebuilds a content line ("NAME;PARAM=V:value") for
// verbatim hand-off to the backend. Parameters are emitted in sorted
// order so output is deterministic.
func serializeLine(name string, p *ical.BaseProperty) string {
	var b strings.Builder
	b.WriteString(name)
	keys := make([]string, 0, len(p.ICalParameters))
	for k := range p.ICalParameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(";")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.Join(p.ICalParameters[k], ","))
	}
	b.WriteString(":")
	b.WriteString(p.Value)
	return b.String()
}
