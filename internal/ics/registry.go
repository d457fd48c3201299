package ics

import (
	"sync"
	"time"

	appLog "icsimport/internal/log"
	"icsimport/internal/tz"
)

// Registry resolves TZID identifiers to time.Locations. Custom zones
// defined by embedded VTIMEZONE components are registered here during
// parsing, before any date-time value is interpreted.
//
// The registry is append-only and safe for concurrent reads once
// populated. It is created per import flow and injected into the
// parser; callers that want zone definitions shared across flows can
// reuse one instance.
type Registry struct {
	mu    sync.RWMutex
	zones map[string]*time.Location
}

func NewRegistry() *Registry {
	return &Registry{zones: make(map[string]*time.Location)}
}

// Register records a resolved location for tzid. Later registrations
// for the same tzid win; in practice a document defines each TZID once.
func (r *Registry) Register(tzid string, loc *time.Location) {
	if tzid == "" || loc == nil {
		return
	}
	r.mu.Lock()
	r.zones[tzid] = loc
	r.mu.Unlock()
}

// Lookup returns the registered location for tzid, if any.
func (r *Registry) Lookup(tzid string) (*time.Location, bool) {
	r.mu.RLock()
	loc, ok := r.zones[tzid]
	r.mu.RUnlock()
	return loc, ok
}

// Location resolves tzid to a usable location: registered definitions
// first, then the IANA database (after legacy-name normalization).
// Floating and unresolvable zones fall back to UTC; for floating times
// the wall clock is what matters and the real zone is applied during
// translation.
func (r *Registry) Location(tzid string) *time.Location {
	if tzid == "" || tzid == tz.Floating {
		return time.UTC
	}
	if loc, ok := r.Lookup(tzid); ok {
		return loc
	}
	if loc, err := time.LoadLocation(tz.Normalize(tzid, "")); err == nil {
		r.Register(tzid, loc)
		return loc
	}
	appLog.Warn("unknown TZID; interpreting as UTC", "tzid", tzid)
	return time.UTC
}
