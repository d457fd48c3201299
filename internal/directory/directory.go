// Package directory maintains the mapping from calendar identifiers to
// display titles, used for provenance in user-facing messages. It is
// rebuilt on a schedule, independently of any import session.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	calendar "google.golang.org/api/calendar/v3"

	appLog "icsimport/internal/log"
)

// Lister is the slice of the backend gateway the directory needs.
type Lister interface {
	ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error)
}

// Entry is one calendar's directory record.
type Entry struct {
	Title  string
	Hidden bool
}

// Directory caches the calendar list. Lookups on an empty or stale
// directory trigger a lazy rebuild rather than blocking on the
// scheduled one.
type Directory struct {
	lister Lister
	maxAge time.Duration

	mu      sync.RWMutex
	entries map[string]Entry
	builtAt time.Time

	cron *cron.Cron
}

const defaultMaxAge = time.Hour

func New(lister Lister) *Directory {
	return &Directory{
		lister:  lister,
		maxAge:  defaultMaxAge,
		entries: map[string]Entry{},
	}
}

// Start schedules periodic rebuilds using a cron expression
// (e.g. "*/30 * * * *"). An empty spec disables scheduling; lazy
// rebuilds still happen on lookup.
func (d *Directory) Start(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := d.Rebuild(context.Background()); err != nil {
			appLog.Error("scheduled directory rebuild failed", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	d.cron = c
	return nil
}

// Stop halts scheduled rebuilds.
func (d *Directory) Stop() {
	if d.cron != nil {
		d.cron.Stop()
	}
}

// Rebuild refetches the calendar list and swaps the mapping in whole.
func (d *Directory) Rebuild(ctx context.Context) error {
	items, err := d.lister.ListCalendars(ctx)
	if err != nil {
		return err
	}

	entries := make(map[string]Entry, len(items))
	for _, item := range items {
		title := item.SummaryOverride
		if title == "" {
			title = item.Summary
		}
		entries[item.Id] = Entry{Title: title, Hidden: item.Hidden}
	}

	d.mu.Lock()
	d.entries = entries
	d.builtAt = time.Now()
	d.mu.Unlock()

	appLog.Info("calendar directory rebuilt", "calendars", len(entries))
	return nil
}

// Lookup returns the directory entry for calendarID. A session started
// against an empty or stale directory refetches it here instead of
// waiting for the schedule; a failed lazy rebuild degrades to whatever
// is cached.
func (d *Directory) Lookup(ctx context.Context, calendarID string) (Entry, bool) {
	d.mu.RLock()
	stale := len(d.entries) == 0 || time.Since(d.builtAt) > d.maxAge
	entry, ok := d.entries[calendarID]
	d.mu.RUnlock()

	if !stale {
		return entry, ok
	}

	if err := d.Rebuild(ctx); err != nil {
		appLog.Warn("lazy directory rebuild failed", "reason", err.Error())
		return entry, ok
	}

	d.mu.RLock()
	entry, ok = d.entries[calendarID]
	d.mu.RUnlock()
	return entry, ok
}
