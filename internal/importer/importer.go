// Package importer drives the end-to-end import flow: fetch, translate,
// stage-and-confirm, submit, and reconcile exception dates against the
// instances the backend generates.
package importer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	calendar "google.golang.org/api/calendar/v3"

	"icsimport/internal/convert"
	"icsimport/internal/directory"
	"icsimport/internal/ics"
	appLog "icsimport/internal/log"
	"icsimport/internal/model"
	"icsimport/internal/notify"
)

// Backend is the slice of the calendar gateway the flow depends on.
type Backend interface {
	DefaultTimeZone(ctx context.Context, calendarID string) (string, error)
	ImportEvent(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
	InstanceAt(ctx context.Context, calendarID, eventID, originalStart string) ([]*calendar.Event, error)
	InstancesWithin(ctx context.Context, calendarID, eventID string, from, to time.Time) ([]*calendar.Event, error)
	CancelInstance(ctx context.Context, calendarID string, inst *calendar.Event) error
}

// Authenticator acquires bearer credentials. The flow requests an
// interactive credential once, right before committing; every later
// call reuses it.
type Authenticator interface {
	Token(ctx context.Context, interactive bool) (string, error)
	Invalidate()
}

// Fetcher retrieves the raw .ics document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Titles resolves calendar IDs to display titles for messages.
type Titles interface {
	Lookup(ctx context.Context, calendarID string) (directory.Entry, bool)
}

// State names the position of a session in the flow.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateTranslating
	StateStaged
	StateCommitting
	StateReconciling
	StateDone
	StateCancelled
	StateFailed
	StateDropped // trigger arrived while another session was active
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateTranslating:
		return "translating"
	case StateStaged:
		return "staged"
	case StateCommitting:
		return "committing"
	case StateReconciling:
		return "reconciling"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "dropped"
	}
}

// Request is one user trigger: a link to an .ics resource activated on
// a page, aimed at a destination calendar.
type Request struct {
	URL        string
	CalendarID string
	Page       model.PageContext
}

// ItemOutcome is the per-event result of a committed batch. The batch
// carries no transaction: a failed item never rolls back its siblings.
type ItemOutcome struct {
	Event     model.CanonicalEvent
	BackendID string
	Link      string
	Err       error
}

// Result is the terminal outcome of one session.
type Result struct {
	State   State
	Message string
	Action  string // "View" / "View all" when links are available
	Links   []string
	Items   []ItemOutcome
	Clicked bool
}

type stagedEvent struct {
	event      model.CanonicalEvent
	exceptions []model.ExceptionDate
}

// Options wires an Importer.
type Options struct {
	Fetcher       Fetcher
	Backend       Backend
	Auth          Authenticator
	Notifier      notify.Notifier
	Titles        Titles
	StagingWindow time.Duration // cancel window before any backend write
	ResultWindow  time.Duration // how long the result action stays offered
}

type Importer struct {
	sessions *SessionManager
	fetcher  Fetcher
	backend  Backend
	auth     Authenticator
	notifier notify.Notifier
	titles   Titles

	stagingWindow time.Duration
	resultWindow  time.Duration
}

const (
	defaultStagingWindow = 5 * time.Second
	defaultResultWindow  = 15 * time.Second
)

func New(opts Options) *Importer {
	imp := &Importer{
		sessions:      NewSessionManager(),
		fetcher:       opts.Fetcher,
		backend:       opts.Backend,
		auth:          opts.Auth,
		notifier:      opts.Notifier,
		titles:        opts.Titles,
		stagingWindow: opts.StagingWindow,
		resultWindow:  opts.ResultWindow,
	}
	if imp.fetcher == nil {
		imp.fetcher = NewHTTPFetcher(0)
	}
	if imp.stagingWindow <= 0 {
		imp.stagingWindow = defaultStagingWindow
	}
	if imp.resultWindow <= 0 {
		imp.resultWindow = defaultResultWindow
	}
	return imp
}

// Run executes one import session. It always returns a Result in a
// terminal state; the single-flight guard is released on every path.
func (imp *Importer) Run(ctx context.Context, req Request) *Result {
	release, ok := imp.sessions.Acquire()
	if !ok {
		appLog.Info("import already in flight; trigger dropped", "url", redactURL(req.URL))
		return &Result{State: StateDropped}
	}
	defer release()

	// Fetching: the document and the destination calendar's zone.
	body, err := imp.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return imp.fail(ctx, "Could not fetch the calendar file.", err)
	}
	calZone, err := imp.backend.DefaultTimeZone(ctx, req.CalendarID)
	if err != nil {
		return imp.fail(ctx, "Could not reach the calendar service.", err)
	}

	// Translating. The timezone registry lives and dies with this flow.
	reg := ics.NewRegistry()
	sources, err := ics.Parse(reg, body)
	if err != nil {
		return imp.fail(ctx, "This does not look like a valid calendar file.", err)
	}

	staged := make([]stagedEvent, 0, len(sources))
	for _, src := range sources {
		ce, exceptions, terr := convert.Translate(src, req.Page, calZone)
		if terr != nil {
			return imp.fail(ctx, "This does not look like a valid calendar file.", terr)
		}
		staged = append(staged, stagedEvent{event: ce, exceptions: exceptions})
	}

	if len(staged) == 0 {
		msg := "The calendar file is empty; nothing was imported."
		imp.notifier.Notify(ctx, msg, "", 0)
		return &Result{State: StateDone, Message: msg}
	}

	// Staged: lazy commit — nothing is written until the cancel window
	// expires untouched.
	text := fmt.Sprintf("Importing %d event(s) into %s…", len(staged), imp.calendarTitle(ctx, req.CalendarID))
	clicked, nerr := imp.notifier.Notify(ctx, text, "Cancel", imp.stagingWindow)
	if nerr != nil {
		if ctx.Err() != nil {
			return &Result{State: StateCancelled, Message: "Import cancelled."}
		}
		appLog.Warn("staging prompt failed; continuing", "reason", nerr.Error())
	}
	if clicked {
		appLog.Info("import cancelled during staging window")
		return &Result{State: StateCancelled, Message: "Import cancelled."}
	}

	// Committing: acquire the interactive credential once up front.
	if _, aerr := imp.auth.Token(ctx, true); aerr != nil {
		return imp.fail(ctx, "Could not sign in to the calendar service.", aerr)
	}

	items := imp.commit(ctx, req.CalendarID, staged)

	// Reconciling.
	imp.reconcile(ctx, req.CalendarID, staged, items)

	return imp.report(ctx, items)
}

// commit submits every staged event concurrently and waits for all of
// them. Outcomes are collected per item; there is no rollback.
func (imp *Importer) commit(ctx context.Context, calendarID string, staged []stagedEvent) []ItemOutcome {
	items := make([]ItemOutcome, len(staged))

	var g errgroup.Group
	for i := range staged {
		i := i
		g.Go(func() error {
			ce := staged[i].event
			if ce.ID.Generated {
				appLog.Warn("event has no UID; importing under a generated one",
					"summary", ce.Summary, "ical_uid", ce.ID.Value)
			}
			created, err := imp.backend.ImportEvent(ctx, calendarID, convert.ToGoogleEvent(ce))
			if err != nil {
				appLog.Error("event import failed", err, "ical_uid", ce.ID.Value)
				items[i] = ItemOutcome{Event: ce, Err: err}
				return nil
			}
			items[i] = ItemOutcome{Event: ce, BackendID: created.Id, Link: created.HtmlLink}
			return nil
		})
	}
	g.Wait() // every goroutine returns nil; Wait is the joint await

	return items
}

// reconcile processes the exception dates of every successfully
// imported recurring event, each independently and concurrently.
func (imp *Importer) reconcile(ctx context.Context, calendarID string, staged []stagedEvent, items []ItemOutcome) {
	var g errgroup.Group
	for i := range staged {
		if items[i].Err != nil || items[i].BackendID == "" {
			continue
		}
		for _, ex := range staged[i].exceptions {
			ex := ex
			item, ce := items[i], staged[i].event
			g.Go(func() error {
				imp.cancelException(ctx, calendarID, item, ce, ex)
				return nil
			})
		}
	}
	g.Wait()
}

// cancelException finds the generated instance matching one exception
// date and cancels it. A missing or ambiguous match drops the exception
// with a log line; one malformed exception must not fail the import.
func (imp *Importer) cancelException(ctx context.Context, calendarID string, item ItemOutcome, ce model.CanonicalEvent, ex model.ExceptionDate) {
	originalStart := convert.OriginalStart(ex, ce.AllDay)

	insts, err := imp.backend.InstanceAt(ctx, calendarID, item.BackendID, originalStart)
	if err != nil {
		appLog.Warn("exception lookup failed; dropped",
			"original_start", originalStart, "reason", err.Error())
		return
	}

	if len(insts) == 0 && !ce.AllDay {
		// Some exporters record only the date of an exception, not its
		// time. Retry over the exception's calendar day in its own zone,
		// and accept only an unambiguous single match: cancelling on a
		// multi-match could hit the wrong occurrence.
		day := startOfDay(ex.Time)
		insts, err = imp.backend.InstancesWithin(ctx, calendarID, item.BackendID, day, day.AddDate(0, 0, 1))
		if err != nil {
			appLog.Warn("exception day-window lookup failed; dropped",
				"original_start", originalStart, "reason", err.Error())
			return
		}
		if len(insts) != 1 {
			appLog.Warn("exception unmatched after day-window fallback; dropped",
				"original_start", originalStart, "matches", len(insts))
			return
		}
	}

	if len(insts) != 1 {
		appLog.Warn("exception unmatched; dropped",
			"original_start", originalStart, "matches", len(insts))
		return
	}

	if err := imp.backend.CancelInstance(ctx, calendarID, insts[0]); err != nil {
		appLog.Warn("instance cancel failed; exception dropped",
			"original_start", originalStart, "reason", err.Error())
	}
}

// report builds the terminal result and shows it. A partial failure
// reports failure for the whole batch; already-imported events stay.
func (imp *Importer) report(ctx context.Context, items []ItemOutcome) *Result {
	var links []string
	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
			continue
		}
		if it.Link != "" {
			links = append(links, it.Link)
		}
	}

	res := &Result{Items: items, Links: links}

	if failed > 0 {
		res.State = StateFailed
		res.Message = fmt.Sprintf("%d of %d event(s) could not be imported.", failed, len(items))
		imp.notifier.Notify(ctx, res.Message, "", 0)
		return res
	}

	res.State = StateDone
	if len(items) == 1 {
		res.Message = "Imported 1 event."
		res.Action = "View"
	} else {
		res.Message = fmt.Sprintf("Imported %d events.", len(items))
		res.Action = "View all"
	}

	clicked, err := imp.notifier.Notify(ctx, res.Message, res.Action, imp.resultWindow)
	if err != nil {
		appLog.Warn("result prompt failed", "reason", err.Error())
	}
	res.Clicked = clicked
	return res
}

func (imp *Importer) fail(ctx context.Context, msg string, err error) *Result {
	appLog.Error("import failed", err)
	imp.notifier.Notify(ctx, msg, "", 0)
	return &Result{State: StateFailed, Message: msg}
}

func (imp *Importer) calendarTitle(ctx context.Context, calendarID string) string {
	if imp.titles != nil {
		if entry, ok := imp.titles.Lookup(ctx, calendarID); ok && entry.Title != "" {
			return entry.Title
		}
	}
	return calendarID
}

// startOfDay returns midnight of t's calendar day in t's own zone.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
