// Package gcal is the Google Calendar gateway: the backend operations
// the import flow depends on, plus bearer-token handling with a single
// invalidate-and-retry on expiry.
package gcal

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	appLog "icsimport/internal/log"
)

// Service wraps the calendar/v3 client. All methods classify errors
// into the gateway taxonomy and retry exactly once after a 401 with a
// freshly acquired credential.
type Service struct {
	svc    *calendar.Service
	tokens TokenProvider
}

// NewService builds a gateway whose HTTP client pulls credentials from
// tokens on every request, so an Invalidate is picked up by the next
// call without rebuilding the client.
func NewService(ctx context.Context, tokens TokenProvider, opts ...option.ClientOption) (*Service, error) {
	hc := oauth2.NewClient(ctx, &providerSource{ctx: ctx, tokens: tokens})
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{svc: svc, tokens: tokens}, nil
}

// providerSource adapts TokenProvider to oauth2.TokenSource. It never
// prompts; interactive acquisition is an explicit step the orchestrator
// performs before committing a batch.
type providerSource struct {
	ctx    context.Context
	tokens TokenProvider
}

func (s *providerSource) Token() (*oauth2.Token, error) {
	tok, err := s.tokens.Token(s.ctx, false)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok}, nil
}

// withRetry runs call, and on a token-expired response invalidates the
// credential, re-authenticates once, and repeats the call.
func (s *Service) withRetry(ctx context.Context, call func() error) error {
	err := classify(call())
	if !IsTokenExpired(err) {
		return err
	}

	appLog.Info("credential rejected; re-authenticating once")
	s.tokens.Invalidate()
	if _, aerr := s.tokens.Token(ctx, false); aerr != nil {
		return aerr
	}
	return classify(call())
}

// DefaultTimeZone returns the calendar's configured IANA timezone.
func (s *Service) DefaultTimeZone(ctx context.Context, calendarID string) (string, error) {
	var zone string
	err := s.withRetry(ctx, func() error {
		cal, err := s.svc.Calendars.Get(calendarID).Context(ctx).Do()
		if err != nil {
			return err
		}
		zone = cal.TimeZone
		return nil
	})
	return zone, err
}

// ImportEvent imports ev into the calendar. The operation is idempotent
// by iCalUID: re-importing an event with a known iCalUID updates the
// existing one instead of creating a duplicate.
func (s *Service) ImportEvent(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	var created *calendar.Event
	err := s.withRetry(ctx, func() error {
		out, err := s.svc.Events.Import(calendarID, ev).Context(ctx).Do()
		if err != nil {
			return err
		}
		created = out
		return nil
	})
	return created, err
}

// InstanceAt queries the generated instances of a recurring event whose
// original scheduled start exactly equals originalStart.
func (s *Service) InstanceAt(ctx context.Context, calendarID, eventID, originalStart string) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := s.withRetry(ctx, func() error {
		out, err := s.svc.Events.Instances(calendarID, eventID).
			OriginalStart(originalStart).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		items = out.Items
		return nil
	})
	return items, err
}

// InstancesWithin queries the generated instances of a recurring event
// falling inside [from, to).
func (s *Service) InstancesWithin(ctx context.Context, calendarID, eventID string, from, to time.Time) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := s.withRetry(ctx, func() error {
		out, err := s.svc.Events.Instances(calendarID, eventID).
			TimeMin(from.Format(time.RFC3339)).
			TimeMax(to.Format(time.RFC3339)).
			Context(ctx).Do()
		if err != nil {
			return err
		}
		items = out.Items
		return nil
	})
	return items, err
}

// CancelInstance marks one generated instance cancelled and writes it
// back.
func (s *Service) CancelInstance(ctx context.Context, calendarID string, inst *calendar.Event) error {
	inst.Status = "cancelled"
	return s.withRetry(ctx, func() error {
		_, err := s.svc.Events.Update(calendarID, inst.Id, inst).Context(ctx).Do()
		return err
	})
}

// ListCalendars returns every entry of the user's calendar list,
// following pagination.
func (s *Service) ListCalendars(ctx context.Context) ([]*calendar.CalendarListEntry, error) {
	var entries []*calendar.CalendarListEntry
	err := s.withRetry(ctx, func() error {
		entries = entries[:0]
		pageToken := ""
		for {
			call := s.svc.CalendarList.List().Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			out, err := call.Do()
			if err != nil {
				return err
			}
			entries = append(entries, out.Items...)
			if out.NextPageToken == "" {
				return nil
			}
			pageToken = out.NextPageToken
		}
	})
	return entries, err
}
