package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// staticTokens is a TokenProvider that counts invalidations and hands
// out a fresh token after each one.
type staticTokens struct {
	mu          sync.Mutex
	generation  int
	invalidated int
}

func (p *staticTokens) Token(ctx context.Context, interactive bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("tok-%d", p.generation), nil
}

func (p *staticTokens) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.invalidated++
}

func newTestService(t *testing.T, handler http.Handler) (*Service, *staticTokens, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := &staticTokens{}
	svc, err := NewService(context.Background(), tokens, option.WithEndpoint(srv.URL))
	require.NoError(t, err)
	return svc, tokens, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestDefaultTimeZone(t *testing.T) {
	svc, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, &calendar.Calendar{Id: "cal-1", TimeZone: "Europe/Berlin"})
	}))

	zone, err := svc.DefaultTimeZone(context.Background(), "cal-1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", zone)
}

func TestRetryOnceAfterUnauthorized(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	svc, tokens, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]any{"error": map[string]any{"code": 401, "message": "Invalid Credentials"}})
			return
		}
		writeJSON(w, &calendar.Calendar{Id: "cal-1", TimeZone: "Europe/Berlin"})
	}))

	zone, err := svc.DefaultTimeZone(context.Background(), "cal-1")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", zone)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, tokens.invalidated)
}

func TestRetryOnlyOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	svc, tokens, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 401, "message": "Invalid Credentials"}})
	}))

	_, err := svc.DefaultTimeZone(context.Background(), "cal-1")
	require.Error(t, err)
	assert.True(t, IsTokenExpired(err))
	assert.Equal(t, 2, calls, "a second 401 is final")
	assert.Equal(t, 1, tokens.invalidated)
}

func TestNoRetryOnOtherErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	svc, tokens, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 403, "message": "Rate Limit Exceeded"}})
	}))

	_, err := svc.DefaultTimeZone(context.Background(), "cal-1")
	require.Error(t, err)

	var aerr *ApiError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, http.StatusForbidden, aerr.Code)
	assert.False(t, aerr.TokenExpired())
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, tokens.invalidated)
}

func TestImportEventSendsICalUID(t *testing.T) {
	var got calendar.Event
	svc, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, &calendar.Event{Id: "gid-1", ICalUID: got.ICalUID, HtmlLink: "https://cal.example/gid-1"})
	}))

	created, err := svc.ImportEvent(context.Background(), "cal-1", &calendar.Event{
		ICalUID: "evt@example.org",
		Summary: "Standup",
	})
	require.NoError(t, err)
	assert.Equal(t, "evt@example.org", got.ICalUID)
	assert.Equal(t, "gid-1", created.Id)
}

func TestInstanceAtPassesOriginalStart(t *testing.T) {
	var query string
	svc, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("originalStart")
		writeJSON(w, &calendar.Events{Items: []*calendar.Event{{Id: "gid-1_20250113"}}})
	}))

	insts, err := svc.InstanceAt(context.Background(), "cal-1", "gid-1", "2025-01-13T10:00:00+01:00")
	require.NoError(t, err)
	require.Len(t, insts, 1)
	assert.Equal(t, "2025-01-13T10:00:00+01:00", query)
}

func TestCancelInstanceMarksCancelled(t *testing.T) {
	var got calendar.Event
	svc, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, &got)
	}))

	err := svc.CancelInstance(context.Background(), "cal-1", &calendar.Event{Id: "gid-1_20250113"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)
}

func TestListCalendarsFollowsPagination(t *testing.T) {
	var mu sync.Mutex
	pages := 0
	svc, _, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		pages++
		mu.Unlock()
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, &calendar.CalendarList{
				Items:         []*calendar.CalendarListEntry{{Id: "a", Summary: "Work"}},
				NextPageToken: "page-2",
			})
			return
		}
		writeJSON(w, &calendar.CalendarList{
			Items: []*calendar.CalendarListEntry{{Id: "b", Summary: "Home"}},
		})
	}))

	entries, err := svc.ListCalendars(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, pages)
	assert.Equal(t, "Work", entries[0].Summary)
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))

	wrapped := classify(&googleapi.Error{Code: 401, Message: "expired"})
	assert.True(t, IsTokenExpired(wrapped))
	assert.False(t, IsTokenExpired(plain))
}
