package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage/memory"
)

const baseURI = "/planner"

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.PutTemplate(ctx, storage.NewMockTemplate("tpl-work", "alice", "Work")))
	require.NoError(t, store.PutTemplate(ctx, storage.NewMockTemplate("tpl-rest", "alice", "Rest")))

	engineConfig := recurrence.DisabledCacheConfig
	engineConfig.MaxRangeDays = recurrence.DefaultEngineConfig.MaxRangeDays

	n := 0
	p := planner.New(store,
		planner.WithEngineConfig(engineConfig),
		planner.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
		planner.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("s%d", n)
		}))
	t.Cleanup(p.Close)
	return NewRouter(p, baseURI, nil)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, baseURI+path, nil)
	} else {
		req = httptest.NewRequest(method, baseURI+path, strings.NewReader(body))
		req.Header.Set(HeaderContentType, MimeTypeJSON)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const assignEveryThirdDay = `{
	"templateRef": "tpl-work",
	"startDate": "2024-01-01",
	"pattern": {"kind": "daily", "interval": 3},
	"notes": "deep work"
}`

type dayBody struct {
	Date    string `json:"date"`
	Entries []struct {
		SeriesID    string `json:"seriesId"`
		TemplateRef string `json:"templateRef"`
		Template    *struct {
			Name string `json:"name"`
		} `json:"template"`
	} `json:"entries"`
}

func TestRouter_AssignAndRead(t *testing.T) {
	r := newTestRouter(t)

	rec := do(r, http.MethodPost, "/u/alice/series", assignEveryThirdDay)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, baseURI+"/u/alice/series/s1", rec.Header().Get(HeaderLocation))

	var created seriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "s1", created.ID)
	assert.Equal(t, recurrence.FreqDaily, created.Pattern.Kind)
	assert.Equal(t, 3, created.Pattern.Interval)
	assert.True(t, created.IsActive)

	rec = do(r, http.MethodGet, "/u/alice/series/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"notes":"deep work"`)

	rec = do(r, http.MethodGet, "/u/alice/calendar?from=2024-01-01&to=2024-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeJSON, rec.Header().Get(HeaderContentType))
	var days []dayBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &days))
	require.Len(t, days, 7)
	require.Len(t, days[3].Entries, 1)
	assert.Equal(t, "2024-01-04", days[3].Date)
	assert.Equal(t, "Work", days[3].Entries[0].Template.Name)
	assert.Empty(t, days[4].Entries)

	rec = do(r, http.MethodGet, "/u/alice/day/2024-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var day dayBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	require.Len(t, day.Entries, 1)
	assert.Equal(t, "s1", day.Entries[0].SeriesID)
}

func TestRouter_Exports(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/u/alice/series", assignEveryThirdDay).Code)

	rec := do(r, http.MethodGet, "/u/alice/calendar.ics?from=2024-01-01&to=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeCalendar, rec.Header().Get(HeaderContentType))
	assert.Contains(t, rec.Body.String(), "RRULE:")
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))

	rec = do(r, http.MethodGet, "/u/alice/calendar.ics?from=2024-01-01&to=2024-01-07&expand=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "RRULE:")
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))

	rec = do(r, http.MethodGet, "/u/alice/calendar.xml?from=2024-01-01&to=2024-01-07", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MimeTypeXCal, rec.Header().Get(HeaderContentType))
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "<vevent>"))
}

func TestRouter_Edit(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/u/alice/series", assignEveryThirdDay).Code)

	rec := do(r, http.MethodPost, "/u/alice/series/s1/edit",
		`{"scope": "this_and_future", "date": "2024-01-07", "action": "retemplate", "templateRef": "tpl-rest"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var edited editResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edited))
	require.NotNil(t, edited.Updated.EndDate)
	assert.Equal(t, "2024-01-06", edited.Updated.EndDate.String())
	require.NotNil(t, edited.Successor)
	assert.Equal(t, "s2", edited.Successor.ID)
	assert.Equal(t, "tpl-rest", edited.Successor.TemplateRef)

	rec = do(r, http.MethodGet, "/u/alice/day/2024-01-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var day dayBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	require.Len(t, day.Entries, 1)
	assert.Equal(t, "tpl-rest", day.Entries[0].TemplateRef)

	rec = do(r, http.MethodPost, "/u/alice/series/s2/edit", `{"scope": "this", "date": "2024-01-10", "action": "delete", "reason": "trip"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edited))
	assert.Nil(t, edited.Successor)
	require.Len(t, edited.Updated.Exceptions, 1)
	assert.Equal(t, "trip", edited.Updated.Exceptions[0].Reason)
}

func TestRouter_Delete(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/u/alice/series", assignEveryThirdDay).Code)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/u/bob/series/s1", "").Code, "other owners cannot remove it")
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/u/alice/series/s1", "").Code)

	rec := do(r, http.MethodGet, "/u/alice/day/2024-01-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var day dayBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	assert.Empty(t, day.Entries)
}

func TestRouter_Errors(t *testing.T) {
	r := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/u/alice/series", assignEveryThirdDay).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "unknown path", method: http.MethodGet, path: "/x/alice", status: http.StatusNotFound},
		{name: "bad day", method: http.MethodGet, path: "/u/alice/day/2024-13-01", status: http.StatusNotFound},
		{name: "missing range", method: http.MethodGet, path: "/u/alice/calendar", status: http.StatusBadRequest},
		{name: "malformed range", method: http.MethodGet, path: "/u/alice/calendar?from=jan&to=feb", status: http.StatusBadRequest},
		{name: "reversed range", method: http.MethodGet, path: "/u/alice/calendar?from=2024-02-01&to=2024-01-01", status: http.StatusBadRequest},
		{name: "range over limit", method: http.MethodGet, path: "/u/alice/calendar?from=2024-01-01&to=2026-12-31", status: http.StatusBadRequest},
		{name: "export over limit", method: http.MethodGet, path: "/u/alice/calendar.ics?from=2024-01-01&to=2026-12-31&expand=true", status: http.StatusBadRequest},
		{name: "unsupported method", method: http.MethodPut, path: "/u/alice/series", status: http.StatusMethodNotAllowed},
		{name: "get on collection", method: http.MethodGet, path: "/u/alice/series", status: http.StatusMethodNotAllowed},
		{name: "foreign series", method: http.MethodGet, path: "/u/bob/series/s1", status: http.StatusNotFound},
		{name: "unknown series", method: http.MethodGet, path: "/u/alice/series/nope", status: http.StatusNotFound},
		{name: "malformed body", method: http.MethodPost, path: "/u/alice/series", body: `{"templateRef":`, status: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/u/alice/series", body: `{"templateRef":"tpl-work","startDate":"2024-01-01","colour":"red"}`, status: http.StatusBadRequest},
		{name: "missing start", method: http.MethodPost, path: "/u/alice/series", body: `{"templateRef":"tpl-work"}`, status: http.StatusBadRequest},
		{name: "invalid pattern", method: http.MethodPost, path: "/u/alice/series", body: `{"templateRef":"tpl-work","startDate":"2024-01-01","pattern":{"kind":"weekly","interval":1,"daysOfMonth":[3]}}`, status: http.StatusBadRequest},
		{name: "unknown template", method: http.MethodPost, path: "/u/alice/series", body: `{"templateRef":"tpl-none","startDate":"2024-01-01"}`, status: http.StatusNotFound},
		{name: "bad scope", method: http.MethodPost, path: "/u/alice/series/s1/edit", body: `{"scope":"some","date":"2024-01-04","action":"delete"}`, status: http.StatusBadRequest},
		{name: "retemplate without template", method: http.MethodPost, path: "/u/alice/series/s1/edit", body: `{"scope":"all","date":"2024-01-04","action":"retemplate"}`, status: http.StatusBadRequest},
		{name: "restore on all", method: http.MethodPost, path: "/u/alice/series/s1/edit", body: `{"scope":"all","date":"2024-01-04","action":"restore"}`, status: http.StatusBadRequest},
		{name: "not an occurrence", method: http.MethodPost, path: "/u/alice/series/s1/edit", body: `{"scope":"this","date":"2024-01-05","action":"delete"}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_Options(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodOptions, "/u/alice/calendar", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, AllowedMethods, rec.Header().Get(HeaderAllow))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "nil", err: nil, status: http.StatusOK},
		{name: "configuration", err: recurrence.Configurationf("bad"), status: http.StatusBadRequest},
		{name: "invalid input", err: &storage.Error{Type: storage.ErrInvalidInput}, status: http.StatusBadRequest},
		{name: "already exists", err: &storage.Error{Type: storage.ErrAlreadyExists}, status: http.StatusBadRequest},
		{name: "not an occurrence", err: recurrence.NotFoundf("missing"), status: http.StatusNotFound},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", &storage.Error{Type: storage.ErrNotFound}), status: http.StatusNotFound},
		{name: "conflict", err: &storage.Error{Type: storage.ErrConflict}, status: http.StatusConflict},
		{name: "unknown", err: errors.New("disk full"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusFor(tt.err))
		})
	}
}
