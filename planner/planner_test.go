package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cod31nvictus/Eterny2.0-sub001/internal/xml"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/editor"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage/memory"
)

func d(s string) recurrence.Date { return recurrence.MustParseDate(s) }

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}
}

func newTestPlanner(t *testing.T, store storage.Storage, opts ...Option) *Planner {
	t.Helper()
	opts = append([]Option{
		WithIDGenerator(sequentialIDs()),
		WithEngineConfig(recurrence.DisabledCacheConfig),
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
	}, opts...)
	p := New(store, opts...)
	t.Cleanup(p.Close)
	return p
}

func newSeededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.PutTemplate(ctx, storage.NewMockTemplate("tpl-work", "alice", "Work")))
	require.NoError(t, store.PutTemplate(ctx, storage.NewMockTemplate("tpl-rest", "alice", "Rest")))
	require.NoError(t, store.PutTemplate(ctx, storage.NewMockTemplate("tpl-bob", "bob", "Bob's day")))
	return store
}

func everyThirdDay() AssignRequest {
	return AssignRequest{
		OwnerRef:    "alice",
		TemplateRef: "tpl-work",
		StartDate:   d("2024-01-01"),
		Pattern:     recurrence.PatternSpec{Kind: recurrence.FreqDaily, Interval: 3},
	}
}

// scheduled flattens a calendar into "date template" lines.
func scheduled(days []CalendarDay) []string {
	var out []string
	for _, day := range days {
		for _, e := range day.Entries {
			out = append(out, fmt.Sprintf("%s %s", day.Date, e.TemplateRef))
		}
	}
	return out
}

func TestPlanner_AssignAndCalendar(t *testing.T) {
	p := newTestPlanner(t, newSeededStore(t))
	ctx := context.Background()

	series, err := p.AssignTemplate(ctx, everyThirdDay())
	require.NoError(t, err)
	assert.Equal(t, "s1", series.ID)
	assert.Equal(t, int64(1), series.Position)

	days, err := p.Calendar(ctx, "alice", d("2024-01-01"), d("2024-01-07"))
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, []string{"2024-01-01 tpl-work", "2024-01-04 tpl-work", "2024-01-07 tpl-work"}, scheduled(days))
	assert.Empty(t, days[1].Entries)
	require.NotNil(t, days[0].Entries[0].Template)
	assert.Equal(t, "Work", days[0].Entries[0].Template.Name)

	day, err := p.Day(ctx, "alice", d("2024-01-04"))
	require.NoError(t, err)
	require.Len(t, day.Entries, 1)
	assert.Equal(t, "s1", day.Entries[0].SeriesID)

	day, err = p.Day(ctx, "alice", d("2024-01-05"))
	require.NoError(t, err)
	assert.Empty(t, day.Entries)

	others, err := p.Calendar(ctx, "bob", d("2024-01-01"), d("2024-01-07"))
	require.NoError(t, err)
	assert.Empty(t, scheduled(others))
}

func TestPlanner_AssignTemplateErrors(t *testing.T) {
	p := newTestPlanner(t, newSeededStore(t))

	tests := []struct {
		name    string
		mutate  func(*AssignRequest)
		checkFn func(error) bool
	}{
		{
			name:    "missing owner",
			mutate:  func(r *AssignRequest) { r.OwnerRef = "" },
			checkFn: recurrence.IsConfiguration,
		},
		{
			name:    "negative interval",
			mutate:  func(r *AssignRequest) { r.Pattern.Interval = -1 },
			checkFn: recurrence.IsConfiguration,
		},
		{
			name:    "unknown kind",
			mutate:  func(r *AssignRequest) { r.Pattern.Kind = "hourly" },
			checkFn: recurrence.IsConfiguration,
		},
		{
			name:    "end before start",
			mutate:  func(r *AssignRequest) { r.EndDate = mo.Some(d("2023-12-31")) },
			checkFn: recurrence.IsConfiguration,
		},
		{
			name:    "missing template reference",
			mutate:  func(r *AssignRequest) { r.TemplateRef = "" },
			checkFn: recurrence.IsConfiguration,
		},
		{
			name:    "unknown template",
			mutate:  func(r *AssignRequest) { r.TemplateRef = "tpl-none" },
			checkFn: recurrence.IsNotFound,
		},
		{
			name:    "template of another owner",
			mutate:  func(r *AssignRequest) { r.TemplateRef = "tpl-bob" },
			checkFn: recurrence.IsNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := everyThirdDay()
			tt.mutate(&req)
			_, err := p.AssignTemplate(context.Background(), req)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
}

func TestPlanner_EditThisAndFuture(t *testing.T) {
	p := newTestPlanner(t, newSeededStore(t))
	ctx := context.Background()

	series, err := p.AssignTemplate(ctx, everyThirdDay())
	require.NoError(t, err)

	res, err := p.EditOccurrence(ctx, series.ID, editor.ScopeThisAndFuture, d("2024-01-07"),
		editor.Mutation{Action: editor.ActionRetemplate, TemplateRef: "tpl-rest"})
	require.NoError(t, err)
	assert.Equal(t, mo.Some(d("2024-01-06")), res.Updated.EndDate)
	succ, ok := res.Successor.Get()
	require.True(t, ok)
	assert.Equal(t, "s2", succ.ID)
	assert.Equal(t, series.ID, succ.ParentID)

	days, err := p.Calendar(ctx, "alice", d("2024-01-01"), d("2024-01-13"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2024-01-01 tpl-work",
		"2024-01-04 tpl-work",
		"2024-01-07 tpl-rest",
		"2024-01-10 tpl-rest",
		"2024-01-13 tpl-rest",
	}, scheduled(days))

	// The original now ends on 01-06.
	_, err = p.EditOccurrence(ctx, series.ID, editor.ScopeThis, d("2024-01-10"), editor.Mutation{Action: editor.ActionDelete})
	assert.True(t, recurrence.IsNotFound(err))
}

func TestPlanner_EditThis(t *testing.T) {
	p := newTestPlanner(t, newSeededStore(t))
	ctx := context.Background()

	series, err := p.AssignTemplate(ctx, everyThirdDay())
	require.NoError(t, err)

	for range 2 {
		_, err = p.EditOccurrence(ctx, series.ID, editor.ScopeThis, d("2024-01-04"),
			editor.Mutation{Action: editor.ActionDelete, Reason: "travel"})
		require.NoError(t, err, "deleting twice is idempotent")
	}
	_, err = p.EditOccurrence(ctx, series.ID, editor.ScopeThis, d("2024-01-07"),
		editor.Mutation{Action: editor.ActionRetemplate, TemplateRef: "tpl-rest", Reason: "recovery"})
	require.NoError(t, err)

	days, err := p.Calendar(ctx, "alice", d("2024-01-01"), d("2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01 tpl-work", "2024-01-07 tpl-rest", "2024-01-10 tpl-work"}, scheduled(days))

	modified := days[6].Entries[0]
	assert.True(t, modified.Modified)
	assert.Equal(t, "tpl-work", modified.OriginalTemplateRef)
	assert.Equal(t, "recovery", modified.Reason)
	assert.Equal(t, "Rest", modified.Template.Name)

	_, err = p.EditOccurrence(ctx, series.ID, editor.ScopeThis, d("2024-01-04"), editor.Mutation{Action: editor.ActionRestore})
	require.NoError(t, err)
	day, err := p.Day(ctx, "alice", d("2024-01-04"))
	require.NoError(t, err)
	assert.Len(t, day.Entries, 1)

	_, err = p.EditOccurrence(ctx, series.ID, editor.ScopeThis, d("2024-01-05"), editor.Mutation{Action: editor.ActionDelete})
	assert.True(t, recurrence.IsNotFound(err), "not an occurrence")

	_, err = p.EditOccurrence(ctx, series.ID, editor.ScopeAll, d("2024-01-01"),
		editor.Mutation{Action: editor.ActionRetemplate, TemplateRef: "tpl-bob"})
	assert.True(t, recurrence.IsNotFound(err), "foreign template")

	_, err = p.EditOccurrence(ctx, "missing", editor.ScopeAll, d("2024-01-01"), editor.Mutation{Action: editor.ActionDelete})
	assert.True(t, storage.IsNotFound(err))
}

func TestPlanner_RemoveAssignment(t *testing.T) {
	p := newTestPlanner(t, newSeededStore(t))
	ctx := context.Background()

	series, err := p.AssignTemplate(ctx, everyThirdDay())
	require.NoError(t, err)

	require.NoError(t, p.RemoveAssignment(ctx, series.ID))
	require.NoError(t, p.RemoveAssignment(ctx, series.ID), "removing twice is a no-op")

	days, err := p.Calendar(ctx, "alice", d("2024-01-01"), d("2024-01-07"))
	require.NoError(t, err)
	assert.Empty(t, scheduled(days))

	err = p.RemoveAssignment(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))
}

func TestPlanner_MissingTemplateIsNilAndLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store := &storage.MockStorage{}
	series := storage.NewMockSeries("a", "alice", "tpl-gone", "2024-01-01", recurrence.Daily{Every: 1})
	store.On("LoadSeriesOverlapping", mock.Anything, "alice", mock.Anything, mock.Anything).
		Return([]*recurrence.Series{series}, nil)
	store.On("GetTemplate", mock.Anything, "tpl-gone").
		Return(nil, &storage.Error{Type: storage.ErrNotFound, Message: "template not found"})

	p := newTestPlanner(t, store, WithLogger(logger))
	days, err := p.Calendar(context.Background(), "alice", d("2024-01-01"), d("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, days, 3)
	for _, day := range days {
		require.Len(t, day.Entries, 1)
		assert.Nil(t, day.Entries[0].Template)
		assert.Equal(t, "tpl-gone", day.Entries[0].TemplateRef)
	}

	store.AssertNumberOfCalls(t, "GetTemplate", 1)
	assert.Contains(t, logs.String(), "scheduled template is missing")
	assert.Contains(t, logs.String(), "template_ref=tpl-gone")
}

func TestPlanner_StorageFailures(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("load", func(t *testing.T) {
		store := &storage.MockStorage{}
		store.On("LoadSeriesOverlapping", mock.Anything, "alice", mock.Anything, mock.Anything).Return(nil, boom)
		p := newTestPlanner(t, store)

		_, err := p.Calendar(context.Background(), "alice", d("2024-01-01"), d("2024-01-03"))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("template", func(t *testing.T) {
		store := &storage.MockStorage{}
		series := storage.NewMockSeries("a", "alice", "tpl-work", "2024-01-01", recurrence.Daily{Every: 1})
		store.On("LoadSeriesOverlapping", mock.Anything, "alice", mock.Anything, mock.Anything).
			Return([]*recurrence.Series{series}, nil)
		store.On("GetTemplate", mock.Anything, "tpl-work").Return(nil, boom)
		p := newTestPlanner(t, store)

		_, err := p.Day(context.Background(), "alice", d("2024-01-02"))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("conflict", func(t *testing.T) {
		store := &storage.MockStorage{}
		series := storage.NewMockSeries("a", "alice", "tpl-work", "2024-01-01", recurrence.Daily{Every: 1})
		store.SetupOwnerWithSeries("alice", []*recurrence.Series{series})
		store.On("CommitEdit", mock.Anything, mock.Anything, mock.Anything).
			Return(&storage.Error{Type: storage.ErrConflict, Message: "series was modified concurrently"})
		p := newTestPlanner(t, store)

		_, err := p.EditOccurrence(context.Background(), "a", editor.ScopeThis, d("2024-01-02"), editor.Mutation{Action: editor.ActionDelete})
		assert.True(t, storage.IsConflict(err))
		store.AssertNumberOfCalls(t, "CommitEdit", 1)
	})

	t.Run("range over limit", func(t *testing.T) {
		store := &storage.MockStorage{}
		p := newTestPlanner(t, store, WithEngineConfig(recurrence.DefaultEngineConfig))

		_, err := p.Calendar(context.Background(), "alice", d("2024-01-01"), d("2026-12-31"))
		assert.True(t, recurrence.IsConfiguration(err))
		store.AssertNumberOfCalls(t, "LoadSeriesOverlapping", 0)
	})

	t.Run("missing owner", func(t *testing.T) {
		p := newTestPlanner(t, &storage.MockStorage{})
		_, err := p.Calendar(context.Background(), "", d("2024-01-01"), d("2024-01-03"))
		assert.True(t, recurrence.IsConfiguration(err))
	})
}

func TestPlanner_Exports(t *testing.T) {
	p := newTestPlanner(t, newSeededStore(t))
	ctx := context.Background()

	series, err := p.AssignTemplate(ctx, everyThirdDay())
	require.NoError(t, err)
	_, err = p.EditOccurrence(ctx, series.ID, editor.ScopeThis, d("2024-01-04"),
		editor.Mutation{Action: editor.ActionRetemplate, TemplateRef: "tpl-rest"})
	require.NoError(t, err)

	ics, err := p.ExportICS(ctx, "alice", d("2024-01-01"), d("2024-01-31"))
	require.NoError(t, err)
	assert.Contains(t, string(ics), "FREQ=DAILY")
	assert.Contains(t, string(ics), "SUMMARY:Work")
	assert.Contains(t, string(ics), "SUMMARY:Rest", "override event uses the modified template")

	expanded, err := p.ExportExpandedICS(ctx, "alice", d("2024-01-01"), d("2024-01-07"))
	require.NoError(t, err)
	assert.Equal(t, 3, bytes.Count(expanded, []byte("BEGIN:VEVENT")))

	data, err := p.ExportXCal(ctx, "alice", d("2024-01-01"), d("2024-01-07"))
	require.NoError(t, err)
	cal, err := xml.Unmarshal(data)
	require.NoError(t, err)
	require.Len(t, cal.Events, 3)
	assert.Equal(t, "Rest", cal.Events[1].Summary)
}
