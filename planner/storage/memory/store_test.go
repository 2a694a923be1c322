package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

func d(s string) recurrence.Date { return recurrence.MustParseDate(s) }

func newSeries(t *testing.T, id, owner, start string, p recurrence.Pattern) *recurrence.Series {
	t.Helper()
	s, err := recurrence.NewSeries(recurrence.SeriesParams{
		ID:          id,
		TemplateRef: "tpl-work",
		OwnerRef:    owner,
		StartDate:   d(start),
		Pattern:     p,
	})
	require.NoError(t, err)
	return s
}

func fixedClock() func() time.Time {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestStore_CreateAndGetSeries(t *testing.T) {
	store := New(WithClock(fixedClock()))
	ctx := context.Background()

	_, err := store.GetSeries(ctx, "missing")
	assert.True(t, storage.IsNotFound(err))

	first := newSeries(t, "a", "alice", "2024-01-01", recurrence.Daily{Every: 1})
	second := newSeries(t, "b", "alice", "2024-01-01", recurrence.Daily{Every: 1})
	other := newSeries(t, "c", "bob", "2024-01-01", recurrence.Daily{Every: 1})
	for _, s := range []*recurrence.Series{first, second, other} {
		require.NoError(t, store.CreateSeries(ctx, s))
	}

	assert.Equal(t, int64(1), first.Position)
	assert.Equal(t, int64(2), second.Position)
	assert.Equal(t, int64(1), other.Position, "positions are per owner")
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, fixedClock()(), first.CreatedAt)

	got, err := store.GetSeries(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// Mutating the returned copy does not reach the store.
	got.Exceptions[d("2024-01-02")] = recurrence.Exception{OriginalDate: d("2024-01-02"), Action: recurrence.ActionDelete}
	again, err := store.GetSeries(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, again.Exceptions)

	err = store.CreateSeries(ctx, newSeries(t, "a", "alice", "2024-01-01", recurrence.Once{}))
	require.Error(t, err)
	assert.Equal(t, storage.ErrAlreadyExists, err.(*storage.Error).Type)

	err = store.CreateSeries(ctx, &recurrence.Series{ID: "bad", OwnerRef: "alice"})
	assert.True(t, storage.IsInvalidInput(err))
}

func TestStore_LoadSeriesOverlapping(t *testing.T) {
	store := New()
	ctx := context.Background()

	early := newSeries(t, "early", "alice", "2024-01-01", recurrence.Daily{Every: 1})
	early.EndDate = mo.Some(d("2024-01-31"))
	late := newSeries(t, "late", "alice", "2024-03-01", recurrence.Weekly{Every: 1})
	open := newSeries(t, "open", "alice", "2023-06-01", recurrence.Monthly{Every: 1})
	open.IsActive = false
	bobs := newSeries(t, "bobs", "bob", "2024-01-01", recurrence.Daily{Every: 1})
	for _, s := range []*recurrence.Series{early, late, open, bobs} {
		require.NoError(t, store.CreateSeries(ctx, s))
	}

	tests := []struct {
		name     string
		from, to string
		expected []string
	}{
		{name: "january", from: "2024-01-01", to: "2024-01-31", expected: []string{"early", "open"}},
		{name: "february", from: "2024-02-01", to: "2024-02-29", expected: []string{"open"}},
		{name: "spring", from: "2024-02-15", to: "2024-03-15", expected: []string{"late", "open"}},
		{name: "before everything", from: "2023-01-01", to: "2023-05-31", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.LoadSeriesOverlapping(ctx, "alice", d(tt.from), d(tt.to))
			require.NoError(t, err)
			var ids []string
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.ElementsMatch(t, tt.expected, ids)
		})
	}
}

func TestStore_SaveSeriesVersionCheck(t *testing.T) {
	store := New()
	ctx := context.Background()

	s := newSeries(t, "a", "alice", "2024-01-01", recurrence.Daily{Every: 1})
	require.NoError(t, store.CreateSeries(ctx, s))

	readA, err := store.GetSeries(ctx, "a")
	require.NoError(t, err)
	readB, err := store.GetSeries(ctx, "a")
	require.NoError(t, err)

	readA.TemplateRef = "tpl-rest"
	require.NoError(t, store.SaveSeries(ctx, readA))
	assert.Equal(t, int64(2), readA.Version)

	readB.Notes = "late writer"
	err = store.SaveSeries(ctx, readB)
	assert.True(t, storage.IsConflict(err))

	stored, err := store.GetSeries(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "tpl-rest", stored.TemplateRef)
	assert.Empty(t, stored.Notes)

	err = store.SaveSeries(ctx, newSeries(t, "ghost", "alice", "2024-01-01", recurrence.Once{}))
	assert.True(t, storage.IsNotFound(err))
}

func TestStore_CommitEdit(t *testing.T) {
	store := New()
	ctx := context.Background()

	s := newSeries(t, "a", "alice", "2024-01-01", recurrence.Daily{Every: 1})
	require.NoError(t, store.CreateSeries(ctx, s))

	updated := s.Clone()
	updated.EndDate = mo.Some(d("2024-01-09"))
	succ := newSeries(t, "b", "alice", "2024-01-10", recurrence.Daily{Every: 1})
	succ.Anchor = d("2024-01-01")
	succ.ParentID = "a"
	succ.Position = s.Position

	require.NoError(t, store.CommitEdit(ctx, updated, mo.Some(succ)))

	gotA, err := store.GetSeries(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, mo.Some(d("2024-01-09")), gotA.EndDate)
	assert.Equal(t, int64(2), gotA.Version)

	gotB, err := store.GetSeries(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, s.Position, gotB.Position)
	assert.Equal(t, int64(1), gotB.Version)
	assert.Equal(t, "a", gotB.ParentID)

	// A stale commit changes nothing, successor included.
	stale := s.Clone()
	stale.Notes = "stale"
	err = store.CommitEdit(ctx, stale, mo.Some(newSeries(t, "c", "alice", "2024-02-01", recurrence.Once{})))
	assert.True(t, storage.IsConflict(err))
	_, err = store.GetSeries(ctx, "c")
	assert.True(t, storage.IsNotFound(err))

	// So does a commit whose successor already exists.
	err = store.CommitEdit(ctx, gotA, mo.Some(gotB))
	require.Error(t, err)
	unchanged, err := store.GetSeries(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unchanged.Version)
}

func TestStore_ConcurrentEditsConflict(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.CreateSeries(ctx, newSeries(t, "a", "alice", "2024-01-01", recurrence.Daily{Every: 1})))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		read, err := store.GetSeries(ctx, "a")
		require.NoError(t, err)
		wg.Add(1)
		go func(s *recurrence.Series) {
			defer wg.Done()
			if err := store.CommitEdit(ctx, s, mo.None[*recurrence.Series]()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(read)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded, "only one writer holding version 1 may win")
}

func TestStore_Templates(t *testing.T) {
	store := New(WithClock(fixedClock()))
	ctx := context.Background()

	_, err := store.GetTemplate(ctx, "tpl-work")
	assert.True(t, storage.IsNotFound(err))

	tpl := storage.NewMockTemplate("tpl-work", "alice", "Work")
	require.NoError(t, store.PutTemplate(ctx, tpl))

	got, err := store.GetTemplate(ctx, "tpl-work")
	require.NoError(t, err)
	assert.Equal(t, "Work", got.Name)
	assert.Equal(t, fixedClock()(), got.Created)

	got.Blocks[0].Activity = "changed"
	again, err := store.GetTemplate(ctx, "tpl-work")
	require.NoError(t, err)
	assert.Equal(t, "Work", again.Blocks[0].Activity)

	err = store.PutTemplate(ctx, &storage.Template{Ref: "x", OwnerRef: "alice"})
	assert.True(t, storage.IsInvalidInput(err))
}
