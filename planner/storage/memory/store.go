// memory based implementation for testing purposes
package memory

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/mo"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// Store implements storage.Storage interface using in-memory maps
type Store struct {
	mu        sync.RWMutex
	series    map[string]*recurrence.Series // key: series ID
	templates map[string]*storage.Template  // key: template ref
	positions map[string]int64              // key: owner ref, last assigned position
	now       func() time.Time
	logger    *slog.Logger
}

var _ storage.Storage = (*Store)(nil)

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new in-memory storage
func New(opts ...Option) *Store {
	s := &Store{
		series:    make(map[string]*recurrence.Series),
		templates: make(map[string]*storage.Template),
		positions: make(map[string]int64),
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Series operations

func (s *Store) LoadSeriesOverlapping(_ context.Context, ownerRef string, from, to recurrence.Date) ([]*recurrence.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*recurrence.Series
	for _, sr := range s.series {
		if sr.OwnerRef == ownerRef && sr.Overlaps(from, to) {
			out = append(out, sr.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *recurrence.Series) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) GetSeries(_ context.Context, id string) (*recurrence.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sr, ok := s.series[id]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "series not found",
		}
	}
	return sr.Clone(), nil
}

func (s *Store) CreateSeries(_ context.Context, sr *recurrence.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNew(sr); err != nil {
		return err
	}

	s.positions[sr.OwnerRef]++
	sr.Position = s.positions[sr.OwnerRef]
	s.insert(sr)

	s.logger.Debug("series created",
		"series_id", sr.ID,
		"owner", sr.OwnerRef,
		"position", sr.Position)
	return nil
}

func (s *Store) SaveSeries(_ context.Context, sr *recurrence.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUpdate(sr); err != nil {
		return err
	}
	s.update(sr)
	return nil
}

func (s *Store) CommitEdit(_ context.Context, updated *recurrence.Series, successor mo.Option[*recurrence.Series]) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check everything before touching anything.
	if err := s.checkUpdate(updated); err != nil {
		return err
	}
	succ, split := successor.Get()
	if split {
		if err := s.checkNew(succ); err != nil {
			return err
		}
	}

	s.update(updated)
	if split {
		s.insert(succ)
	}

	s.logger.Debug("edit committed",
		"series_id", updated.ID,
		"version", updated.Version,
		"split", split)
	return nil
}

func (s *Store) checkNew(sr *recurrence.Series) error {
	if sr == nil || sr.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "series ID is required"}
	}
	if err := sr.Validate(); err != nil {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid series", Err: err}
	}
	if _, exists := s.series[sr.ID]; exists {
		return &storage.Error{
			Type:    storage.ErrAlreadyExists,
			Message: "series already exists",
		}
	}
	return nil
}

func (s *Store) checkUpdate(sr *recurrence.Series) error {
	if sr == nil {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "series is required"}
	}
	if err := sr.Validate(); err != nil {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid series", Err: err}
	}
	stored, ok := s.series[sr.ID]
	if !ok {
		return &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "series not found",
		}
	}
	if stored.Version != sr.Version {
		s.logger.Warn("stale series version",
			"series_id", sr.ID,
			"stored", stored.Version,
			"given", sr.Version)
		return &storage.Error{
			Type:    storage.ErrConflict,
			Message: "series was modified concurrently",
		}
	}
	return nil
}

func (s *Store) insert(sr *recurrence.Series) {
	now := s.now()
	sr.Version = 1
	sr.CreatedAt = now
	sr.UpdatedAt = now
	s.series[sr.ID] = sr.Clone()
}

func (s *Store) update(sr *recurrence.Series) {
	stored := s.series[sr.ID]
	sr.Version++
	sr.CreatedAt = stored.CreatedAt
	sr.UpdatedAt = s.now()
	s.series[sr.ID] = sr.Clone()
}

// Template operations

func (s *Store) GetTemplate(_ context.Context, ref string) (*storage.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[ref]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "template not found",
		}
	}
	c := *t
	c.Blocks = slices.Clone(t.Blocks)
	return &c, nil
}

func (s *Store) PutTemplate(_ context.Context, t *storage.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.templates[t.Ref]; ok {
		t.Created = existing.Created
	} else {
		t.Created = now
	}
	t.Modified = now

	c := *t
	c.Blocks = slices.Clone(t.Blocks)
	s.templates[t.Ref] = &c
	return nil
}
