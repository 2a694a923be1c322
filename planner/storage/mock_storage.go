package storage

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
)

// MockStorage implements the Storage interface for testing
type MockStorage struct {
	mock.Mock
}

var _ Storage = (*MockStorage)(nil)

// LoadSeriesOverlapping implements the Storage interface
func (m *MockStorage) LoadSeriesOverlapping(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]*recurrence.Series, error) {
	args := m.Called(ctx, ownerRef, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*recurrence.Series), args.Error(1)
}

// GetSeries implements the Storage interface
func (m *MockStorage) GetSeries(ctx context.Context, id string) (*recurrence.Series, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	s := args.Get(0).(*recurrence.Series)
	if s == nil {
		return nil, args.Error(1)
	}
	return s, args.Error(1)
}

func (m *MockStorage) CreateSeries(ctx context.Context, s *recurrence.Series) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockStorage) SaveSeries(ctx context.Context, s *recurrence.Series) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockStorage) CommitEdit(ctx context.Context, updated *recurrence.Series, successor mo.Option[*recurrence.Series]) error {
	return m.Called(ctx, updated, successor).Error(0)
}

func (m *MockStorage) GetTemplate(ctx context.Context, ref string) (*Template, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Template), args.Error(1)
}

func (m *MockStorage) PutTemplate(ctx context.Context, t *Template) error {
	return m.Called(ctx, t).Error(0)
}

// --- Helper methods for creating test data ---

// NewMockTemplate creates a test Template with a single block
func NewMockTemplate(ref, owner, name string) *Template {
	return &Template{
		Ref:      ref,
		OwnerRef: owner,
		Name:     name,
		Color:    "#FF9500",
		Blocks: []TimeBlock{
			{Start: "09:00", End: "17:00", Activity: name},
		},
	}
}

// NewMockSeries creates an active test series starting on start
func NewMockSeries(id, owner, templateRef, start string, p recurrence.Pattern) *recurrence.Series {
	s, err := recurrence.NewSeries(recurrence.SeriesParams{
		ID:          id,
		TemplateRef: templateRef,
		OwnerRef:    owner,
		StartDate:   recurrence.MustParseDate(start),
		Pattern:     p,
	})
	if err != nil {
		panic(err)
	}
	s.Version = 1
	return s
}

// --- Convenience methods for setting up common test scenarios ---

// SetupOwnerWithSeries makes every overlap query for owner return series and
// every template lookup succeed.
func (m *MockStorage) SetupOwnerWithSeries(owner string, series []*recurrence.Series) {
	m.ExpectedCalls = removeMatchingCalls(m.ExpectedCalls, "LoadSeriesOverlapping", owner)
	m.On("LoadSeriesOverlapping", mock.Anything, owner, mock.Anything, mock.Anything).Return(series, nil)
	for _, s := range series {
		m.On("GetSeries", mock.Anything, s.ID).Return(s, nil)
		m.On("GetTemplate", mock.Anything, s.TemplateRef).Return(NewMockTemplate(s.TemplateRef, owner, s.TemplateRef), nil)
	}
}

// Helper to remove existing mock calls that match a method and the argument
// after the context
func removeMatchingCalls(calls []*mock.Call, method string, arg interface{}) []*mock.Call {
	result := make([]*mock.Call, 0, len(calls))
	for _, call := range calls {
		if call.Method == method && len(call.Arguments) > 1 && call.Arguments[1] == arg {
			continue
		}
		result = append(result, call)
	}
	return result
}
