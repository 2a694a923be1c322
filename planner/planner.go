package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/editor"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/export"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// Planner is the calling service around the recurrence engine: it loads
// series from storage, expands and edits them, and resolves templates.
type Planner struct {
	store    storage.Storage
	engine   *recurrence.Engine
	editor   *editor.Editor
	exporter *export.Exporter
	logger   *slog.Logger

	engineConfig recurrence.EngineConfig
	newID        func() string
	now          func() time.Time
}

// Option represents a configuration option for the Planner
type Option func(*Planner)

// WithLogger sets the logger for the planner and the components it builds
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEngineConfig sets the recurrence engine configuration.
func WithEngineConfig(config recurrence.EngineConfig) Option {
	return func(p *Planner) {
		p.engineConfig = config
	}
}

// WithIDGenerator sets the function naming new series, split successors
// included.
func WithIDGenerator(fn func() string) Option {
	return func(p *Planner) {
		if fn != nil {
			p.newID = fn
		}
	}
}

// WithClock sets the time source of export timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a planner over store.
func New(store storage.Storage, opts ...Option) *Planner {
	p := &Planner{
		store:        store,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		engineConfig: recurrence.DefaultEngineConfig,
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.engine = recurrence.NewEngineWithConfig(p.engineConfig, recurrence.WithLogger(p.logger))
	p.editor = editor.New(p.engine, editor.WithIDGenerator(p.newID), editor.WithLogger(p.logger))
	p.exporter = export.New(p.engine, export.WithClock(p.now))
	return p
}

// Close releases the engine cache.
func (p *Planner) Close() {
	p.engine.Close()
}

// Engine returns the recurrence engine used by the planner.
func (p *Planner) Engine() *recurrence.Engine {
	return p.engine
}

// AssignRequest describes a new template assignment.
type AssignRequest struct {
	OwnerRef    string
	TemplateRef string
	StartDate   recurrence.Date
	EndDate     mo.Option[recurrence.Date]
	Pattern     recurrence.PatternSpec
	Notes       string
}

// AssignTemplate creates a series scheduling a template. The template must
// exist and belong to the owner.
func (p *Planner) AssignTemplate(ctx context.Context, req AssignRequest) (*recurrence.Series, error) {
	if req.OwnerRef == "" {
		return nil, recurrence.Configurationf("owner is required")
	}
	pattern, err := req.Pattern.Build()
	if err != nil {
		return nil, err
	}
	if _, err := p.template(ctx, req.OwnerRef, req.TemplateRef); err != nil {
		return nil, err
	}

	series, err := recurrence.NewSeries(recurrence.SeriesParams{
		ID:          p.newID(),
		TemplateRef: req.TemplateRef,
		OwnerRef:    req.OwnerRef,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Pattern:     pattern,
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, err
	}
	if err := p.store.CreateSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("failed to create series: %w", err)
	}

	p.logger.Info("template assigned",
		"series_id", series.ID,
		"owner", series.OwnerRef,
		"template_ref", series.TemplateRef,
		"start_date", series.StartDate,
		"frequency", pattern.Frequency())
	return series, nil
}

// Series returns one of the owner's series. A series of another owner is
// reported as not found.
func (p *Planner) Series(ctx context.Context, ownerRef, seriesID string) (*recurrence.Series, error) {
	series, err := p.store.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to get series %s: %w", seriesID, err)
	}
	if series.OwnerRef != ownerRef {
		return nil, recurrence.NotFoundf("series %s not found", seriesID)
	}
	return series, nil
}

// RemoveAssignment deactivates a series. Removing an inactive series is a
// no-op.
func (p *Planner) RemoveAssignment(ctx context.Context, seriesID string) error {
	series, err := p.store.GetSeries(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("failed to get series %s: %w", seriesID, err)
	}
	if !series.IsActive {
		return nil
	}
	series.IsActive = false
	if err := p.store.SaveSeries(ctx, series); err != nil {
		return fmt.Errorf("failed to deactivate series %s: %w", seriesID, err)
	}
	p.logger.Info("assignment removed", "series_id", seriesID)
	return nil
}

// CalendarEntry is a scheduled template together with the template itself.
// Template is nil when the reference no longer resolves.
type CalendarEntry struct {
	recurrence.ScheduledTemplate
	Template *storage.Template `json:"template"`
}

// CalendarDay is the resolved schedule of one date.
type CalendarDay struct {
	Date    recurrence.Date `json:"date"`
	Entries []CalendarEntry `json:"entries"`
}

// Calendar returns the owner's schedule for every date in [from, to].
// Ranges longer than the engine's MaxRangeDays are rejected with a
// configuration error rather than truncated.
func (p *Planner) Calendar(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]CalendarDay, error) {
	series, err := p.load(ctx, ownerRef, from, to)
	if err != nil {
		return nil, err
	}
	templates := newTemplateMemo(p)
	days := p.engine.Expand(series, from, to)

	out := make([]CalendarDay, 0, len(days))
	for _, day := range days {
		resolved, err := templates.resolve(ctx, day)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// Day returns the owner's schedule for a single date.
func (p *Planner) Day(ctx context.Context, ownerRef string, d recurrence.Date) (CalendarDay, error) {
	series, err := p.load(ctx, ownerRef, d, d)
	if err != nil {
		return CalendarDay{}, err
	}
	return newTemplateMemo(p).resolve(ctx, p.engine.Day(series, d))
}

// EditOccurrence applies m to the series at date and commits the result.
func (p *Planner) EditOccurrence(ctx context.Context, seriesID string, scope editor.Scope, date recurrence.Date, m editor.Mutation) (editor.Result, error) {
	series, err := p.store.GetSeries(ctx, seriesID)
	if err != nil {
		return editor.Result{}, fmt.Errorf("failed to get series %s: %w", seriesID, err)
	}
	if m.Action == editor.ActionRetemplate {
		if _, err := p.template(ctx, series.OwnerRef, m.TemplateRef); err != nil {
			return editor.Result{}, err
		}
	}

	res, err := p.editor.Apply(series, scope, date, m)
	if err != nil {
		return editor.Result{}, err
	}
	if err := p.store.CommitEdit(ctx, res.Updated, res.Successor); err != nil {
		return editor.Result{}, fmt.Errorf("failed to commit edit of %s: %w", seriesID, err)
	}

	attrs := []any{
		"series_id", seriesID,
		"scope", scope,
		"action", m.Action,
		"date", date,
	}
	if succ, ok := res.Successor.Get(); ok {
		attrs = append(attrs, "successor_id", succ.ID)
	}
	p.logger.Info("occurrence edited", attrs...)
	return res, nil
}

// ExportICS renders the owner's series overlapping [from, to] as recurring
// iCalendar events.
func (p *Planner) ExportICS(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]byte, error) {
	series, err := p.load(ctx, ownerRef, from, to)
	if err != nil {
		return nil, err
	}
	memo := newTemplateMemo(p)
	for _, s := range series {
		if !s.IsActive {
			continue
		}
		memo.lookup(ctx, s.TemplateRef)
		for _, ex := range s.Exceptions {
			if ex.Action == recurrence.ActionModify {
				memo.lookup(ctx, ex.ModifiedTemplateRef)
			}
		}
	}
	if memo.err != nil {
		return nil, memo.err
	}
	return p.exporter.SeriesICS(series, memo.found())
}

// ExportExpandedICS renders one iCalendar event per scheduled entry in
// [from, to].
func (p *Planner) ExportExpandedICS(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]byte, error) {
	days, templates, err := p.expandForExport(ctx, ownerRef, from, to)
	if err != nil {
		return nil, err
	}
	return p.exporter.ExpandedICS(days, templates)
}

// ExportXCal renders one xCal event per scheduled entry in [from, to].
func (p *Planner) ExportXCal(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]byte, error) {
	days, templates, err := p.expandForExport(ctx, ownerRef, from, to)
	if err != nil {
		return nil, err
	}
	return p.exporter.ExpandedXCal(days, templates)
}

func (p *Planner) expandForExport(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]recurrence.ScheduledDay, map[string]*storage.Template, error) {
	series, err := p.load(ctx, ownerRef, from, to)
	if err != nil {
		return nil, nil, err
	}
	days := p.engine.Expand(series, from, to)
	memo := newTemplateMemo(p)
	for _, day := range days {
		for _, entry := range day.Entries {
			memo.lookup(ctx, entry.TemplateRef)
		}
	}
	if memo.err != nil {
		return nil, nil, memo.err
	}
	return days, memo.found(), nil
}

func (p *Planner) load(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]*recurrence.Series, error) {
	if ownerRef == "" {
		return nil, recurrence.Configurationf("owner is required")
	}
	if !from.Valid() || !to.Valid() {
		return nil, recurrence.Configurationf("invalid range %s..%s", from, to)
	}
	if limit := p.engineConfig.MaxRangeDays; limit > 0 && from.DaysUntil(to)+1 > limit {
		return nil, recurrence.Configurationf("range %s..%s spans more than %d days", from, to, limit)
	}
	series, err := p.store.LoadSeriesOverlapping(ctx, ownerRef, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	return series, nil
}

// template fetches ref and checks it belongs to owner. A missing or foreign
// template is reported as not found.
func (p *Planner) template(ctx context.Context, ownerRef, ref string) (*storage.Template, error) {
	if ref == "" {
		return nil, recurrence.Configurationf("template reference is required")
	}
	t, err := p.store.GetTemplate(ctx, ref)
	if storage.IsNotFound(err) || (err == nil && t.OwnerRef != ownerRef) {
		return nil, recurrence.NotFoundf("template %s not found", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", ref, err)
	}
	return t, nil
}
