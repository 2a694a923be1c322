package gormstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/mo"
	"gorm.io/datatypes"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// Dates are stored as YYYY-MM-DD text, which orders correctly as a string.

type seriesRow struct {
	ID          string  `gorm:"primaryKey;size:64"`
	OwnerRef    string  `gorm:"size:128;not null;index:idx_planner_series_span,priority:1"`
	TemplateRef string  `gorm:"size:128;not null"`
	StartDate   string  `gorm:"size:10;not null;index:idx_planner_series_span,priority:2"`
	EndDate     *string `gorm:"size:10"`
	// LastDate is the earlier of EndDate and the pattern's until; NULL when open.
	LastDate   *string        `gorm:"size:10"`
	AnchorDate *string        `gorm:"size:10"`
	Pattern    datatypes.JSON `gorm:"not null"`
	Notes      string
	IsActive   bool   `gorm:"not null;default:true"`
	ParentID   string `gorm:"size:64;index"`
	Position   int64  `gorm:"not null"`
	Version    int64  `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Exceptions []exceptionRow `gorm:"foreignKey:SeriesID;constraint:OnDelete:CASCADE"`
}

func (seriesRow) TableName() string { return "planner_series" }

type exceptionRow struct {
	SeriesID            string `gorm:"primaryKey;size:64"`
	OriginalDate        string `gorm:"primaryKey;size:10"`
	Action              string `gorm:"size:16;not null"`
	ModifiedTemplateRef string `gorm:"size:128"`
	Reason              string
}

func (exceptionRow) TableName() string { return "planner_exceptions" }

type templateRow struct {
	Ref       string         `gorm:"primaryKey;size:128"`
	OwnerRef  string         `gorm:"size:128;not null;index"`
	Name      string         `gorm:"not null"`
	Color     string         `gorm:"size:16"`
	Blocks    datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (templateRow) TableName() string { return "planner_templates" }

func optionalDate(o mo.Option[recurrence.Date]) *string {
	d, ok := o.Get()
	if !ok {
		return nil
	}
	s := d.String()
	return &s
}

func parseOptionalDate(s *string) (mo.Option[recurrence.Date], error) {
	if s == nil || *s == "" {
		return mo.None[recurrence.Date](), nil
	}
	d, err := recurrence.ParseDate(*s)
	if err != nil {
		return mo.None[recurrence.Date](), err
	}
	return mo.Some(d), nil
}

func newSeriesRow(s *recurrence.Series) (*seriesRow, error) {
	pattern, err := json.Marshal(recurrence.SpecOf(s.Pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to encode pattern: %w", err)
	}
	row := &seriesRow{
		ID:          s.ID,
		OwnerRef:    s.OwnerRef,
		TemplateRef: s.TemplateRef,
		StartDate:   s.StartDate.String(),
		EndDate:     optionalDate(s.EndDate),
		LastDate:    optionalDate(s.LastPossibleDate()),
		Pattern:     datatypes.JSON(pattern),
		Notes:       s.Notes,
		IsActive:    s.IsActive,
		ParentID:    s.ParentID,
		Position:    s.Position,
		Version:     s.Version,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if !s.Anchor.IsZero() {
		a := s.Anchor.String()
		row.AnchorDate = &a
	}
	row.Exceptions = exceptionRows(s)
	return row, nil
}

func exceptionRows(s *recurrence.Series) []exceptionRow {
	rows := make([]exceptionRow, 0, len(s.Exceptions))
	for d, ex := range s.Exceptions {
		rows = append(rows, exceptionRow{
			SeriesID:            s.ID,
			OriginalDate:        d.String(),
			Action:              string(ex.Action),
			ModifiedTemplateRef: ex.ModifiedTemplateRef,
			Reason:              ex.Reason,
		})
	}
	return rows
}

func (r *seriesRow) toSeries() (*recurrence.Series, error) {
	var spec recurrence.PatternSpec
	if err := json.Unmarshal(r.Pattern, &spec); err != nil {
		return nil, fmt.Errorf("series %s: failed to decode pattern: %w", r.ID, err)
	}
	pattern, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", r.ID, err)
	}
	start, err := recurrence.ParseDate(r.StartDate)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", r.ID, err)
	}
	end, err := parseOptionalDate(r.EndDate)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", r.ID, err)
	}
	anchor, err := parseOptionalDate(r.AnchorDate)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", r.ID, err)
	}

	s := &recurrence.Series{
		ID:          r.ID,
		TemplateRef: r.TemplateRef,
		OwnerRef:    r.OwnerRef,
		StartDate:   start,
		EndDate:     end,
		Anchor:      anchor.OrEmpty(),
		Pattern:     pattern,
		Notes:       r.Notes,
		Exceptions:  make(map[recurrence.Date]recurrence.Exception, len(r.Exceptions)),
		IsActive:    r.IsActive,
		ParentID:    r.ParentID,
		Position:    r.Position,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, er := range r.Exceptions {
		d, err := recurrence.ParseDate(er.OriginalDate)
		if err != nil {
			return nil, fmt.Errorf("series %s exception: %w", r.ID, err)
		}
		s.Exceptions[d] = recurrence.Exception{
			OriginalDate:        d,
			Action:              recurrence.ExceptionAction(er.Action),
			ModifiedTemplateRef: er.ModifiedTemplateRef,
			Reason:              er.Reason,
		}
	}
	return s, nil
}

func newTemplateRow(t *storage.Template) (*templateRow, error) {
	blocks, err := json.Marshal(t.Blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blocks: %w", err)
	}
	return &templateRow{
		Ref:       t.Ref,
		OwnerRef:  t.OwnerRef,
		Name:      t.Name,
		Color:     t.Color,
		Blocks:    datatypes.JSON(blocks),
		CreatedAt: t.Created,
		UpdatedAt: t.Modified,
	}, nil
}

func (r *templateRow) toTemplate() (*storage.Template, error) {
	t := &storage.Template{
		Ref:      r.Ref,
		OwnerRef: r.OwnerRef,
		Name:     r.Name,
		Color:    r.Color,
		Created:  r.CreatedAt,
		Modified: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Blocks, &t.Blocks); err != nil {
		return nil, fmt.Errorf("template %s: failed to decode blocks: %w", r.Ref, err)
	}
	return t, nil
}
