// Package gormstore is a relational storage.Storage backed by GORM. It runs on
// PostgreSQL in production and on SQLite for development and tests.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/mo"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// Store implements storage.Storage on a GORM connection.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *slog.Logger
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

// Dialector picks the driver for dsn: PostgreSQL URLs and keyword DSNs go to
// the postgres driver, anything else is an SQLite file name.
func Dialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// Open connects to dsn and migrates the planner tables.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := gorm.Open(Dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db, opts...)
}

// New wraps an open connection and migrates the planner tables.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:     db,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := db.AutoMigrate(&seriesRow{}, &exceptionRow{}, &templateRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate planner tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Series operations

func (s *Store) LoadSeriesOverlapping(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]*recurrence.Series, error) {
	var rows []seriesRow
	err := s.db.WithContext(ctx).
		Preload("Exceptions").
		Where("owner_ref = ? AND start_date <= ?", ownerRef, to.String()).
		Where("last_date IS NULL OR last_date >= ?", from.String()).
		Order("position, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load series for %s: %w", ownerRef, err)
	}

	out := make([]*recurrence.Series, 0, len(rows))
	for i := range rows {
		sr, err := rows[i].toSeries()
		if err != nil {
			s.logger.Error("skipping unreadable series",
				"series_id", rows[i].ID,
				"error", err)
			continue
		}
		out = append(out, sr)
	}
	return out, nil
}

func (s *Store) GetSeries(ctx context.Context, id string) (*recurrence.Series, error) {
	var row seriesRow
	err := s.db.WithContext(ctx).Preload("Exceptions").First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get series %s: %w", id, err)
	}
	return row.toSeries()
}

func (s *Store) CreateSeries(ctx context.Context, sr *recurrence.Series) error {
	var (
		position int64
		created  time.Time
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int64
		err := tx.Model(&seriesRow{}).
			Where("owner_ref = ?", sr.OwnerRef).
			Select("COALESCE(MAX(position), 0)").
			Scan(&last).Error
		if err != nil {
			return fmt.Errorf("failed to read last position: %w", err)
		}
		position = last + 1
		created, err = s.insert(tx, sr, position)
		return err
	})
	if err != nil {
		return err
	}

	sr.Position = position
	sr.Version = 1
	sr.CreatedAt = created
	sr.UpdatedAt = created
	return nil
}

func (s *Store) SaveSeries(ctx context.Context, sr *recurrence.Series) error {
	var updated time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) (err error) {
		updated, err = s.update(tx, sr)
		return err
	})
	if err != nil {
		return err
	}

	sr.Version++
	sr.UpdatedAt = updated
	return nil
}

func (s *Store) CommitEdit(ctx context.Context, updated *recurrence.Series, successor mo.Option[*recurrence.Series]) error {
	if updated == nil {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "series is required"}
	}
	succ, split := successor.Get()
	var updatedAt, createdAt time.Time
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if updatedAt, err = s.update(tx, updated); err != nil {
			return err
		}
		if split {
			createdAt, err = s.insert(tx, succ, succ.Position)
		}
		return err
	})
	if err != nil {
		s.logger.Warn("edit not committed",
			"series_id", updated.ID,
			"error", err)
		return err
	}

	updated.Version++
	updated.UpdatedAt = updatedAt
	if split {
		succ.Version = 1
		succ.CreatedAt = createdAt
		succ.UpdatedAt = createdAt
	}
	return nil
}

// insert creates sr at position with version 1. sr itself is not modified.
func (s *Store) insert(tx *gorm.DB, sr *recurrence.Series, position int64) (time.Time, error) {
	if sr == nil || sr.ID == "" {
		return time.Time{}, &storage.Error{Type: storage.ErrInvalidInput, Message: "series ID is required"}
	}
	if err := sr.Validate(); err != nil {
		return time.Time{}, &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid series", Err: err}
	}
	var n int64
	if err := tx.Model(&seriesRow{}).Where("id = ?", sr.ID).Count(&n).Error; err != nil {
		return time.Time{}, fmt.Errorf("failed to check series %s: %w", sr.ID, err)
	}
	if n > 0 {
		return time.Time{}, &storage.Error{Type: storage.ErrAlreadyExists, Message: "series already exists"}
	}

	row, err := newSeriesRow(sr)
	if err != nil {
		return time.Time{}, &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid series", Err: err}
	}
	now := s.now()
	row.Position = position
	row.Version = 1
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := tx.Create(row).Error; err != nil {
		return time.Time{}, fmt.Errorf("failed to create series %s: %w", sr.ID, err)
	}
	return now, nil
}

// update writes sr over the stored row if the stored version still equals
// sr.Version, then replaces the row's exceptions. sr itself is not modified.
func (s *Store) update(tx *gorm.DB, sr *recurrence.Series) (time.Time, error) {
	if sr == nil {
		return time.Time{}, &storage.Error{Type: storage.ErrInvalidInput, Message: "series is required"}
	}
	if err := sr.Validate(); err != nil {
		return time.Time{}, &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid series", Err: err}
	}
	row, err := newSeriesRow(sr)
	if err != nil {
		return time.Time{}, &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid series", Err: err}
	}

	now := s.now()
	res := tx.Model(&seriesRow{}).
		Where("id = ? AND version = ?", sr.ID, sr.Version).
		Updates(map[string]any{
			"template_ref": row.TemplateRef,
			"owner_ref":    row.OwnerRef,
			"start_date":   row.StartDate,
			"end_date":     row.EndDate,
			"last_date":    row.LastDate,
			"anchor_date":  row.AnchorDate,
			"pattern":      row.Pattern,
			"notes":        row.Notes,
			"is_active":    row.IsActive,
			"parent_id":    row.ParentID,
			"position":     row.Position,
			"version":      sr.Version + 1,
			"updated_at":   now,
		})
	if res.Error != nil {
		return time.Time{}, fmt.Errorf("failed to update series %s: %w", sr.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&seriesRow{}).Where("id = ?", sr.ID).Count(&n).Error; err != nil {
			return time.Time{}, fmt.Errorf("failed to check series %s: %w", sr.ID, err)
		}
		if n == 0 {
			return time.Time{}, &storage.Error{Type: storage.ErrNotFound, Message: "series not found"}
		}
		s.logger.Warn("stale series version",
			"series_id", sr.ID,
			"given", sr.Version)
		return time.Time{}, &storage.Error{Type: storage.ErrConflict, Message: "series was modified concurrently"}
	}

	if err := tx.Where("series_id = ?", sr.ID).Delete(&exceptionRow{}).Error; err != nil {
		return time.Time{}, fmt.Errorf("failed to clear exceptions of %s: %w", sr.ID, err)
	}
	if len(row.Exceptions) > 0 {
		if err := tx.Create(&row.Exceptions).Error; err != nil {
			return time.Time{}, fmt.Errorf("failed to write exceptions of %s: %w", sr.ID, err)
		}
	}
	return now, nil
}

// Template operations

func (s *Store) GetTemplate(ctx context.Context, ref string) (*storage.Template, error) {
	var row templateRow
	err := s.db.WithContext(ctx).First(&row, "ref = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "template not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", ref, err)
	}
	return row.toTemplate()
}

func (s *Store) PutTemplate(ctx context.Context, t *storage.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing templateRow
		err := tx.First(&existing, "ref = ?", t.Ref).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			t.Created = s.now()
		case err != nil:
			return fmt.Errorf("failed to read template %s: %w", t.Ref, err)
		default:
			t.Created = existing.CreatedAt
		}
		t.Modified = s.now()

		row, err := newTemplateRow(t)
		if err != nil {
			return &storage.Error{Type: storage.ErrInvalidInput, Message: "invalid template", Err: err}
		}
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("failed to save template %s: %w", t.Ref, err)
		}
		return nil
	})
}
