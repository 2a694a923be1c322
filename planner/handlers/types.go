package handlers

import (
	"slices"
	"time"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
)

type assignRequest struct {
	TemplateRef string                 `json:"templateRef" validate:"required,max=128"`
	StartDate   string                 `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string                 `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Pattern     recurrence.PatternSpec `json:"pattern"`
	Notes       string                 `json:"notes" validate:"max=2000"`
}

type editRequest struct {
	Scope       string `json:"scope" validate:"required,oneof=this this_and_future all"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	Action      string `json:"action" validate:"required,oneof=delete retemplate restore"`
	TemplateRef string `json:"templateRef" validate:"required_if=Action retemplate,max=128"`
	Reason      string `json:"reason" validate:"max=500"`
}

type exceptionResponse struct {
	Date                recurrence.Date `json:"date"`
	Action              string          `json:"action"`
	ModifiedTemplateRef string          `json:"modifiedTemplateRef,omitempty"`
	Reason              string          `json:"reason,omitempty"`
}

type seriesResponse struct {
	ID          string                 `json:"id"`
	OwnerRef    string                 `json:"ownerRef"`
	TemplateRef string                 `json:"templateRef"`
	StartDate   recurrence.Date        `json:"startDate"`
	EndDate     *recurrence.Date       `json:"endDate,omitempty"`
	Anchor      *recurrence.Date       `json:"anchor,omitempty"`
	Pattern     recurrence.PatternSpec `json:"pattern"`
	Notes       string                 `json:"notes,omitempty"`
	IsActive    bool                   `json:"isActive"`
	ParentID    string                 `json:"parentId,omitempty"`
	Position    int64                  `json:"position"`
	Version     int64                  `json:"version"`
	Exceptions  []exceptionResponse    `json:"exceptions"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

func newSeriesResponse(s *recurrence.Series) seriesResponse {
	resp := seriesResponse{
		ID:          s.ID,
		OwnerRef:    s.OwnerRef,
		TemplateRef: s.TemplateRef,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate.ToPointer(),
		Pattern:     recurrence.SpecOf(s.Pattern),
		Notes:       s.Notes,
		IsActive:    s.IsActive,
		ParentID:    s.ParentID,
		Position:    s.Position,
		Version:     s.Version,
		Exceptions:  make([]exceptionResponse, 0, len(s.Exceptions)),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if !s.Anchor.IsZero() {
		anchor := s.Anchor
		resp.Anchor = &anchor
	}
	for d, ex := range s.Exceptions {
		resp.Exceptions = append(resp.Exceptions, exceptionResponse{
			Date:                d,
			Action:              string(ex.Action),
			ModifiedTemplateRef: ex.ModifiedTemplateRef,
			Reason:              ex.Reason,
		})
	}
	slices.SortFunc(resp.Exceptions, func(a, b exceptionResponse) int {
		return a.Date.Compare(b.Date)
	})
	return resp
}

type editResponse struct {
	Updated   seriesResponse  `json:"updated"`
	Successor *seriesResponse `json:"successor,omitempty"`
}
