package storage

import (
	"fmt"
	"strings"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
)

// ResourceType represents the type of a planner resource
type ResourceType int

const (
	ResourceTypeCalendar ResourceType = iota
	ResourceTypeCalendarICS
	ResourceTypeCalendarXML
	ResourceTypeDay
	ResourceTypeSeriesCollection
	ResourceTypeSeries
	ResourceTypeSeriesEdit
)

// String returns the string representation of the ResourceType
func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeCalendar:
		return "calendar"
	case ResourceTypeCalendarICS:
		return "calendar-ics"
	case ResourceTypeCalendarXML:
		return "calendar-xml"
	case ResourceTypeDay:
		return "day"
	case ResourceTypeSeriesCollection:
		return "series-collection"
	case ResourceTypeSeries:
		return "series"
	case ResourceTypeSeriesEdit:
		return "series-edit"
	default:
		return "unknown"
	}
}

// ResourcePath represents a parsed planner resource path
type ResourcePath struct {
	Type     ResourceType
	OwnerRef string
	SeriesID string
	Date     recurrence.Date
}

// String returns the string representation of the ResourcePath
func (rp *ResourcePath) String() string {
	switch rp.Type {
	case ResourceTypeCalendar:
		return fmt.Sprintf("/u/%s/calendar", rp.OwnerRef)
	case ResourceTypeCalendarICS:
		return fmt.Sprintf("/u/%s/calendar.ics", rp.OwnerRef)
	case ResourceTypeCalendarXML:
		return fmt.Sprintf("/u/%s/calendar.xml", rp.OwnerRef)
	case ResourceTypeDay:
		return fmt.Sprintf("/u/%s/day/%s", rp.OwnerRef, rp.Date)
	case ResourceTypeSeriesCollection:
		return fmt.Sprintf("/u/%s/series", rp.OwnerRef)
	case ResourceTypeSeries:
		return fmt.Sprintf("/u/%s/series/%s", rp.OwnerRef, rp.SeriesID)
	case ResourceTypeSeriesEdit:
		return fmt.Sprintf("/u/%s/series/%s/edit", rp.OwnerRef, rp.SeriesID)
	default:
		return ""
	}
}

// ParseResourcePath parses a request path into its components
func ParseResourcePath(path string) (*ResourcePath, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	// Split path into components
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "u" {
		return nil, fmt.Errorf("invalid path format")
	}

	owner := parts[1]
	if owner == "" {
		return nil, fmt.Errorf("invalid owner")
	}
	rp := &ResourcePath{OwnerRef: owner}

	switch parts[2] {
	case "calendar", "calendar.ics", "calendar.xml":
		if len(parts) != 3 {
			break
		}
		rp.Type = map[string]ResourceType{
			"calendar":     ResourceTypeCalendar,
			"calendar.ics": ResourceTypeCalendarICS,
			"calendar.xml": ResourceTypeCalendarXML,
		}[parts[2]]
		return rp, nil
	case "day":
		// Day path: /u/<owner>/day/<YYYY-MM-DD>
		if len(parts) != 4 {
			break
		}
		date, err := recurrence.ParseDate(parts[3])
		if err != nil {
			return nil, err
		}
		rp.Type = ResourceTypeDay
		rp.Date = date
		return rp, nil
	case "series":
		switch {
		case len(parts) == 3:
			rp.Type = ResourceTypeSeriesCollection
			return rp, nil
		case len(parts) == 4 && parts[3] != "":
			rp.Type = ResourceTypeSeries
			rp.SeriesID = parts[3]
			return rp, nil
		case len(parts) == 5 && parts[3] != "" && parts[4] == "edit":
			rp.Type = ResourceTypeSeriesEdit
			rp.SeriesID = parts[3]
			return rp, nil
		}
	}

	return nil, fmt.Errorf("invalid path format")
}
