// Package xml encodes and decodes the subset of xCal (RFC 6321) used for
// planner exports: a single calendar of all-day events.
package xml

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
)

// Element names
const (
	TagICalendar  = "icalendar"
	TagVCalendar  = "vcalendar"
	TagVEvent     = "vevent"
	TagProperties = "properties"
	TagComponents = "components"

	TagVersion     = "version"
	TagProductID   = "prodid"
	TagUID         = "uid"
	TagDateStamp   = "dtstamp"
	TagDateStart   = "dtstart"
	TagDateEnd     = "dtend"
	TagSummary     = "summary"
	TagDescription = "description"
	TagColor       = "color"

	// Value types
	TagText     = "text"
	TagDate     = "date"
	TagDateTime = "date-time"
)

// Calendar is an xCal vcalendar.
type Calendar struct {
	ProductID string
	Events    []Event
}

// Event is an all-day vevent. Dates use the YYYY-MM-DD form and
// Stamp the UTC form 2006-01-02T15:04:05Z.
type Event struct {
	UID         string
	Stamp       string
	Start       string
	End         string
	Summary     string
	Description string
	Color       string
}

// ToXML converts the calendar to an XML document
func (c *Calendar) ToXML() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement(TagICalendar)
	AddNamespaces(doc)

	vcal := root.CreateElement(TagVCalendar)
	props := vcal.CreateElement(TagProperties)
	addValue(props, TagVersion, TagText, "2.0")
	addValue(props, TagProductID, TagText, c.ProductID)

	components := vcal.CreateElement(TagComponents)
	for _, e := range c.Events {
		vevent := components.CreateElement(TagVEvent)
		props := vevent.CreateElement(TagProperties)
		addValue(props, TagUID, TagText, e.UID)
		if e.Stamp != "" {
			addValue(props, TagDateStamp, TagDateTime, e.Stamp)
		}
		addValue(props, TagDateStart, TagDate, e.Start)
		if e.End != "" {
			addValue(props, TagDateEnd, TagDate, e.End)
		}
		addValue(props, TagSummary, TagText, e.Summary)
		if e.Description != "" {
			addValue(props, TagDescription, TagText, e.Description)
		}
		if e.Color != "" {
			addValue(props, TagColor, TagText, e.Color)
		}
	}
	return doc
}

// Parse reads a calendar from an xCal document. Unknown properties and
// components are ignored.
func (c *Calendar) Parse(doc *etree.Document) error {
	if doc == nil || doc.Root() == nil {
		return fmt.Errorf("empty document")
	}
	root := doc.Root()
	if root.Tag != TagICalendar {
		return fmt.Errorf("invalid root tag: %s", root.Tag)
	}
	vcal := root.SelectElement(TagVCalendar)
	if vcal == nil {
		return fmt.Errorf("missing %s element", TagVCalendar)
	}

	c.ProductID = ""
	c.Events = nil
	if props := vcal.SelectElement(TagProperties); props != nil {
		c.ProductID = value(props, TagProductID, TagText)
	}

	components := vcal.SelectElement(TagComponents)
	if components == nil {
		return nil
	}
	for _, vevent := range components.SelectElements(TagVEvent) {
		props := vevent.SelectElement(TagProperties)
		if props == nil {
			continue
		}
		e := Event{
			UID:         value(props, TagUID, TagText),
			Stamp:       value(props, TagDateStamp, TagDateTime),
			Start:       value(props, TagDateStart, TagDate),
			End:         value(props, TagDateEnd, TagDate),
			Summary:     value(props, TagSummary, TagText),
			Description: value(props, TagDescription, TagText),
			Color:       value(props, TagColor, TagText),
		}
		if e.UID == "" || e.Start == "" {
			return fmt.Errorf("vevent %d: uid and dtstart are required", len(c.Events))
		}
		c.Events = append(c.Events, e)
	}
	return nil
}

// Marshal renders the calendar as indented XML.
func (c *Calendar) Marshal() ([]byte, error) {
	doc := c.ToXML()
	doc.Indent(2)
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write xcal: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses xCal bytes into a calendar.
func Unmarshal(data []byte) (*Calendar, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to read xcal: %w", err)
	}
	c := &Calendar{}
	if err := c.Parse(doc); err != nil {
		return nil, err
	}
	return c, nil
}

func addValue(props *etree.Element, name, kind, text string) {
	props.CreateElement(name).CreateElement(kind).SetText(text)
}

func value(props *etree.Element, name, kind string) string {
	prop := props.SelectElement(name)
	if prop == nil {
		return ""
	}
	if v := prop.SelectElement(kind); v != nil {
		return v.Text()
	}
	return ""
}
