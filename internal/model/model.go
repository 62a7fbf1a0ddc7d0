// Package model defines shared types used across the resolver, the sync
// engine, and the calendar store adapters.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies a kind of waste pickup published by the site.
type Category string

const (
	// CategorySelective is the selective (recycling) collection.
	CategorySelective Category = "selective"
	// CategoryCommunal is the mixed household waste collection.
	CategoryCommunal Category = "communal"
)

// ParseCategory maps a config or CLI string to a Category. The empty string
// yields CategorySelective.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(CategorySelective):
		return CategorySelective, nil
	case string(CategoryCommunal):
		return CategoryCommunal, nil
	default:
		return "", fmt.Errorf("unknown category %q (want selective or communal)", s)
	}
}

// Marker returns the CSS class the site puts on the marker element of a
// result row belonging to this category.
func (c Category) Marker() string {
	return string(c)
}

// Label returns the Hungarian display name used in event titles.
func (c Category) Label() string {
	switch c {
	case CategorySelective:
		return "Szelektív hulladékszállítás"
	case CategoryCommunal:
		return "Kommunális hulladékszállítás"
	default:
		return string(c)
	}
}

// Date is a calendar day without time or location. It is comparable and safe
// to use as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// NewDate returns the Date for year, month and day, or an error if the
// combination does not exist (e.g. February 30).
func NewDate(year int, month time.Month, day int) (Date, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, int(month), day)
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// In returns midnight of the day in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Before reports whether d is an earlier day than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String formats the day as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// OptionRecord is one entry of a selection control as published by the site.
// Value is opaque and only meaningful within the session that produced it.
type OptionRecord struct {
	Label string
	Value string
}

// AddressConstraint is the human-readable address a cascade resolves.
type AddressConstraint struct {
	DistrictQuery string
	StreetQuery   string
	HouseNumber   string
}

// String renders the constraint for logs.
func (a AddressConstraint) String() string {
	return fmt.Sprintf("%s / %s %s", a.DistrictQuery, a.StreetQuery, a.HouseNumber)
}

// CollectionDate is one pickup day for a category.
type CollectionDate struct {
	Date     Date
	Category Category
}

// FetchResult holds the ordered, de-duplicated dates fetched for one address.
type FetchResult struct {
	Address  AddressConstraint
	Category Category
	Dates    []CollectionDate
}

// DatesFor returns the days of the result that belong to category c, in
// result order.
func (r *FetchResult) DatesFor(c Category) []Date {
	out := make([]Date, 0, len(r.Dates))
	for _, cd := range r.Dates {
		if cd.Category == c {
			out = append(out, cd.Date)
		}
	}
	return out
}

// CalendarEvent is an event as seen through a calendar store adapter. Tag
// marks events owned by this program; events are never matched by title.
type CalendarEvent struct {
	ID    string
	Title string
	Date  Date
	Tag   string
}

// EventTitle returns the title given to the event for day d of category c.
func EventTitle(c Category, d Date) string {
	return fmt.Sprintf("%s (%s)", c.Label(), d)
}
