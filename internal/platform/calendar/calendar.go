// Package calendar holds the external calendar port and its adapters.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConflict is returned by CreateEvent when the range is already taken.
	ErrConflict = errors.New("calendar: time range already booked")
	// ErrEventNotFound is returned by DeleteEvent for unknown or deleted ids.
	ErrEventNotFound = errors.New("calendar: event not found")
)

// Moment is an event boundary as the calendar reports it: either a full
// RFC 3339 timestamp or a date-only value for all-day events.
type Moment struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// At wraps a timestamp.
func At(t time.Time) Moment { return Moment{DateTime: t.Format(time.RFC3339)} }

// OnDate wraps an all-day date (YYYY-MM-DD).
func OnDate(date string) Moment { return Moment{Date: date} }

// IsAllDay reports whether the moment carries only a date.
func (m Moment) IsAllDay() bool { return m.DateTime == "" && m.Date != "" }

// In parses the moment in loc. All-day dates resolve to local midnight.
func (m Moment) In(loc *time.Location) (time.Time, error) {
	switch {
	case m.DateTime != "":
		t, err := time.Parse(time.RFC3339, m.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse dateTime %q: %w", m.DateTime, err)
		}
		return t.In(loc), nil
	case m.Date != "":
		t, err := time.ParseInLocation("2006-01-02", m.Date, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", m.Date, err)
		}
		return t, nil
	default:
		return time.Time{}, errors.New("empty moment")
	}
}

// Event is a calendar entry as listed by a Port.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       Moment `json:"start"`
	End         Moment `json:"end"`
}

// NewEvent is the payload for CreateEvent.
type NewEvent struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// Port is what the booking core needs from an external calendar.
type Port interface {
	// ListEvents returns events intersecting [from, to).
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error)
	// CreateEvent inserts ev under id and returns the stored id. It fails with
	// ErrConflict when another event already intersects [ev.Start, ev.End).
	CreateEvent(ctx context.Context, calendarID string, ev NewEvent, id string) (string, error)
	// DeleteEvent removes an event, or returns ErrEventNotFound.
	DeleteEvent(ctx context.Context, calendarID, id string) error
}

// Overlaps reports whether any event intersects the half-open range
// [start, end). Events that fail to parse are ignored.
func Overlaps(events []Event, start, end time.Time) bool {
	loc := start.Location()
	for _, ev := range events {
		s, err := ev.Start.In(loc)
		if err != nil {
			continue
		}
		e, err := ev.End.In(loc)
		if err != nil {
			continue
		}
		if ev.End.IsAllDay() && e.Equal(s) {
			e = s.AddDate(0, 0, 1)
		}
		if start.Before(e) && s.Before(end) {
			return true
		}
	}
	return false
}
