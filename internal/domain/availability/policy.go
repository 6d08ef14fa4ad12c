// Package availability computes bookable hourly slots from the working-hours
// policy and the busy time reported by the external calendar.
package availability

import (
	"time"

	"github.com/clinic/agenda/internal/domain/clinic"
)

// Rules holds the operational overrides applied on top of the stored
// working-hours rule for each day type.
type Rules struct {
	WeekdayOpen   int
	WeekdayClose  int
	LunchStart    int
	LunchEnd      int
	SaturdayOpen  int
	SaturdayClose int
}

func DefaultRules() Rules {
	return Rules{
		WeekdayOpen:   10,
		WeekdayClose:  19,
		LunchStart:    14,
		LunchEnd:      15,
		SaturdayOpen:  10,
		SaturdayClose: 13,
	}
}

// DayPolicy is the resolved opening window for one calendar and date.
// CloseHour is the start of the last bookable session.
type DayPolicy struct {
	CalendarID string    `json:"calendarId"`
	Date       time.Time `json:"date"`
	OpenHour   int       `json:"openHour"`
	CloseHour  int       `json:"closeHour"`
	HasLunch   bool      `json:"hasLunch"`
	LunchStart int       `json:"lunchStart,omitempty"`
	LunchEnd   int       `json:"lunchEnd,omitempty"`
	IsClosed   bool      `json:"isClosed"`
}

// TotalPossibleSlots counts every hour from open to close inclusive.
func (p DayPolicy) TotalPossibleSlots() int {
	if p.IsClosed {
		return 0
	}
	return p.CloseHour - p.OpenHour + 1
}

// InLunch reports whether hour h starts inside the lunch break.
func (p DayPolicy) InLunch(h int) bool {
	return p.HasLunch && h >= p.LunchStart && h < p.LunchEnd
}

// Resolve derives the day policy. Sundays and days without a stored rule
// are closed. Saturdays clamp the rule to the Saturday window; weekdays use
// the fixed weekday window with lunch regardless of the stored hours.
func (r Rules) Resolve(calendarID string, date time.Time, raw *clinic.WorkingHoursRule) DayPolicy {
	p := DayPolicy{CalendarID: calendarID, Date: startOfDay(date)}

	weekday := clinic.ISOWeekday(date)
	switch {
	case weekday == 7 || raw == nil:
		p.IsClosed = true
	case weekday == 6:
		p.OpenHour = max(raw.StartHour, r.SaturdayOpen)
		p.CloseHour = min(raw.EndHour, r.SaturdayClose)
		if p.CloseHour < p.OpenHour {
			p.IsClosed = true
		}
	default:
		p.OpenHour = r.WeekdayOpen
		p.CloseHour = r.WeekdayClose
		p.HasLunch = true
		p.LunchStart = r.LunchStart
		p.LunchEnd = r.LunchEnd
	}

	if p.IsClosed {
		p.OpenHour, p.CloseHour = 0, 0
	}
	return p
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsSunday reports whether t falls on a Sunday in its own location.
func IsSunday(t time.Time) bool { return t.Weekday() == time.Sunday }
