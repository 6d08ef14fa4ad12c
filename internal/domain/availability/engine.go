package availability

import (
	"fmt"
	"time"
)

// Slot is a free 60 minute session starting on the hour.
type Slot struct {
	Hour       int    `json:"hour"`
	Date       string `json:"date"`
	CalendarID string `json:"calendarId"`
}

// Time renders the slot start as HH:MM.
func (s Slot) Time() string { return fmt.Sprintf("%02d:00", s.Hour) }

// Exclusion reasons reported by Engine.Explain.
const (
	ReasonClosed   = "closed"
	ReasonLunch    = "lunch"
	ReasonLeadTime = "lead_time"
	ReasonBusy     = "busy"
)

// HourCheck is the verdict for one candidate hour.
type HourCheck struct {
	Hour        int    `json:"hour"`
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
	Overlapping int    `json:"overlapping"`
}

// Engine evaluates candidate hours against a day policy.
type Engine struct {
	LeadTime time.Duration
}

func NewEngine(leadTime time.Duration) Engine { return Engine{LeadTime: leadTime} }

// Explain checks every hour in [OpenHour, CloseHour]. Busy intervals are all
// counted so that simultaneous external events show up in Overlapping.
func (e Engine) Explain(p DayPolicy, busy []BusyInterval, now time.Time, applyLeadTime bool) []HourCheck {
	if p.IsClosed {
		return nil
	}
	earliest := now.Add(e.LeadTime)
	checks := make([]HourCheck, 0, p.TotalPossibleSlots())
	for h := p.OpenHour; h <= p.CloseHour; h++ {
		c := HourCheck{Hour: h, Available: true}

		slotStart, slotEnd := h*60, (h+1)*60
		for _, b := range busy {
			if slotStart < b.End && slotEnd > b.Start {
				c.Overlapping++
			}
		}

		switch {
		case p.InLunch(h):
			c.Available, c.Reason = false, ReasonLunch
		case applyLeadTime && hourStart(p.Date, h).Before(earliest):
			c.Available, c.Reason = false, ReasonLeadTime
		case c.Overlapping > 0:
			c.Available, c.Reason = false, ReasonBusy
		}
		checks = append(checks, c)
	}
	return checks
}

// Compute returns the free slots of the day in ascending order.
func (e Engine) Compute(p DayPolicy, busy []BusyInterval, now time.Time, applyLeadTime bool) []Slot {
	date := p.Date.Format("2006-01-02")
	var slots []Slot
	for _, c := range e.Explain(p, busy, now, applyLeadTime) {
		if c.Available {
			slots = append(slots, Slot{Hour: c.Hour, Date: date, CalendarID: p.CalendarID})
		}
	}
	return slots
}

func hourStart(day time.Time, h int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, day.Location())
}
