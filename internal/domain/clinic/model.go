package clinic

import "time"

// Calendar is a bookable specialist agenda backed by one external calendar.
type Calendar struct {
	Number           string `db:"number" json:"number" yaml:"number"`
	GoogleCalendarID string `db:"google_calendar_id" json:"google_calendar_id" yaml:"google_calendar_id"`
	SpecialistName   string `db:"specialist_name" json:"specialist_name" yaml:"specialist_name"`
	Active           bool   `db:"active" json:"active" yaml:"active"`
}

// Service is a bookable service type.
type Service struct {
	Number          string `db:"number" json:"number" yaml:"number"`
	Name            string `db:"name" json:"name" yaml:"name"`
	DurationMinutes int    `db:"duration_minutes" json:"duration_minutes" yaml:"duration_minutes"`
}

// Duration returns the event length, one hour when unset.
func (s *Service) Duration() time.Duration {
	if s == nil || s.DurationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(s.DurationMinutes) * time.Minute
}

// WorkingHoursRule is the raw opening window stored for a calendar and ISO
// weekday (1 = Monday, 7 = Sunday).
type WorkingHoursRule struct {
	CalendarNumber string `db:"calendar_number" json:"calendar_number" yaml:"calendar_number"`
	Weekday        int    `db:"weekday" json:"weekday" yaml:"weekday"`
	StartHour      int    `db:"start_hour" json:"start_hour" yaml:"start_hour"`
	EndHour        int    `db:"end_hour" json:"end_hour" yaml:"end_hour"`
}

// ISOWeekday maps time.Weekday to 1..7 with Sunday as 7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
