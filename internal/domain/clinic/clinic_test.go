package clinic

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// -- Mock Repository --

type mockRepo struct {
	calendars map[string]*Calendar
	services  map[string]*Service
	hours     map[string]*WorkingHoursRule
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		calendars: make(map[string]*Calendar),
		services:  make(map[string]*Service),
		hours:     make(map[string]*WorkingHoursRule),
	}
}

func hoursKey(cal string, wd int) string { return fmt.Sprintf("%s/%d", cal, wd) }

func (m *mockRepo) GetCalendar(_ context.Context, n string) (*Calendar, error) {
	c, ok := m.calendars[n]
	if !ok {
		return nil, ErrCalendarNotFound
	}
	return c, nil
}

func (m *mockRepo) ListCalendars(_ context.Context) ([]*Calendar, error) {
	var out []*Calendar
	for _, c := range m.calendars {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockRepo) GetService(_ context.Context, n string) (*Service, error) {
	s, ok := m.services[n]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return s, nil
}

func (m *mockRepo) GetWorkingHoursRule(_ context.Context, cal string, wd int) (*WorkingHoursRule, error) {
	return m.hours[hoursKey(cal, wd)], nil
}

func (m *mockRepo) UpsertCalendar(_ context.Context, c *Calendar) error {
	m.calendars[c.Number] = c
	return nil
}

func (m *mockRepo) UpsertService(_ context.Context, s *Service) error {
	m.services[s.Number] = s
	return nil
}

func (m *mockRepo) UpsertWorkingHours(_ context.Context, w *WorkingHoursRule) error {
	m.hours[hoursKey(w.CalendarNumber, w.Weekday)] = w
	return nil
}

const catalogYAML = `
calendars:
  - number: "1"
    google_calendar_id: dra-lopez@group.calendar.google.com
    specialist_name: Dra. López
    active: true
services:
  - number: "1"
    name: Consulta
    duration_minutes: 60
working_hours:
  - {calendar_number: "1", weekday: 1, start_hour: 9, end_hour: 20}
  - {calendar_number: "1", weekday: 6, start_hour: 9, end_hour: 15}
`

func TestDecodeCatalog_AndApply(t *testing.T) {
	cat, err := DecodeCatalog(strings.NewReader(catalogYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cat.Calendars) != 1 || len(cat.Services) != 1 || len(cat.WorkingHours) != 2 {
		t.Fatalf("unexpected catalog sizes: %+v", cat)
	}

	repo := newMockRepo()
	if err := cat.Apply(context.Background(), repo); err != nil {
		t.Fatalf("apply error: %v", err)
	}
	cal, err := repo.GetCalendar(context.Background(), "1")
	if err != nil {
		t.Fatalf("expected calendar 1, got %v", err)
	}
	if cal.SpecialistName != "Dra. López" {
		t.Errorf("expected Dra. López, got %s", cal.SpecialistName)
	}
	rule, _ := repo.GetWorkingHoursRule(context.Background(), "1", 6)
	if rule == nil || rule.StartHour != 9 || rule.EndHour != 15 {
		t.Errorf("expected saturday rule 9-15, got %+v", rule)
	}
	if rule, _ := repo.GetWorkingHoursRule(context.Background(), "1", 7); rule != nil {
		t.Errorf("expected no sunday rule, got %+v", rule)
	}
}

func TestDecodeCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "calendars:\n  - number: \"1\"\n    colour: red\n"},
		{"missing calendar id", "calendars:\n  - number: \"1\"\n"},
		{"unknown calendar", "working_hours:\n  - {calendar_number: \"9\", weekday: 1, start_hour: 9, end_hour: 10}\n"},
		{"bad duration", "services:\n  - {number: \"1\", name: X, duration_minutes: 0}\n"},
		{"bad weekday", "calendars:\n  - {number: \"1\", google_calendar_id: x}\nworking_hours:\n  - {calendar_number: \"1\", weekday: 8, start_hour: 9, end_hour: 10}\n"},
		{"inverted hours", "calendars:\n  - {number: \"1\", google_calendar_id: x}\nworking_hours:\n  - {calendar_number: \"1\", weekday: 2, start_hour: 15, end_hour: 10}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCatalog(strings.NewReader(tt.doc)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestISOWeekday(t *testing.T) {
	sunday := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	if got := ISOWeekday(sunday); got != 7 {
		t.Errorf("expected 7 for Sunday, got %d", got)
	}
	monday := sunday.AddDate(0, 0, 1)
	if got := ISOWeekday(monday); got != 1 {
		t.Errorf("expected 1 for Monday, got %d", got)
	}
}

func TestService_Duration(t *testing.T) {
	var s *Service
	if s.Duration() != time.Hour {
		t.Errorf("expected 1h for nil service, got %s", s.Duration())
	}
	s = &Service{DurationMinutes: 90}
	if s.Duration() != 90*time.Minute {
		t.Errorf("expected 90m, got %s", s.Duration())
	}
}
