package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/clinic"
	"github.com/clinic/agenda/internal/platform/calendar"
)

// Mexico City has had no DST since 2022, so a fixed zone matches it.
var testLoc = time.FixedZone("CST", -6*60*60)

const testCalendarID = "primary"

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, testLoc)
}

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

type mockRules struct {
	rules map[int]*clinic.WorkingHoursRule
	err   error
}

func newMockRules() *mockRules {
	m := &mockRules{rules: make(map[int]*clinic.WorkingHoursRule)}
	for wd := 1; wd <= 5; wd++ {
		m.rules[wd] = &clinic.WorkingHoursRule{CalendarNumber: "1", Weekday: wd, StartHour: 10, EndHour: 19}
	}
	m.rules[6] = &clinic.WorkingHoursRule{CalendarNumber: "1", Weekday: 6, StartHour: 10, EndHour: 13}
	return m
}

func (m *mockRules) GetWorkingHoursRule(_ context.Context, _ string, wd int) (*clinic.WorkingHoursRule, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rules[wd], nil
}

type mockCatalog struct{}

func (mockCatalog) GetCalendar(_ context.Context, n string) (*clinic.Calendar, error) {
	if n != "1" {
		return nil, clinic.ErrCalendarNotFound
	}
	return &clinic.Calendar{Number: "1", GoogleCalendarID: testCalendarID, SpecialistName: "Dra. Ruiz", Active: true}, nil
}

func (mockCatalog) GetService(_ context.Context, n string) (*clinic.Service, error) {
	if n != "1" {
		return nil, clinic.ErrServiceNotFound
	}
	return &clinic.Service{Number: "1", Name: "Consulta", DurationMinutes: 60}, nil
}

var testTarget = Target{CalendarNumber: "1", CalendarID: testCalendarID, ServiceNumber: "1"}

type fixture struct {
	rules   *mockRules
	cal     *calendar.Memory
	eval    *Evaluator
	planner *Planner
	svc     *Service
}

func newFixture(now time.Time) *fixture {
	f := &fixture{rules: newMockRules(), cal: calendar.NewMemory()}
	f.eval = NewEvaluator(f.rules, f.cal, testLoc, time.Hour, fixedNow(now), zerolog.Nop())
	f.planner = NewPlanner(f.eval, DefaultPlannerConfig(), zerolog.Nop())
	f.svc = NewService(mockCatalog{}, f.eval, f.planner, 90, zerolog.Nop())
	return f
}

func (f *fixture) busy(start, end time.Time) {
	f.cal.Put(testCalendarID, calendar.Event{
		ID:    fmt.Sprintf("ev-%d", start.Unix()),
		Title: "Ocupado",
		Start: calendar.At(start),
		End:   calendar.At(end),
	})
}

func (f *fixture) blockDay(d time.Time) {
	f.cal.Put(testCalendarID, calendar.Event{
		ID:    "allday-" + d.Format("2006-01-02"),
		Title: "Cerrado",
		Start: calendar.OnDate(d.Format("2006-01-02")),
		End:   calendar.OnDate(d.AddDate(0, 0, 1).Format("2006-01-02")),
	})
}

func hours(slots []Slot) []int {
	out := make([]int, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Hour)
	}
	return out
}

func containsHour(slots []Slot, h int) bool {
	for _, s := range slots {
		if s.Hour == h {
			return true
		}
	}
	return false
}
