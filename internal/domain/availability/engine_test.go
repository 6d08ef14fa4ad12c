package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/clinic/agenda/internal/domain/clinic"
)

func weekdayPolicy(d time.Time) DayPolicy {
	return DefaultRules().Resolve("cal", d, &clinic.WorkingHoursRule{StartHour: 10, EndHour: 19})
}

func TestCompute_SundayAlwaysEmpty(t *testing.T) {
	sun := at(2025, time.March, 2, 0, 0)
	p := DefaultRules().Resolve("cal", sun, &clinic.WorkingHoursRule{Weekday: 7, StartHour: 0, EndHour: 23})
	now := at(2025, time.February, 1, 8, 0)

	slots := NewEngine(time.Hour).Compute(p, nil, now, false)
	if len(slots) != 0 {
		t.Errorf("expected no slots on sunday, got %v", hours(slots))
	}
}

func TestCompute_LunchExcluded(t *testing.T) {
	day := at(2025, time.January, 15, 0, 0)
	now := at(2025, time.January, 1, 8, 0)

	slots := NewEngine(time.Hour).Compute(weekdayPolicy(day), nil, now, false)
	if containsHour(slots, 14) {
		t.Error("expected 14:00 to be excluded for lunch")
	}
	want := []int{10, 11, 12, 13, 15, 16, 17, 18, 19}
	if got := hours(slots); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestCompute_LeadTime(t *testing.T) {
	day := at(2025, time.January, 10, 0, 0)
	now := at(2025, time.January, 10, 9, 30)
	p := weekdayPolicy(day)
	p.OpenHour = 9

	slots := NewEngine(time.Hour).Compute(p, nil, now, true)
	if containsHour(slots, 9) || containsHour(slots, 10) {
		t.Errorf("expected 09:00 and 10:00 excluded, got %v", hours(slots))
	}
	if !containsHour(slots, 11) {
		t.Errorf("expected 11:00 available, got %v", hours(slots))
	}
}

func TestCompute_BoundaryNonOverlap(t *testing.T) {
	day := at(2025, time.January, 15, 0, 0)
	now := at(2025, time.January, 1, 8, 0)
	e := NewEngine(time.Hour)

	before := []BusyInterval{{Start: 12 * 60, End: 13 * 60}}
	if !containsHour(e.Compute(weekdayPolicy(day), before, now, false), 13) {
		t.Error("expected [12:00,13:00) to leave 13:00 free")
	}

	same := []BusyInterval{{Start: 13 * 60, End: 14 * 60}}
	if containsHour(e.Compute(weekdayPolicy(day), same, now, false), 13) {
		t.Error("expected [13:00,14:00) to block 13:00")
	}
}

func TestExplain_CountsSimultaneousEvents(t *testing.T) {
	day := at(2025, time.January, 15, 0, 0)
	now := at(2025, time.January, 1, 8, 0)
	busy := []BusyInterval{
		{Start: 11 * 60, End: 12 * 60},
		{Start: 11*60 + 30, End: 12*60 + 30},
	}

	checks := NewEngine(time.Hour).Explain(weekdayPolicy(day), busy, now, false)
	var c11, c12 HourCheck
	for _, c := range checks {
		switch c.Hour {
		case 11:
			c11 = c
		case 12:
			c12 = c
		}
	}
	if c11.Overlapping != 2 || c11.Reason != ReasonBusy {
		t.Errorf("expected 11:00 busy with 2 events, got %+v", c11)
	}
	if c12.Overlapping != 1 || c12.Available {
		t.Errorf("expected 12:00 busy with 1 event, got %+v", c12)
	}
	if len(checks) != 10 {
		t.Errorf("expected 10 checks, got %d", len(checks))
	}
}
