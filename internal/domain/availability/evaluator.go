package availability

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/clinic"
	"github.com/clinic/agenda/internal/platform/calendar"
)

// Data sources tagged on every day result.
const (
	SourceCalendar = "calendar-api"
	SourceMock     = "mock-fallback"
	SourcePolicy   = "policy"
)

// RuleSource is the policy store lookup.
type RuleSource interface {
	GetWorkingHoursRule(ctx context.Context, calendarNumber string, weekday int) (*clinic.WorkingHoursRule, error)
}

// Target identifies what is being searched: a clinic calendar (by its
// number and external id) and the requested service.
type Target struct {
	CalendarNumber string
	CalendarID     string
	ServiceNumber  string
}

// DayResult is the availability of one date.
type DayResult struct {
	Date                 time.Time      `json:"-"`
	DateStr              string         `json:"date"`
	Slots                []Slot         `json:"slots"`
	TotalPossibleSlots   int            `json:"totalPossibleSlots"`
	OccupiedCount        int            `json:"occupiedCount"`
	OccupationPercentage int            `json:"occupationPercentage"`
	DataSource           string         `json:"dataSource"`
	Policy               DayPolicy      `json:"policy"`
	Busy                 []BusyInterval `json:"busy,omitempty"`
	Checks               []HourCheck    `json:"checks,omitempty"`
}

// HasSlots reports whether at least one slot is free.
func (d *DayResult) HasSlots() bool { return d != nil && len(d.Slots) > 0 }

// Evaluator computes day availability from the policy store, the calendar,
// and the engine. It is the single day-level entry point used by the
// planner, the booking re-check and diagnostics.
type Evaluator struct {
	rules      RuleSource
	cal        calendar.Port
	policy     Rules
	normalizer Normalizer
	engine     Engine
	loc        *time.Location
	now        func() time.Time
	logger     zerolog.Logger
}

func NewEvaluator(rules RuleSource, cal calendar.Port, loc *time.Location, leadTime time.Duration, now func() time.Time, logger zerolog.Logger) *Evaluator {
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		rules:      rules,
		cal:        cal,
		policy:     DefaultRules(),
		normalizer: NewNormalizer(loc, logger),
		engine:     NewEngine(leadTime),
		loc:        loc,
		now:        now,
		logger:     logger,
	}
}

// Location is the clinic timezone.
func (e *Evaluator) Location() *time.Location { return e.loc }

// Now returns the current time in the clinic timezone.
func (e *Evaluator) Now() time.Time { return e.now().In(e.loc) }

// Today returns local midnight of the current date.
func (e *Evaluator) Today() time.Time { return startOfDay(e.Now()) }

// ResolvePolicy looks up the stored rule and applies the day-type overrides.
func (e *Evaluator) ResolvePolicy(ctx context.Context, t Target, date time.Time) (DayPolicy, error) {
	date = startOfDay(date.In(e.loc))
	if IsSunday(date) {
		return e.policy.Resolve(t.CalendarID, date, nil), nil
	}
	raw, err := e.rules.GetWorkingHoursRule(ctx, t.CalendarNumber, clinic.ISOWeekday(date))
	if err != nil {
		return DayPolicy{}, fmt.Errorf("working hours for calendar %s: %w", t.CalendarNumber, err)
	}
	return e.policy.Resolve(t.CalendarID, date, raw), nil
}

// EvaluateDay returns the free slots of date. A calendar failure falls back
// to an empty busy set tagged SourceMock; policy store failures are
// returned. Lead time applies to today and to any earlier date.
func (e *Evaluator) EvaluateDay(ctx context.Context, t Target, date time.Time) (*DayResult, error) {
	policy, err := e.ResolvePolicy(ctx, t, date)
	if err != nil {
		return nil, err
	}
	day := policy.Date
	res := &DayResult{
		Date:               day,
		DateStr:            day.Format("2006-01-02"),
		Policy:             policy,
		TotalPossibleSlots: policy.TotalPossibleSlots(),
		DataSource:         SourcePolicy,
	}
	if policy.IsClosed {
		return res, nil
	}

	events, err := e.cal.ListEvents(ctx, t.CalendarID, day, day.AddDate(0, 0, 1))
	if err != nil {
		e.logger.Warn().Err(err).
			Str("calendar", t.CalendarNumber).
			Str("date", res.DateStr).
			Msg("calendar unavailable, using mock availability")
		res.DataSource = SourceMock
		events = nil
	} else {
		res.DataSource = SourceCalendar
	}

	now := e.Now()
	applyLead := !day.After(startOfDay(now))
	res.Busy = e.normalizer.Normalize(events, day)
	res.Checks = e.engine.Explain(policy, res.Busy, now, applyLead)
	res.Slots = e.engine.Compute(policy, res.Busy, now, applyLead)

	res.OccupiedCount = res.TotalPossibleSlots - len(res.Slots)
	if res.TotalPossibleSlots > 0 {
		res.OccupationPercentage = int(math.Round(float64(res.OccupiedCount) / float64(res.TotalPossibleSlots) * 100))
	}

	for _, c := range res.Checks {
		if c.Overlapping > 1 {
			e.logger.Debug().
				Str("calendar", t.CalendarNumber).
				Str("date", res.DateStr).
				Int("hour", c.Hour).
				Int("events", c.Overlapping).
				Msg("simultaneous events in slot")
		}
	}
	return res, nil
}

// IsWorkingDay checks only the policy, never the calendar.
func (e *Evaluator) IsWorkingDay(ctx context.Context, t Target, date time.Time) (bool, error) {
	p, err := e.ResolvePolicy(ctx, t, date)
	if err != nil {
		return false, err
	}
	return !p.IsClosed, nil
}

// HourFree re-derives the day and reports whether hour is still bookable.
func (e *Evaluator) HourFree(ctx context.Context, t Target, date time.Time, hour int) (bool, *DayResult, error) {
	res, err := e.EvaluateDay(ctx, t, date)
	if err != nil {
		return false, nil, err
	}
	for _, s := range res.Slots {
		if s.Hour == hour {
			return true, res, nil
		}
	}
	return false, res, nil
}
