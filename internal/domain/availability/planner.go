package availability

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// DayEvaluator is the day-level computation the planner drives.
type DayEvaluator interface {
	EvaluateDay(ctx context.Context, t Target, date time.Time) (*DayResult, error)
	IsWorkingDay(ctx context.Context, t Target, date time.Time) (bool, error)
	Today() time.Time
}

// PlannerConfig bounds every multi-day scan.
type PlannerConfig struct {
	WindowSize           int
	WindowScanDays       int
	LookbackDays         int
	MaxLookahead         int
	AlternativesWanted   int
	NextAvailableMaxDays int
	NextWorkingMaxDays   int
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		WindowSize:           3,
		WindowScanDays:       5,
		LookbackDays:         3,
		MaxLookahead:         14,
		AlternativesWanted:   2,
		NextAvailableMaxDays: 30,
		NextWorkingMaxDays:   14,
	}
}

// Directions of an alternative day relative to the requested date.
const (
	DirectionEarlier = "anterior"
	DirectionLater   = "posterior"
)

// Alternative is a nearby day offered when the requested window is empty.
// Priority is negative for earlier days and grows with distance.
type Alternative struct {
	*DayResult
	Direction string `json:"direction"`
	Distance  int    `json:"distance"`
	Priority  int    `json:"priority"`
}

// NextAvailable is the nearest bookable date with its first free slot.
type NextAvailable struct {
	Date       time.Time `json:"-"`
	DateStr    string    `json:"date"`
	FirstSlot  Slot      `json:"firstSlot"`
	TotalSlots int       `json:"totalSlots"`
	Slots      []Slot    `json:"slots"`
}

// Planner runs the engine across several days. A failing day is logged and
// skipped, never fatal to the scan.
type Planner struct {
	eval   DayEvaluator
	cfg    PlannerConfig
	logger zerolog.Logger
}

func NewPlanner(eval DayEvaluator, cfg PlannerConfig, logger zerolog.Logger) *Planner {
	return &Planner{eval: eval, cfg: cfg, logger: logger}
}

func (p *Planner) evaluate(ctx context.Context, t Target, date time.Time) *DayResult {
	res, err := p.eval.EvaluateDay(ctx, t, date)
	if err != nil {
		p.logger.Warn().Err(err).
			Str("calendar", t.CalendarNumber).
			Str("date", date.Format("2006-01-02")).
			Msg("day evaluation failed, skipping")
		return nil
	}
	return res
}

// PrimaryWindow evaluates up to WindowSize non-Sunday days starting at
// start, scanning at most WindowScanDays calendar days.
func (p *Planner) PrimaryWindow(ctx context.Context, t Target, start time.Time) []*DayResult {
	start = startOfDay(start)
	var days []*DayResult
	for i := 0; i < p.cfg.WindowScanDays && len(days) < p.cfg.WindowSize; i++ {
		d := start.AddDate(0, 0, i)
		if IsSunday(d) {
			continue
		}
		if res := p.evaluate(ctx, t, d); res != nil {
			days = append(days, res)
		}
	}
	return days
}

// Alternatives looks back up to LookbackDays for at most one earlier day
// with slots, then forward up to MaxLookahead until AlternativesWanted days
// are found. Earlier days sort first, then by distance.
func (p *Planner) Alternatives(ctx context.Context, t Target, target time.Time) []Alternative {
	target = startOfDay(target)
	today := p.eval.Today()
	var out []Alternative

	for off := 1; off <= p.cfg.LookbackDays; off++ {
		d := target.AddDate(0, 0, -off)
		if IsSunday(d) || d.Before(today) {
			continue
		}
		if res := p.evaluate(ctx, t, d); res.HasSlots() {
			out = append(out, Alternative{DayResult: res, Direction: DirectionEarlier, Distance: off, Priority: -off})
			break
		}
	}

	for off := 1; off <= p.cfg.MaxLookahead && len(out) < p.cfg.AlternativesWanted; off++ {
		d := target.AddDate(0, 0, off)
		if IsSunday(d) {
			continue
		}
		if res := p.evaluate(ctx, t, d); res.HasSlots() {
			out = append(out, Alternative{DayResult: res, Direction: DirectionLater, Distance: off, Priority: off})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// NextAvailableDate scans forward from the day after from, skipping Sundays
// and past dates, and returns the first day with a free slot or nil.
func (p *Planner) NextAvailableDate(ctx context.Context, t Target, from time.Time) *NextAvailable {
	from = startOfDay(from)
	today := p.eval.Today()
	for i := 1; i <= p.cfg.NextAvailableMaxDays; i++ {
		d := from.AddDate(0, 0, i)
		if IsSunday(d) || d.Before(today) {
			continue
		}
		res := p.evaluate(ctx, t, d)
		if !res.HasSlots() {
			continue
		}
		return &NextAvailable{
			Date:       res.Date,
			DateStr:    res.DateStr,
			FirstSlot:  res.Slots[0],
			TotalSlots: len(res.Slots),
			Slots:      res.Slots,
		}
	}
	return nil
}

// NextWorkingDay returns the first day after from whose policy is open,
// ignoring busy time. It falls back to the day after from.
func (p *Planner) NextWorkingDay(ctx context.Context, t Target, from time.Time) time.Time {
	from = startOfDay(from)
	for i := 1; i <= p.cfg.NextWorkingMaxDays; i++ {
		d := from.AddDate(0, 0, i)
		open, err := p.eval.IsWorkingDay(ctx, t, d)
		if err != nil {
			p.logger.Warn().Err(err).Str("date", d.Format("2006-01-02")).Msg("working day check failed, skipping")
			continue
		}
		if open {
			return d
		}
	}
	return from.AddDate(0, 0, 1)
}
