package availability

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/platform/calendar"
)

const minutesPerDay = 24 * 60

// BusyInterval is a half-open [Start, End) range in minutes from local
// midnight of the target date.
type BusyInterval struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// Normalizer turns raw calendar events into busy intervals for one date.
type Normalizer struct {
	loc    *time.Location
	logger zerolog.Logger
}

func NewNormalizer(loc *time.Location, logger zerolog.Logger) Normalizer {
	return Normalizer{loc: loc, logger: logger}
}

// Normalize keeps only events whose local start date equals date, truncates
// both ends to the minute and clamps the end to midnight. All-day events
// cover the whole day. Unparseable events are dropped with a warning.
func (n Normalizer) Normalize(events []calendar.Event, date time.Time) []BusyInterval {
	day := startOfDay(date.In(n.loc))
	target := day.Format("2006-01-02")

	out := make([]BusyInterval, 0, len(events))
	for _, ev := range events {
		start, err := ev.Start.In(n.loc)
		if err != nil {
			n.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("dropping event with invalid start")
			continue
		}
		if start.Format("2006-01-02") != target {
			continue
		}

		var end time.Time
		if ev.Start.IsAllDay() {
			end = day.AddDate(0, 0, 1)
		} else {
			end, err = ev.End.In(n.loc)
			if err != nil {
				n.logger.Warn().Err(err).Str("event_id", ev.ID).Msg("dropping event with invalid end")
				continue
			}
		}

		iv := BusyInterval{
			Start: minuteOfDay(day, start),
			End:   minuteOfDay(day, end),
			Label: ev.Title,
		}
		if iv.End > minutesPerDay {
			iv.End = minutesPerDay
		}
		if iv.Start >= iv.End {
			continue
		}
		out = append(out, iv)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// minuteOfDay is measured by wall clock so DST days still map 10:00 to 600.
func minuteOfDay(day, t time.Time) int {
	t = t.Truncate(time.Minute)
	y, m, d := t.Date()
	dy, dm, dd := day.Date()
	days := 0
	if y != dy || m != dm || d != dd {
		days = int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Sub(time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)).Hours() / 24)
	}
	return days*minutesPerDay + t.Hour()*60 + t.Minute()
}
