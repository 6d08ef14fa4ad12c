package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

// BlockFeed is an iCalendar subscription whose events count as busy time.
// An empty CalendarID applies the feed to every calendar.
type BlockFeed struct {
	URL        string
	CalendarID string
}

// ParseBlockFeeds reads a comma separated list of "url" or "url|calendarID".
func ParseBlockFeeds(raw string) []BlockFeed {
	var feeds []BlockFeed
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		url, cal, _ := strings.Cut(part, "|")
		feeds = append(feeds, BlockFeed{URL: strings.TrimSpace(url), CalendarID: strings.TrimSpace(cal)})
	}
	return feeds
}

// Blocked decorates a Port so that ListEvents also returns occurrences from
// ICS block feeds (holidays, specialist absences). Create and delete go to
// the wrapped port untouched. A feed that cannot be fetched is skipped.
type Blocked struct {
	Port
	feeds  []BlockFeed
	client *http.Client
	ttl    time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedFeed
}

type cachedFeed struct {
	events    []icsEvent
	fetchedAt time.Time
}

// WithBlockers wraps base. Parsed feeds are reused for five minutes.
func WithBlockers(base Port, feeds []BlockFeed, timeout time.Duration, logger zerolog.Logger) *Blocked {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Blocked{
		Port:   base,
		feeds:  feeds,
		client: &http.Client{Timeout: timeout},
		ttl:    5 * time.Minute,
		now:    time.Now,
		logger: logger,
		cache:  make(map[string]cachedFeed),
	}
}

func (b *Blocked) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	events, err := b.Port.ListEvents(ctx, calendarID, from, to)
	if err != nil {
		return nil, err
	}
	for _, feed := range b.feeds {
		if feed.CalendarID != "" && feed.CalendarID != calendarID {
			continue
		}
		parsed, err := b.load(ctx, feed.URL)
		if err != nil {
			b.logger.Warn().Err(err).Str("feed", redactURL(feed.URL)).Msg("block feed unavailable, skipping")
			continue
		}
		events = append(events, ExpandOccurrences(parsed, from, to)...)
	}
	return events, nil
}

func (b *Blocked) load(ctx context.Context, url string) ([]icsEvent, error) {
	b.mu.Lock()
	cached, ok := b.cache[url]
	b.mu.Unlock()
	if ok && b.now().Sub(cached.fetchedAt) < b.ttl {
		return cached.events, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	events, err := ParseICS(body)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.cache[url] = cachedFeed{events: events, fetchedAt: b.now()}
	b.mu.Unlock()
	return events, nil
}

type icsEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
	RRule   string
	ExDates []time.Time
}

// ParseICS extracts VEVENTs from an iCalendar payload. Events without a
// UID or a start are skipped.
func ParseICS(body []byte) ([]icsEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ICS: %w", err)
	}

	var out []icsEvent
	for _, ve := range cal.Events() {
		uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
		dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
		if uid == nil || uid.Value == "" || dtStart == nil {
			continue
		}
		ev := icsEvent{UID: uid.Value}
		if vals, ok := dtStart.ICalParameters["VALUE"]; (ok && len(vals) > 0 && strings.EqualFold(vals[0], "DATE")) ||
			!strings.Contains(dtStart.Value, "T") {
			ev.AllDay = true
		}

		if ev.AllDay {
			start, err := parseICSTime(dtStart.Value, time.UTC)
			if err != nil {
				continue
			}
			ev.Start, ev.End = start, start.AddDate(0, 0, 1)
			if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
				if end, err := parseICSTime(p.Value, time.UTC); err == nil && end.After(start) {
					ev.End = end
				}
			}
		} else {
			start, err := ve.GetStartAt()
			if err != nil {
				continue
			}
			end, err := ve.GetEndAt()
			if err != nil || !end.After(start) {
				end = start
			}
			ev.Start, ev.End = start, end
		}

		if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
			ev.Summary = p.Value
		}
		if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
			ev.RRule = p.Value
		}
		for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
			for _, v := range strings.Split(p.Value, ",") {
				if t, err := parseICSTime(strings.TrimSpace(v), ev.Start.Location()); err == nil {
					ev.ExDates = append(ev.ExDates, t)
				}
			}
		}
		out = append(out, ev)
	}
	return out, nil
}

// ExpandOccurrences turns parsed events (recurring ones included) into
// calendar events intersecting [from, to).
func ExpandOccurrences(events []icsEvent, from, to time.Time) []Event {
	var out []Event
	for _, ev := range events {
		dur := ev.End.Sub(ev.Start)
		starts := []time.Time{ev.Start}
		if ev.RRule != "" {
			r, err := rrule.StrToRRule(ev.RRule)
			if err != nil {
				continue
			}
			r.DTStart(ev.Start)
			var set rrule.Set
			set.RRule(r)
			for _, ex := range ev.ExDates {
				set.ExDate(ex.In(ev.Start.Location()))
			}
			// Widen by the duration so occurrences starting before from
			// but still running are kept.
			starts = set.Between(from.Add(-dur), to, true)
		}
		for _, s := range starts {
			e := s.Add(dur)
			if !(s.Before(to) && from.Before(e)) {
				continue
			}
			occ := Event{
				ID:    fmt.Sprintf("ics-%s-%d", ev.UID, s.Unix()),
				Title: "Bloqueo: " + ev.Summary,
			}
			if ev.AllDay {
				occ.Start = OnDate(s.Format("2006-01-02"))
				occ.End = OnDate(e.Format("2006-01-02"))
			} else {
				occ.Start = At(s)
				occ.End = At(e)
			}
			out = append(out, occ)
		}
	}
	return out
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

func redactURL(u string) string {
	if i := strings.Index(u, "?"); i >= 0 {
		return u[:i] + "?…"
	}
	return u
}
