package clinic

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Catalog is the YAML document accepted by `agenda-server seed`.
type Catalog struct {
	Calendars    []Calendar         `yaml:"calendars"`
	Services     []Service          `yaml:"services"`
	WorkingHours []WorkingHoursRule `yaml:"working_hours"`
}

// DecodeCatalog parses and validates a catalog document.
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	var cat Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) Validate() error {
	known := make(map[string]bool, len(c.Calendars))
	for _, cal := range c.Calendars {
		if cal.Number == "" {
			return fmt.Errorf("calendar number is required")
		}
		if cal.GoogleCalendarID == "" {
			return fmt.Errorf("calendar %s: google_calendar_id is required", cal.Number)
		}
		known[cal.Number] = true
	}
	for _, s := range c.Services {
		if s.Number == "" || s.Name == "" {
			return fmt.Errorf("service number and name are required")
		}
		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service %s: duration_minutes must be positive", s.Number)
		}
	}
	for _, w := range c.WorkingHours {
		if !known[w.CalendarNumber] {
			return fmt.Errorf("working hours reference unknown calendar %q", w.CalendarNumber)
		}
		if w.Weekday < 1 || w.Weekday > 7 {
			return fmt.Errorf("calendar %s: weekday %d out of range 1-7", w.CalendarNumber, w.Weekday)
		}
		if w.StartHour < 0 || w.EndHour > 23 || w.EndHour < w.StartHour {
			return fmt.Errorf("calendar %s weekday %d: invalid hours %d-%d", w.CalendarNumber, w.Weekday, w.StartHour, w.EndHour)
		}
	}
	return nil
}

// Apply upserts every entry of the catalog. Calendars go first so that
// working hours can reference them.
func (c *Catalog) Apply(ctx context.Context, repo Repository) error {
	for i := range c.Calendars {
		cal := c.Calendars[i]
		if err := repo.UpsertCalendar(ctx, &cal); err != nil {
			return fmt.Errorf("upsert calendar %s: %w", cal.Number, err)
		}
	}
	for i := range c.Services {
		s := c.Services[i]
		if err := repo.UpsertService(ctx, &s); err != nil {
			return fmt.Errorf("upsert service %s: %w", s.Number, err)
		}
	}
	for i := range c.WorkingHours {
		w := c.WorkingHours[i]
		if err := repo.UpsertWorkingHours(ctx, &w); err != nil {
			return fmt.Errorf("upsert working hours %s/%d: %w", w.CalendarNumber, w.Weekday, err)
		}
	}
	return nil
}
