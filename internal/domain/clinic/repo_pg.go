package clinic

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/agenda/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const calendarCols = `number, google_calendar_id, specialist_name, active`

func (r *repoPG) GetCalendar(ctx context.Context, number string) (*Calendar, error) {
	var c Calendar
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+calendarCols+` FROM calendars WHERE number = $1 AND active`, number).
		Scan(&c.Number, &c.GoogleCalendarID, &c.SpecialistName, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCalendarNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) ListCalendars(ctx context.Context) ([]*Calendar, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+calendarCols+` FROM calendars WHERE active ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Calendar
	for rows.Next() {
		var c Calendar
		if err := rows.Scan(&c.Number, &c.GoogleCalendarID, &c.SpecialistName, &c.Active); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

func (r *repoPG) GetService(ctx context.Context, number string) (*Service, error) {
	var s Service
	err := r.conn(ctx).QueryRow(ctx, `SELECT number, name, duration_minutes FROM services WHERE number = $1`, number).
		Scan(&s.Number, &s.Name, &s.DurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) GetWorkingHoursRule(ctx context.Context, calendarNumber string, weekday int) (*WorkingHoursRule, error) {
	rule := WorkingHoursRule{CalendarNumber: calendarNumber, Weekday: weekday}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT start_hour, end_hour FROM working_hours WHERE calendar_number = $1 AND weekday = $2`,
		calendarNumber, weekday).Scan(&rule.StartHour, &rule.EndHour)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repoPG) UpsertCalendar(ctx context.Context, c *Calendar) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO calendars (number, google_calendar_id, specialist_name, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (number) DO UPDATE SET google_calendar_id = EXCLUDED.google_calendar_id,
			specialist_name = EXCLUDED.specialist_name, active = EXCLUDED.active, updated_at = NOW()`,
		c.Number, c.GoogleCalendarID, c.SpecialistName, c.Active)
	return err
}

func (r *repoPG) UpsertService(ctx context.Context, s *Service) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO services (number, name, duration_minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (number) DO UPDATE SET name = EXCLUDED.name,
			duration_minutes = EXCLUDED.duration_minutes, updated_at = NOW()`,
		s.Number, s.Name, s.DurationMinutes)
	return err
}

func (r *repoPG) UpsertWorkingHours(ctx context.Context, w *WorkingHoursRule) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO working_hours (calendar_number, weekday, start_hour, end_hour)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (calendar_number, weekday) DO UPDATE SET start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour`,
		w.CalendarNumber, w.Weekday, w.StartHour, w.EndHour)
	return err
}
