package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/agenda/internal/platform/db"
)

// =========== Client Repository ===========

type clientRepoPG struct{ pool *pgxpool.Pool }

func NewClientRepoPG(pool *pgxpool.Pool) ClientStore { return &clientRepoPG{pool: pool} }

func (r *clientRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

func (r *clientRepoPG) FindByPhoneKey(ctx context.Context, key string) (*Client, error) {
	var c Client
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, email, phone, phone_key, created_at, updated_at
		FROM clients WHERE phone_key = $1`, key).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.PhoneKey, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clientRepoPG) Upsert(ctx context.Context, c *Client) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clients (id, name, email, phone, phone_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone_key) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email,
			phone = EXCLUDED.phone, updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		c.ID, c.Name, c.Email, c.Phone, c.PhoneKey).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentStore {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const apptSelect = `
	SELECT a.id, a.reservation_code, a.client_id, a.calendar_number, a.service_number,
		a.appointment_date::text, a.appointment_time, a.status, a.external_event_id,
		a.created_at, a.updated_at, c.name, c.email, c.phone
	FROM appointments a JOIN clients c ON c.id = a.client_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.ReservationCode, &a.ClientID, &a.CalendarNumber, &a.ServiceNumber,
		&a.Date, &a.Time, &a.Status, &a.ExternalEventID,
		&a.CreatedAt, &a.UpdatedAt, &a.ClientName, &a.ClientEmail, &a.ClientPhone)
	return &a, err
}

func (r *appointmentRepoPG) FindByCode(ctx context.Context, code string) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, apptSelect+` WHERE a.reservation_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *appointmentRepoPG) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE reservation_code = $1)`, code).Scan(&exists)
	return exists, err
}

func (r *appointmentRepoPG) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, reservation_code, client_id, calendar_number, service_number,
			appointment_date, appointment_time, status, external_event_id)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.ReservationCode, a.ClientID, a.CalendarNumber, a.ServiceNumber,
		a.Date, a.Time, a.Status, a.ExternalEventID).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, code, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE reservation_code = $1`, code, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) UpdateSchedule(ctx context.Context, code, date, hhmm, eventID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET appointment_date = $2::date, appointment_time = $3,
			external_event_id = $4, status = $5, updated_at = NOW()
		WHERE reservation_code = $1`, code, date, hhmm, eventID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListDueForReminder(ctx context.Context, fromDate, toDate string) ([]*Appointment, error) {
	return r.list(ctx, apptSelect+`
		WHERE a.appointment_date BETWEEN $1::date AND $2::date
			AND a.status IN ('AGENDADA', 'REAGENDADA')
		ORDER BY a.appointment_date, a.appointment_time`, fromDate, toDate)
}

func (r *appointmentRepoPG) ListUpcomingByPhoneKey(ctx context.Context, key, fromDate string) ([]*Appointment, error) {
	return r.list(ctx, apptSelect+`
		WHERE c.phone_key = $1 AND a.appointment_date >= $2::date AND a.status <> 'CANCELADA'
		ORDER BY a.appointment_date, a.appointment_time`, key, fromDate)
}

func (r *appointmentRepoPG) ListByDate(ctx context.Context, date, calendarNumber string) ([]*Appointment, error) {
	return r.list(ctx, apptSelect+`
		WHERE a.appointment_date = $1::date AND ($2 = '' OR a.calendar_number = $2)
		ORDER BY a.appointment_time, a.calendar_number`, date, calendarNumber)
}
