package booking

import "context"

// ClientStore persists clients by phone key.
type ClientStore interface {
	// FindByPhoneKey returns ErrClientNotFound when no client matches.
	FindByPhoneKey(ctx context.Context, key string) (*Client, error)
	// Upsert inserts or updates by PhoneKey and sets c.ID to the stored id.
	Upsert(ctx context.Context, c *Client) error
}

// AppointmentStore persists appointments keyed by reservation code.
type AppointmentStore interface {
	// FindByCode returns ErrAppointmentNotFound when the code is unknown.
	FindByCode(ctx context.Context, code string) (*Appointment, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, a *Appointment) error
	// UpdateStatus and UpdateSchedule return ErrAppointmentNotFound for unknown codes.
	UpdateStatus(ctx context.Context, code, status string) error
	UpdateSchedule(ctx context.Context, code, date, hhmm, eventID, status string) error
	// ListDueForReminder returns AGENDADA and REAGENDADA appointments whose
	// date falls in [fromDate, toDate].
	ListDueForReminder(ctx context.Context, fromDate, toDate string) ([]*Appointment, error)
	// ListUpcomingByPhoneKey returns non-cancelled appointments on or after fromDate.
	ListUpcomingByPhoneKey(ctx context.Context, key, fromDate string) ([]*Appointment, error)
	// ListByDate returns every appointment on date ordered by time. An empty
	// calendarNumber means all calendars.
	ListByDate(ctx context.Context, date, calendarNumber string) ([]*Appointment, error)
}
