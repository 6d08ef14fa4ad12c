// Package booking implements the appointment lifecycle: create, cancel,
// reschedule and confirm, plus client recognition by phone.
package booking

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Appointment statuses as stored and shown to operators.
const (
	StatusScheduled   = "AGENDADA"
	StatusRescheduled = "REAGENDADA"
	StatusConfirmed   = "CONFIRMADA"
	StatusCancelled   = "CANCELADA"
	StatusNotified    = "NOTIFICADA"
)

// Client is a person who books through the bot, keyed by phone.
type Client struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	PhoneKey  string    `db:"phone_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Appointment is one booking. Client fields are filled by store reads that
// join the clients table.
type Appointment struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ReservationCode string    `db:"reservation_code" json:"reservation_code"`
	ClientID        uuid.UUID `db:"client_id" json:"client_id"`
	CalendarNumber  string    `db:"calendar_number" json:"calendar_number"`
	ServiceNumber   string    `db:"service_number" json:"service_number"`
	Date            string    `db:"appointment_date" json:"date"`
	Time            string    `db:"appointment_time" json:"time"`
	Status          string    `db:"status" json:"status"`
	ExternalEventID string    `db:"external_event_id" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	ClientName  string `db:"client_name" json:"client_name,omitempty"`
	ClientEmail string `db:"client_email" json:"client_email,omitempty"`
	ClientPhone string `db:"client_phone" json:"client_phone,omitempty"`
}

// StartsAt returns the appointment start in loc.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.Time, loc)
}

// Active reports whether the appointment still holds its slot.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// ---------------------------------------------------------------------------
// Phone numbers
// ---------------------------------------------------------------------------

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone strips formatting and converts Mexican numbers to 52 plus
// ten digits. The legacy mobile prefix 521 is dropped to 52.
func NormalizePhone(phone string) string {
	d := digitsOnly(phone)
	switch {
	case len(d) == 13 && strings.HasPrefix(d, "521"):
		return "52" + d[3:]
	case len(d) == 10:
		return "52" + d
	}
	return d
}

// PhoneKey is the lookup key for a client: the last ten digits.
func PhoneKey(phone string) string {
	d := digitsOnly(phone)
	if len(d) > 10 {
		return d[len(d)-10:]
	}
	return d
}

// missingPhone and missingEmail are placeholders some bots send instead of
// leaving the field empty.
const (
	missingPhone = "Sin Teléfono"
	missingEmail = "Sin Email"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// hasControl reports whether s carries control characters such as CR or LF.
// Names end up in mail headers and event titles.
func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// ---------------------------------------------------------------------------
// Reservation codes
// ---------------------------------------------------------------------------

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// NewReservationCode draws a code from r (crypto/rand when nil). Modulo bias
// over 36 symbols from a byte is accepted.
func NewReservationCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, codeLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeCode upper-cases and trims a code typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// EventTitle embeds the code so that cancel can find the event by title.
func EventTitle(clientName, code string) string {
	return fmt.Sprintf("Cita: %s (%s)", clientName, code)
}

// TitleHasCode reports whether an event title belongs to code.
func TitleHasCode(title, code string) bool {
	return strings.Contains(title, "("+code+")")
}

// NewEventID returns an opaque id accepted by external calendars
// (lowercase base32hex-compatible characters only).
func NewEventID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
