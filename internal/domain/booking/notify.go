package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/availability"
	"github.com/clinic/agenda/internal/platform/notification"
)

// Notice carries what a notification needs beyond the appointment row.
type Notice struct {
	Appointment *Appointment
	Specialist  string
	ServiceName string
	OldDate     string
	OldTime     string
}

// Notifier delivers booking messages. Booked and Rescheduled are
// best-effort and only log failures; Remind reports them.
type Notifier interface {
	Booked(ctx context.Context, n Notice)
	Rescheduled(ctx context.Context, n Notice)
	Remind(ctx context.Context, n Notice, confirmLink string) error
}

// BusinessInfo is shown in client messages and receives new-booking mail.
type BusinessInfo struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// MessageNotifier renders the built-in templates through a notification manager.
type MessageNotifier struct {
	mgr      *notification.Manager
	business BusinessInfo
	loc      *time.Location
	logger   zerolog.Logger
}

func NewMessageNotifier(mgr *notification.Manager, business BusinessInfo, loc *time.Location, logger zerolog.Logger) *MessageNotifier {
	return &MessageNotifier{mgr: mgr, business: business, loc: loc, logger: logger}
}

func (m *MessageNotifier) data(n Notice) map[string]string {
	a := n.Appointment
	data := map[string]string{
		"client_name":      a.ClientName,
		"client_email":     a.ClientEmail,
		"client_phone":     a.ClientPhone,
		"date":             m.longDate(a.Date),
		"time":             availability.Time12(a.Time),
		"specialist":       orDefault(n.Specialist, "el especialista"),
		"service":          n.ServiceName,
		"code":             a.ReservationCode,
		"business_name":    m.business.Name,
		"business_address": m.business.Address,
		"business_phone":   m.business.Phone,
		"old_date":         m.longDate(n.OldDate),
		"old_time":         availability.Time12(n.OldTime),
		"confirm_line":     "",
	}
	return data
}

func (m *MessageNotifier) longDate(date string) string {
	t, err := time.ParseInLocation("2006-01-02", date, m.loc)
	if err != nil {
		return date
	}
	return availability.LongDate(t)
}

func (m *MessageNotifier) send(ctx context.Context, tpl string, data map[string]string, to string) {
	if _, err := m.mgr.SendFromTemplate(ctx, tpl, data, to); err != nil {
		m.logger.Warn().Err(err).
			Str("template", tpl).
			Str("code", data["code"]).
			Msg("notification not delivered")
	}
}

func (m *MessageNotifier) Booked(ctx context.Context, n Notice) {
	data := m.data(n)
	if emailPattern.MatchString(n.Appointment.ClientEmail) {
		m.send(ctx, notification.TplBookingConfirmation, data, n.Appointment.ClientEmail)
	}
	if m.business.Email != "" {
		m.send(ctx, notification.TplBookingBusiness, data, m.business.Email)
	}
}

func (m *MessageNotifier) Rescheduled(ctx context.Context, n Notice) {
	if !emailPattern.MatchString(n.Appointment.ClientEmail) {
		return
	}
	m.send(ctx, notification.TplBookingRescheduled, m.data(n), n.Appointment.ClientEmail)
}

func (m *MessageNotifier) Remind(ctx context.Context, n Notice, confirmLink string) error {
	data := m.data(n)
	if confirmLink != "" {
		data["confirm_line"] = fmt.Sprintf("\n✅ Confirma tu asistencia aquí: %s\n", confirmLink)
	}
	_, err := m.mgr.SendFromTemplate(ctx, notification.TplAppointmentReminder, data, n.Appointment.ClientPhone)
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
