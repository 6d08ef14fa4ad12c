package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/availability"
	"github.com/clinic/agenda/internal/domain/clinic"
	"github.com/clinic/agenda/internal/platform/cache"
	"github.com/clinic/agenda/internal/platform/calendar"
	"github.com/clinic/agenda/internal/platform/events"
	"github.com/clinic/agenda/internal/platform/lock"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

var errCalendarUnavailable = errors.New("calendar unavailable, availability could not be verified")

// compensateTimeout bounds rollback and restore calls, which run detached
// from the request's cancellation.
const compensateTimeout = 15 * time.Second

// Config tunes the transaction rules.
type Config struct {
	LeadTime       time.Duration
	PhoneMinLength int
	LockTTL        time.Duration
	CodeAttempts   int
	// Cancel looks for the event in [now-CancelLookback, now+CancelLookahead].
	CancelLookback  time.Duration
	CancelLookahead time.Duration
}

func DefaultConfig() Config {
	return Config{
		LeadTime:        time.Hour,
		PhoneMinLength:  10,
		LockTTL:         30 * time.Second,
		CodeAttempts:    5,
		CancelLookback:  30 * 24 * time.Hour,
		CancelLookahead: 90 * 24 * time.Hour,
	}
}

// TxFunc runs fn in one persistence transaction.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Deps are the collaborators of Service. Locker, Cache, Notifier, Events
// and Tx have in-process defaults when nil.
type Deps struct {
	Availability *availability.Service
	Catalog      availability.Catalog
	Calendar     calendar.Port
	Clients      ClientStore
	Appointments AppointmentStore
	Locker       lock.Locker
	Cache        cache.Store
	Notifier     Notifier
	Events       events.Publisher
	Tx           TxFunc
}

// Service runs the booking transactions.
type Service struct {
	avail    *availability.Service
	catalog  availability.Catalog
	cal      calendar.Port
	clients  ClientStore
	appts    AppointmentStore
	locker   lock.Locker
	cache    cache.Store
	notifier Notifier
	events   events.Publisher
	tx       TxFunc
	cfg      Config
	logger   zerolog.Logger

	random     io.Reader
	newEventID func() string
	wg         sync.WaitGroup
}

func NewService(d Deps, cfg Config, logger zerolog.Logger) *Service {
	s := &Service{
		avail:      d.Availability,
		catalog:    d.Catalog,
		cal:        d.Calendar,
		clients:    d.Clients,
		appts:      d.Appointments,
		locker:     d.Locker,
		cache:      d.Cache,
		notifier:   d.Notifier,
		events:     d.Events,
		tx:         d.Tx,
		cfg:        cfg,
		logger:     logger,
		newEventID: NewEventID,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.cache == nil {
		s.cache = cache.NewLRU(1000, 30*time.Minute)
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.tx == nil {
		s.tx = func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	if s.cfg.CodeAttempts <= 0 {
		s.cfg.CodeAttempts = 1
	}
	return s
}

// Wait blocks until post-commit work (notifications, events) has finished.
func (s *Service) Wait() { s.wg.Wait() }

// Outcome is a successful or informational result.
type Outcome struct {
	Message     string
	Code        string
	Appointment *Appointment
}

func (s *Service) now() time.Time       { return s.avail.Evaluator().Now() }
func (s *Service) loc() *time.Location { return s.avail.Evaluator().Location() }

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

// CreateRequest is an agenda-cita submission.
type CreateRequest struct {
	Calendar    string
	Service     string
	ServiceName string
	Date        string
	Time        string
	ClientName  string
	ClientEmail string
	ClientPhone string
}

func (s *Service) validateCreate(req CreateRequest) error {
	var missing, invalid []string
	if req.Calendar == "" {
		missing = append(missing, "calendar")
	}
	if req.Service == "" {
		missing = append(missing, "service")
	}
	if req.Date == "" {
		missing = append(missing, "date")
	}
	if req.Time == "" {
		missing = append(missing, "time")
	}
	switch {
	case req.ClientName == "":
		missing = append(missing, "clientName")
	case hasControl(req.ClientName):
		invalid = append(invalid, "clientName")
	}
	switch {
	case req.ClientEmail == "" || req.ClientEmail == missingEmail:
		missing = append(missing, "clientEmail")
	case !emailPattern.MatchString(req.ClientEmail):
		invalid = append(invalid, "clientEmail")
	}
	switch {
	case req.ClientPhone == "" || req.ClientPhone == missingPhone:
		missing = append(missing, "clientPhone")
	case len(digitsOnly(req.ClientPhone)) < s.cfg.PhoneMinLength:
		invalid = append(invalid, "clientPhone")
	}
	if len(missing) > 0 || len(invalid) > 0 {
		return &ValidationError{Missing: missing, Invalid: invalid}
	}
	return nil
}

// fillFromKnownClient completes name and email from the client on file.
func (s *Service) fillFromKnownClient(ctx context.Context, req CreateRequest) CreateRequest {
	if req.ClientPhone == "" || req.ClientPhone == missingPhone {
		return req
	}
	needEmail := req.ClientEmail == "" || req.ClientEmail == missingEmail
	if req.ClientName != "" && !needEmail {
		return req
	}
	info, err := s.RecognizeClient(ctx, req.ClientPhone)
	if err != nil || info == nil {
		return req
	}
	if req.ClientName == "" {
		req.ClientName = info.Name
	}
	if needEmail && info.Email != "" {
		req.ClientEmail = info.Email
	}
	return req
}

// Create books a slot. Order: validate, resolve the catalog, apply date
// rules, lock the slot, re-check availability, create the external event,
// persist, then notify in the background.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Outcome, error) {
	req = s.fillFromKnownClient(ctx, req)
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	start, err := time.ParseInLocation(dateTimeLayout, req.Date+" "+req.Time, s.loc())
	if err != nil {
		return nil, &ValidationError{Message: msgBadDateTime}
	}
	if start.Minute() != 0 {
		return nil, &ValidationError{Message: msgOnTheHour}
	}
	now := s.now()
	if startOfDay(start).Before(startOfDay(now)) {
		return nil, &PolicyViolation{Kind: PolicyPastDate, Message: msgPastBooking}
	}
	if availability.IsSunday(start) {
		return nil, &PolicyViolation{Kind: PolicySunday, Message: msgSundayBooking}
	}

	target, cal, svc, err := s.resolve(ctx, req.Calendar, req.Service)
	if err != nil {
		return nil, err
	}
	if err := s.checkLeadTime(ctx, target, start, now, "agendar"); err != nil {
		return nil, err
	}
	serviceName := req.ServiceName
	if serviceName == "" {
		serviceName = svc.Name
	}

	release, err := s.lockSlot(ctx, target, start)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.recheck(ctx, target, start); err != nil {
		return nil, err
	}

	code, err := s.newCode(ctx)
	if err != nil {
		return nil, collaborator("reservation code", err)
	}

	phone := NormalizePhone(req.ClientPhone)
	eventID := s.newEventID()
	ev := calendar.NewEvent{
		Title: EventTitle(req.ClientName, code),
		Description: eventDescription(req.ClientName, req.ClientEmail, phone, serviceName,
			cal.SpecialistName, code, svc.Duration(), StatusScheduled),
		Start: start,
		End:   start.Add(svc.Duration()),
	}
	if _, err := s.cal.CreateEvent(ctx, target.CalendarID, ev, eventID); err != nil {
		if errors.Is(err, calendar.ErrConflict) {
			return nil, &ConflictError{Time: start.Format("15:04")}
		}
		return nil, collaborator("create event", err)
	}

	client := &Client{Name: req.ClientName, Email: req.ClientEmail, Phone: phone, PhoneKey: PhoneKey(phone)}
	appt := &Appointment{
		ReservationCode: code,
		CalendarNumber:  cal.Number,
		ServiceNumber:   svc.Number,
		Date:            start.Format(dateLayout),
		Time:            start.Format("15:04"),
		Status:          StatusScheduled,
		ExternalEventID: eventID,
	}
	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.clients.Upsert(ctx, client); err != nil {
			return fmt.Errorf("upsert client: %w", err)
		}
		appt.ClientID = client.ID
		if err := s.appts.Insert(ctx, appt); err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		s.rollbackEvent(ctx, target.CalendarID, eventID, code)
		return nil, collaborator("persist appointment", err)
	}
	appt.ClientName, appt.ClientEmail, appt.ClientPhone = client.Name, client.Email, client.Phone

	s.logger.Info().
		Str("code", code).
		Str("calendar", cal.Number).
		Str("date", appt.Date).
		Str("time", appt.Time).
		Msg("appointment created")

	s.rememberClient(ctx, client.PhoneKey, &ClientInfo{Name: client.Name, Email: client.Email, Phone: client.Phone})
	notice := Notice{Appointment: appt, Specialist: cal.SpecialistName, ServiceName: serviceName}
	s.after(ctx, func(ctx context.Context) {
		s.notifier.Booked(ctx, notice)
		s.publish(ctx, events.AppointmentBooked, appt)
	})

	return &Outcome{
		Message: fmt.Sprintf(msgBooked, appt.Date, availability.Time12(appt.Time),
			orDefault(cal.SpecialistName, "el especialista"), code),
		Code:        code,
		Appointment: appt,
	}, nil
}

func eventDescription(name, email, phone, service, specialist, code string, d time.Duration, status string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cliente: %s\n", name)
	fmt.Fprintf(&b, "Email: %s\n", email)
	fmt.Fprintf(&b, "Teléfono: %s\n", phone)
	fmt.Fprintf(&b, "Servicio: %s\n", service)
	if specialist != "" {
		fmt.Fprintf(&b, "Especialista: %s\n", specialist)
	}
	fmt.Fprintf(&b, "Duración: %d min.\n", int(d.Minutes()))
	fmt.Fprintf(&b, "Código: %s\n", code)
	fmt.Fprintf(&b, "Estado: %s\n", status)
	b.WriteString("Agendado por: Agente de WhatsApp")
	return b.String()
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

// CancelRequest names the reservation and, optionally, the calendar that
// holds it. The stored appointment's calendar wins when known.
type CancelRequest struct {
	Code     string
	Calendar string
}

// Cancel deletes the event whose title carries the code and marks the
// appointment CANCELADA. A code without an event is a NotFoundError and
// changes nothing.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (*Outcome, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, &ValidationError{Message: msgCancelMissingCode}
	}

	calNumber := req.Calendar
	appt, err := s.appts.FindByCode(ctx, code)
	switch {
	case err == nil:
		calNumber = appt.CalendarNumber
	case errors.Is(err, ErrAppointmentNotFound):
		appt = nil
	default:
		s.logger.Warn().Err(err).Str("code", code).Msg("appointment lookup failed, searching calendar only")
		appt = nil
	}
	if calNumber == "" {
		calNumber = "1"
	}

	cal, err := s.catalog.GetCalendar(ctx, calNumber)
	if err != nil {
		return nil, catalogError(err)
	}

	ev, err := s.findEventByCode(ctx, cal.GoogleCalendarID, code)
	if err != nil {
		return nil, collaborator("find event", err)
	}
	if ev == nil {
		return nil, &NotFoundError{Code: code, Message: fmt.Sprintf(msgCancelNotFound, code)}
	}
	if err := s.cal.DeleteEvent(ctx, cal.GoogleCalendarID, ev.ID); err != nil {
		if errors.Is(err, calendar.ErrEventNotFound) {
			return nil, &NotFoundError{Code: code, Message: fmt.Sprintf(msgCancelNotFound, code)}
		}
		return nil, collaborator("delete event", err)
	}

	if err := s.appts.UpdateStatus(ctx, code, StatusCancelled); err != nil {
		// The event is gone either way.
		s.logger.Error().Err(err).Str("code", code).Msg("event deleted but status update failed")
	}
	s.logger.Info().Str("code", code).Str("calendar", cal.Number).Msg("appointment cancelled")

	published := &Appointment{ReservationCode: code, CalendarNumber: cal.Number, Status: StatusCancelled}
	if appt != nil {
		cp := *appt
		cp.Status = StatusCancelled
		published = &cp
	}
	s.after(ctx, func(ctx context.Context) {
		s.publish(ctx, events.AppointmentCancelled, published)
	})
	return &Outcome{Message: fmt.Sprintf(msgCancelled, code), Code: code, Appointment: published}, nil
}

func (s *Service) findEventByCode(ctx context.Context, calendarID, code string) (*calendar.Event, error) {
	now := s.now()
	list, err := s.cal.ListEvents(ctx, calendarID, now.Add(-s.cfg.CancelLookback), now.Add(s.cfg.CancelLookahead))
	if err != nil {
		return nil, err
	}
	for i := range list {
		if TitleHasCode(list[i].Title, code) {
			return &list[i], nil
		}
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Reschedule
// ---------------------------------------------------------------------------

// RescheduleRequest moves a reservation to a new date and hour.
type RescheduleRequest struct {
	Code string
	Date string
	Time string
}

// Reschedule checks the new date rules before any store or calendar call
// and validates the new slot before touching the old event, then
// replaces the event and updates the row to REAGENDADA. A missing old event
// does not stop the move. If the new event or the update fails, the old
// event is restored.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*Outcome, error) {
	code := NormalizeCode(req.Code)
	if code == "" || req.Date == "" || req.Time == "" {
		return nil, &ValidationError{Message: msgRescheduleMissing}
	}

	start, err := time.ParseInLocation(dateTimeLayout, req.Date+" "+req.Time, s.loc())
	if err != nil {
		return nil, &ValidationError{Message: msgRescheduleBadFormat}
	}
	if start.Minute() != 0 {
		return nil, &ValidationError{Message: msgRescheduleOnHour}
	}
	now := s.now()
	if startOfDay(start).Before(startOfDay(now)) {
		return nil, &PolicyViolation{Kind: PolicyPastDate, Message: msgReschedulePast}
	}
	if availability.IsSunday(start) {
		return nil, &PolicyViolation{Kind: PolicySunday, Message: msgRescheduleSunday}
	}

	appt, err := s.appts.FindByCode(ctx, code)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, &NotFoundError{Code: code, Message: fmt.Sprintf(msgCodeNotFound, code)}
	}
	if err != nil {
		return nil, collaborator("load appointment", err)
	}
	if appt.Status == StatusCancelled {
		return nil, &PolicyViolation{Kind: PolicyCancelled, Message: msgRescheduleCancelled}
	}

	target, cal, svc, err := s.resolve(ctx, appt.CalendarNumber, appt.ServiceNumber)
	if err != nil {
		return nil, err
	}
	if err := s.checkLeadTime(ctx, target, start, now, "reagendar"); err != nil {
		return nil, err
	}

	release, err := s.lockSlot(ctx, target, start)
	if err != nil {
		return nil, err
	}
	defer release()

	newDate, newTime := start.Format(dateLayout), start.Format("15:04")
	if appt.Date != newDate || appt.Time != newTime {
		if err := s.recheck(ctx, target, start); err != nil {
			return nil, err
		}
	}

	old, err := s.findEventByCode(ctx, target.CalendarID, code)
	if err != nil {
		s.logger.Warn().Err(err).Str("code", code).Msg("old event lookup failed, continuing")
		old = nil
	}
	if old != nil {
		if err := s.cal.DeleteEvent(ctx, target.CalendarID, old.ID); err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
			s.logger.Warn().Err(err).Str("code", code).Msg("old event not deleted, continuing")
			old = nil
		}
	}

	eventID := s.newEventID()
	ev := calendar.NewEvent{
		Title: EventTitle(appt.ClientName, code),
		Description: eventDescription(appt.ClientName, appt.ClientEmail, appt.ClientPhone, svc.Name,
			cal.SpecialistName, code, svc.Duration(), StatusRescheduled),
		Start: start,
		End:   start.Add(svc.Duration()),
	}
	if _, err := s.cal.CreateEvent(ctx, target.CalendarID, ev, eventID); err != nil {
		s.restoreEvent(ctx, target.CalendarID, old, appt)
		if errors.Is(err, calendar.ErrConflict) {
			return nil, &ConflictError{Time: newTime}
		}
		return nil, collaborator("create event", err)
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		return s.appts.UpdateSchedule(ctx, code, newDate, newTime, eventID, StatusRescheduled)
	})
	if err != nil {
		s.rollbackEvent(ctx, target.CalendarID, eventID, code)
		s.restoreEvent(ctx, target.CalendarID, old, appt)
		return nil, collaborator("persist reschedule", err)
	}

	oldDate, oldTime := appt.Date, appt.Time
	moved := *appt
	moved.Date, moved.Time = newDate, newTime
	moved.Status = StatusRescheduled
	moved.ExternalEventID = eventID

	s.logger.Info().
		Str("code", code).
		Str("from", oldDate+" "+oldTime).
		Str("to", newDate+" "+newTime).
		Msg("appointment rescheduled")

	notice := Notice{Appointment: &moved, Specialist: cal.SpecialistName, ServiceName: svc.Name, OldDate: oldDate, OldTime: oldTime}
	s.after(ctx, func(ctx context.Context) {
		s.notifier.Rescheduled(ctx, notice)
		s.publish(ctx, events.AppointmentRescheduled, &moved)
	})

	return &Outcome{
		Message: fmt.Sprintf(msgRescheduled, availability.LongDate(start), availability.Time12(newTime),
			moved.ClientName, svc.Name, orDefault(cal.SpecialistName, "el especialista"), code),
		Code:        code,
		Appointment: &moved,
	}, nil
}

// restoreEvent re-creates a deleted event under a fresh id and points the
// row at it. Failures are logged.
func (s *Service) restoreEvent(ctx context.Context, calendarID string, old *calendar.Event, appt *Appointment) {
	if old == nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()
	start, errS := old.Start.In(s.loc())
	end, errE := old.End.In(s.loc())
	if errS != nil || errE != nil {
		s.logger.Error().Str("code", appt.ReservationCode).Msg("old event has unreadable times, not restored")
		return
	}
	id := s.newEventID()
	ev := calendar.NewEvent{Title: old.Title, Description: old.Description, Start: start, End: end}
	if _, err := s.cal.CreateEvent(ctx, calendarID, ev, id); err != nil {
		s.logger.Error().Err(err).Str("code", appt.ReservationCode).Msg("old event could not be restored")
		return
	}
	if err := s.appts.UpdateSchedule(ctx, appt.ReservationCode, appt.Date, appt.Time, id, appt.Status); err != nil {
		s.logger.Warn().Err(err).Str("code", appt.ReservationCode).Msg("restored event id not stored")
	}
	s.logger.Warn().Str("code", appt.ReservationCode).Msg("old event restored after failed reschedule")
}

// ---------------------------------------------------------------------------
// Confirm
// ---------------------------------------------------------------------------

// Confirm moves AGENDADA, REAGENDADA or NOTIFICADA to CONFIRMADA. Cancelled
// and already confirmed appointments get an informative message.
func (s *Service) Confirm(ctx context.Context, rawCode string) (*Outcome, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, &ValidationError{Message: msgConfirmMissing}
	}
	appt, err := s.appts.FindByCode(ctx, code)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil, &NotFoundError{Code: code, Message: fmt.Sprintf(msgCodeNotFound, code)}
	}
	if err != nil {
		return nil, collaborator("load appointment", err)
	}

	switch appt.Status {
	case StatusCancelled:
		return &Outcome{Message: msgConfirmCancelled, Code: code, Appointment: appt}, nil
	case StatusConfirmed:
		specialist := "el especialista"
		if cal, err := s.catalog.GetCalendar(ctx, appt.CalendarNumber); err == nil && cal.SpecialistName != "" {
			specialist = cal.SpecialistName
		}
		return &Outcome{
			Message:     fmt.Sprintf(msgAlreadyConfirmed, appt.Date, availability.Time12(appt.Time), specialist),
			Code:        code,
			Appointment: appt,
		}, nil
	}

	if err := s.appts.UpdateStatus(ctx, code, StatusConfirmed); err != nil {
		return nil, &CollaboratorError{Op: "confirm appointment", Err: err, Message: msgConfirmFailed}
	}
	appt.Status = StatusConfirmed
	s.logger.Info().Str("code", code).Msg("appointment confirmed")

	s.after(ctx, func(ctx context.Context) {
		s.publish(ctx, events.AppointmentConfirmed, appt)
	})
	return &Outcome{Message: msgConfirmed, Code: code, Appointment: appt}, nil
}

// ---------------------------------------------------------------------------
// Clients
// ---------------------------------------------------------------------------

// ClientInfo is the soft-cached view of a known client.
type ClientInfo struct {
	Name  string `json:"nombre"`
	Email string `json:"email"`
	Phone string `json:"telefono"`
}

// RecognizeClient looks a phone up in the cache, then the store. It returns
// (nil, nil) for unknown numbers.
func (s *Service) RecognizeClient(ctx context.Context, phone string) (*ClientInfo, error) {
	key := PhoneKey(phone)
	if key == "" {
		return nil, &ValidationError{Message: msgPhoneMissing}
	}
	if info := s.cachedClient(ctx, key); info != nil {
		return info, nil
	}
	c, err := s.clients.FindByPhoneKey(ctx, key)
	if errors.Is(err, ErrClientNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, collaborator("find client", err)
	}
	info := &ClientInfo{Name: c.Name, Email: c.Email, Phone: c.Phone}
	s.rememberClient(ctx, key, info)
	return info, nil
}

// UpcomingAppointments lists the phone's non-cancelled appointments from today on.
func (s *Service) UpcomingAppointments(ctx context.Context, phone string) ([]*Appointment, error) {
	key := PhoneKey(phone)
	if key == "" {
		return nil, &ValidationError{Message: msgPhoneMissing}
	}
	list, err := s.appts.ListUpcomingByPhoneKey(ctx, key, s.now().Format(dateLayout))
	if err != nil {
		return nil, collaborator("list appointments", err)
	}
	return list, nil
}

// DayAgenda lists the appointments booked on date (YYYY-MM-DD), optionally
// narrowed to one calendar.
func (s *Service) DayAgenda(ctx context.Context, date, calendarNumber string) ([]*Appointment, error) {
	if date == "" {
		date = s.now().Format(dateLayout)
	}
	if _, err := time.ParseInLocation(dateLayout, date, s.loc()); err != nil {
		return nil, &ValidationError{Message: msgBadDate}
	}
	list, err := s.appts.ListByDate(ctx, date, strings.TrimSpace(calendarNumber))
	if err != nil {
		return nil, collaborator("list day agenda", err)
	}
	return list, nil
}

func (s *Service) cachedClient(ctx context.Context, key string) *ClientInfo {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("client cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	var info ClientInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil
	}
	return &info
}

func (s *Service) rememberClient(ctx context.Context, key string, info *ClientInfo) {
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		s.logger.Warn().Err(err).Msg("client cache write failed")
	}
}

// ---------------------------------------------------------------------------
// Shared steps
// ---------------------------------------------------------------------------

func (s *Service) resolve(ctx context.Context, calendarNumber, serviceNumber string) (availability.Target, *clinic.Calendar, *clinic.Service, error) {
	t, cal, svc, err := s.avail.ResolveTarget(ctx, calendarNumber, serviceNumber)
	if err != nil {
		return t, nil, nil, catalogError(err)
	}
	return t, cal, svc, nil
}

func catalogError(err error) error {
	switch {
	case errors.Is(err, clinic.ErrCalendarNotFound):
		return &ValidationError{Message: msgCalendarMissing}
	case errors.Is(err, clinic.ErrServiceNotFound):
		return &ValidationError{Message: msgServiceMissing}
	}
	return collaborator("catalog lookup", err)
}

func (s *Service) leadText() string {
	h := int(s.cfg.LeadTime.Hours())
	if h <= 1 {
		return "una hora"
	}
	return fmt.Sprintf("%d horas", h)
}

// checkLeadTime rejects same-day starts earlier than now plus the lead time
// and suggests the next working day.
func (s *Service) checkLeadTime(ctx context.Context, t availability.Target, start, now time.Time, verb string) error {
	if !sameDay(start, now) || !start.Before(now.Add(s.cfg.LeadTime)) {
		return nil
	}
	next := s.avail.Planner().NextWorkingDay(ctx, t, now)
	return &PolicyViolation{
		Kind: PolicyLeadTime,
		Message: fmt.Sprintf(msgLeadTime, verb, s.leadText(), availability.Time12(start.Format("15:04")),
			availability.LongDate(next), next.Format(dateLayout), verb),
		Suggested: next,
	}
}

func (s *Service) lockSlot(ctx context.Context, t availability.Target, start time.Time) (func(), error) {
	key := lock.SlotKey(t.CalendarID, start.Format(dateLayout), start.Hour())
	release, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if errors.Is(err, lock.ErrLocked) {
		return nil, &ConflictError{Time: start.Format("15:04")}
	}
	if err != nil {
		return nil, collaborator("slot lock", err)
	}
	return release, nil
}

// recheck is the authoritative conflict check: the hour must still be a
// free slot of the freshly evaluated day.
func (s *Service) recheck(ctx context.Context, t availability.Target, start time.Time) error {
	free, day, err := s.avail.Evaluator().HourFree(ctx, t, start, start.Hour())
	if err != nil {
		return collaborator("availability re-check", err)
	}
	if day.DataSource == availability.SourceMock {
		return collaborator("availability re-check", errCalendarUnavailable)
	}
	if free {
		return nil
	}
	if v := hoursViolation(day.Policy, start); v != nil {
		return v
	}
	return &ConflictError{Time: start.Format("15:04")}
}

func hoursViolation(p availability.DayPolicy, start time.Time) *PolicyViolation {
	h := start.Hour()
	switch {
	case p.IsClosed:
		return &PolicyViolation{Kind: PolicyOutsideHours, Message: fmt.Sprintf(msgClosedDay, availability.LongDate(start))}
	case h < p.OpenHour || h > p.CloseHour:
		msg := msgWeekdayHours
		if start.Weekday() == time.Saturday {
			msg = msgSaturdayHours
		}
		return &PolicyViolation{Kind: PolicyOutsideHours,
			Message: fmt.Sprintf(msg, availability.Hour12(p.OpenHour), availability.Hour12(p.CloseHour))}
	case p.InLunch(h):
		return &PolicyViolation{Kind: PolicyOutsideHours,
			Message: fmt.Sprintf(msgLunchHour, availability.Hour12(p.LunchStart), availability.Hour12(p.LunchEnd))}
	}
	return nil
}

// newCode draws codes until one is unused.
func (s *Service) newCode(ctx context.Context) (string, error) {
	for i := 0; i < s.cfg.CodeAttempts; i++ {
		code, err := NewReservationCode(s.random)
		if err != nil {
			return "", err
		}
		exists, err := s.appts.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.logger.Warn().Str("code", code).Msg("reservation code collision, retrying")
	}
	return "", fmt.Errorf("no unused reservation code after %d attempts", s.cfg.CodeAttempts)
}

func (s *Service) rollbackEvent(ctx context.Context, calendarID, eventID, code string) {
	ctx, cancel := detached(ctx)
	defer cancel()
	if err := s.cal.DeleteEvent(ctx, calendarID, eventID); err != nil {
		s.logger.Error().Err(err).
			Str("code", code).
			Str("event_id", eventID).
			Msg("rollback failed: external event left behind")
		return
	}
	s.logger.Warn().Str("code", code).Str("event_id", eventID).Msg("external event rolled back")
}

// detached keeps ctx values but not its cancellation, so compensation still
// runs after the request timed out or the client went away.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
}

// after runs fn once the request's outcome is decided. It outlives the
// request context.
func (s *Service) after(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Service) publish(ctx context.Context, typ string, a *Appointment) {
	ev := events.Event{
		Type:       typ,
		Code:       a.ReservationCode,
		Calendar:   a.CalendarNumber,
		Date:       a.Date,
		Time:       a.Time,
		Status:     a.Status,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("code", a.ReservationCode).Str("type", typ).Msg("event not published")
	}
}

type nopNotifier struct{}

func (nopNotifier) Booked(context.Context, Notice)              {}
func (nopNotifier) Rescheduled(context.Context, Notice)         {}
func (nopNotifier) Remind(context.Context, Notice, string) error { return nil }
