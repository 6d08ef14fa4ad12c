package booking

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/availability"
	"github.com/clinic/agenda/internal/domain/clinic"
	"github.com/clinic/agenda/internal/platform/calendar"
	"github.com/clinic/agenda/internal/platform/events"
)

var testLoc = time.FixedZone("CST", -6*60*60)

const testCalendarID = "primary"

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, testLoc)
}

type mockRules struct{}

func (mockRules) GetWorkingHoursRule(_ context.Context, _ string, wd int) (*clinic.WorkingHoursRule, error) {
	switch {
	case wd >= 1 && wd <= 5:
		return &clinic.WorkingHoursRule{CalendarNumber: "1", Weekday: wd, StartHour: 10, EndHour: 19}, nil
	case wd == 6:
		return &clinic.WorkingHoursRule{CalendarNumber: "1", Weekday: wd, StartHour: 10, EndHour: 13}, nil
	}
	return nil, nil
}

type mockCatalog struct{}

func (mockCatalog) GetCalendar(_ context.Context, n string) (*clinic.Calendar, error) {
	if n != "1" {
		return nil, clinic.ErrCalendarNotFound
	}
	return &clinic.Calendar{Number: "1", GoogleCalendarID: testCalendarID, SpecialistName: "Dra. Ruiz", Active: true}, nil
}

func (mockCatalog) GetService(_ context.Context, n string) (*clinic.Service, error) {
	if n != "1" {
		return nil, clinic.ErrServiceNotFound
	}
	return &clinic.Service{Number: "1", Name: "Consulta", DurationMinutes: 60}, nil
}

// ---------------------------------------------------------------------------
// In-memory stores
// ---------------------------------------------------------------------------

type memClients struct {
	mu        sync.Mutex
	byKey     map[string]*Client
	upsertErr error
}

func newMemClients() *memClients { return &memClients{byKey: make(map[string]*Client)} }

func (m *memClients) FindByPhoneKey(_ context.Context, key string) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byKey[key]
	if !ok {
		return nil, ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memClients) Upsert(_ context.Context, c *Client) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byKey[c.PhoneKey]; ok {
		c.ID = existing.ID
	} else {
		c.ID = uuid.New()
	}
	cp := *c
	m.byKey[c.PhoneKey] = &cp
	return nil
}

type memAppointments struct {
	mu        sync.Mutex
	byCode    map[string]*Appointment
	clients   *memClients
	insertErr error
	updateErr error
	findErr   error
	// onInsert runs before Insert stores anything; a non-nil error aborts it.
	onInsert func(ctx context.Context) error
	onUpdate func(ctx context.Context) error
}

func newMemAppointments(clients *memClients) *memAppointments {
	return &memAppointments{byCode: make(map[string]*Appointment), clients: clients}
}

func (m *memAppointments) FindByCode(_ context.Context, code string) (*Appointment, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byCode[code]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAppointments) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byCode[code]
	return ok, nil
}

func (m *memAppointments) Insert(ctx context.Context, a *Appointment) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if m.onInsert != nil {
		if err := m.onInsert(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	cp := *a
	for _, c := range m.clients.byKey {
		if c.ID == a.ClientID {
			cp.ClientName, cp.ClientEmail, cp.ClientPhone = c.Name, c.Email, c.Phone
		}
	}
	m.byCode[a.ReservationCode] = &cp
	return nil
}

func (m *memAppointments) UpdateStatus(_ context.Context, code, status string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byCode[code]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Status = status
	return nil
}

func (m *memAppointments) UpdateSchedule(ctx context.Context, code, date, hhmm, eventID, status string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.onUpdate != nil {
		if err := m.onUpdate(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byCode[code]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Date, a.Time, a.ExternalEventID, a.Status = date, hhmm, eventID, status
	return nil
}

func (m *memAppointments) ListDueForReminder(_ context.Context, from, to string) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.byCode {
		if a.Date >= from && a.Date <= to && (a.Status == StatusScheduled || a.Status == StatusRescheduled) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAppointments) ListUpcomingByPhoneKey(_ context.Context, key, from string) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.byCode {
		if PhoneKey(a.ClientPhone) == key && a.Date >= from && a.Status != StatusCancelled {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAppointments) ListByDate(_ context.Context, date, calendarNumber string) ([]*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.byCode {
		if a.Date == date && (calendarNumber == "" || a.CalendarNumber == calendarNumber) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (m *memAppointments) get(code string) *Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byCode[code]
}

// ---------------------------------------------------------------------------
// Recording notifier
// ---------------------------------------------------------------------------

type recordingNotifier struct {
	mu          sync.Mutex
	booked      []Notice
	rescheduled []Notice
}

func (r *recordingNotifier) Booked(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.booked = append(r.booked, n)
}

func (r *recordingNotifier) Rescheduled(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rescheduled = append(r.rescheduled, n)
}

func (r *recordingNotifier) Remind(context.Context, Notice, string) error { return nil }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	cal      *calendar.Memory
	clients  *memClients
	appts    *memAppointments
	notifier *recordingNotifier
	events   *events.Recorder
	svc      *Service
}

// ctxCalendar fails every call made with a finished context, as the
// Google client does.
type ctxCalendar struct {
	*calendar.Memory
}

func (c ctxCalendar) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]calendar.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Memory.ListEvents(ctx, calendarID, from, to)
}

func (c ctxCalendar) CreateEvent(ctx context.Context, calendarID string, ev calendar.NewEvent, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.Memory.CreateEvent(ctx, calendarID, ev, id)
}

func (c ctxCalendar) DeleteEvent(ctx context.Context, calendarID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.Memory.DeleteEvent(ctx, calendarID, id)
}

func newFixture(now time.Time) *fixture {
	return newFixtureWith(now, func(m *calendar.Memory) calendar.Port { return m })
}

// newFixtureWith lets a test put a wrapper between the service and the
// in-memory calendar.
func newFixtureWith(now time.Time, port func(*calendar.Memory) calendar.Port) *fixture {
	f := &fixture{
		cal:      calendar.NewMemory(),
		clients:  newMemClients(),
		notifier: &recordingNotifier{},
		events:   &events.Recorder{},
	}
	f.appts = newMemAppointments(f.clients)
	clock := func() time.Time { return now }
	cal := port(f.cal)
	eval := availability.NewEvaluator(mockRules{}, cal, testLoc, time.Hour, clock, zerolog.Nop())
	planner := availability.NewPlanner(eval, availability.DefaultPlannerConfig(), zerolog.Nop())
	avail := availability.NewService(mockCatalog{}, eval, planner, 90, zerolog.Nop())
	f.svc = NewService(Deps{
		Availability: avail,
		Catalog:      mockCatalog{},
		Calendar:     cal,
		Clients:      f.clients,
		Appointments: f.appts,
		Notifier:     f.notifier,
		Events:       f.events,
	}, DefaultConfig(), zerolog.Nop())
	return f
}

func validCreate() CreateRequest {
	return CreateRequest{
		Calendar:    "1",
		Service:     "1",
		Date:        "2025-01-13",
		Time:        "11:00",
		ClientName:  "Ana López",
		ClientEmail: "ana@example.com",
		ClientPhone: "5512345678",
	}
}

// hourFree asks the availability evaluator whether the hour is still open.
func (f *fixture) hourFree(t *testing.T, day time.Time, hour int) bool {
	t.Helper()
	target, _, _, err := f.svc.avail.ResolveTarget(context.Background(), "1", "1")
	if err != nil {
		t.Fatalf("resolve target: %v", err)
	}
	free, _, err := f.svc.avail.Evaluator().HourFree(context.Background(), target, day, hour)
	if err != nil {
		t.Fatalf("hour free: %v", err)
	}
	return free
}

// book creates an appointment and waits for background work.
func (f *fixture) book(t *testing.T, req CreateRequest) *Outcome {
	t.Helper()
	out, err := f.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("book: unexpected error: %v", err)
	}
	f.svc.Wait()
	return out
}
