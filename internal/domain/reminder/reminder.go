// Package reminder sends the day-before WhatsApp reminder for upcoming
// appointments.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/booking"
	"github.com/clinic/agenda/internal/domain/clinic"
	"github.com/clinic/agenda/internal/platform/events"
)

// Appointments is the slice of the appointment store the job needs.
type Appointments interface {
	ListDueForReminder(ctx context.Context, fromDate, toDate string) ([]*booking.Appointment, error)
	UpdateStatus(ctx context.Context, code, status string) error
}

// Catalog resolves specialist and service names for the message.
type Catalog interface {
	GetCalendar(ctx context.Context, number string) (*clinic.Calendar, error)
	GetService(ctx context.Context, number string) (*clinic.Service, error)
}

// TokenIssuer signs confirmation-link tokens.
type TokenIssuer interface {
	Issue(code string) (string, error)
}

// Result summarizes one run.
type Result struct {
	Checked int `json:"checked"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Job selects appointments starting between now+WindowStart and
// now+WindowEnd and reminds each one.
type Job struct {
	appts    Appointments
	catalog  Catalog
	notifier booking.Notifier
	events   events.Publisher
	tokens   TokenIssuer
	baseURL  string
	loc      *time.Location
	now      func() time.Time
	logger   zerolog.Logger

	WindowStart time.Duration
	WindowEnd   time.Duration
	RunTimeout  time.Duration
}

// NewJob builds the job. tokens may be nil, in which case reminders carry
// no confirmation link.
func NewJob(appts Appointments, catalog Catalog, notifier booking.Notifier, pub events.Publisher,
	tokens TokenIssuer, baseURL string, loc *time.Location, now func() time.Time, logger zerolog.Logger) *Job {
	if now == nil {
		now = time.Now
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Job{
		appts:       appts,
		catalog:     catalog,
		notifier:    notifier,
		events:      pub,
		tokens:      tokens,
		baseURL:     strings.TrimRight(baseURL, "/"),
		loc:         loc,
		now:         now,
		logger:      logger,
		WindowStart: 23 * time.Hour,
		WindowEnd:   25 * time.Hour,
		RunTimeout:  5 * time.Minute,
	}
}

// Run sends every due reminder once. A failed send leaves the status
// untouched so the next run can retry while still inside the window.
func (j *Job) Run(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, j.RunTimeout)
	defer cancel()

	var res Result
	now := j.now().In(j.loc)
	from, to := now.Add(j.WindowStart), now.Add(j.WindowEnd)

	list, err := j.appts.ListDueForReminder(ctx, now.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return res, fmt.Errorf("list due appointments: %w", err)
	}

	for _, a := range list {
		start, err := a.StartsAt(j.loc)
		if err != nil {
			j.logger.Warn().Err(err).Str("code", a.ReservationCode).Msg("unreadable appointment time, skipping")
			continue
		}
		if start.Before(from) || start.After(to) {
			continue
		}
		res.Checked++

		if err := j.remind(ctx, a); err != nil {
			res.Failed++
			j.logger.Error().Err(err).Str("code", a.ReservationCode).Msg("reminder not sent")
			continue
		}
		res.Sent++
	}

	j.logger.Info().
		Int("checked", res.Checked).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Msg("reminder run finished")
	return res, nil
}

func (j *Job) remind(ctx context.Context, a *booking.Appointment) error {
	notice := booking.Notice{Appointment: a}
	if cal, err := j.catalog.GetCalendar(ctx, a.CalendarNumber); err == nil {
		notice.Specialist = cal.SpecialistName
	}
	if svc, err := j.catalog.GetService(ctx, a.ServiceNumber); err == nil {
		notice.ServiceName = svc.Name
	}

	if err := j.notifier.Remind(ctx, notice, j.confirmLink(a.ReservationCode)); err != nil {
		return err
	}
	if err := j.appts.UpdateStatus(ctx, a.ReservationCode, booking.StatusNotified); err != nil {
		// Already delivered; a retry would send it twice.
		j.logger.Warn().Err(err).Str("code", a.ReservationCode).Msg("reminder sent but status not updated")
	}

	ev := events.Event{
		Type:       events.AppointmentReminded,
		Code:       a.ReservationCode,
		Calendar:   a.CalendarNumber,
		Date:       a.Date,
		Time:       a.Time,
		Status:     booking.StatusNotified,
		OccurredAt: time.Now().UTC(),
	}
	if err := j.events.Publish(ctx, ev); err != nil {
		j.logger.Warn().Err(err).Str("code", a.ReservationCode).Msg("reminded event not published")
	}
	return nil
}

func (j *Job) confirmLink(code string) string {
	if j.tokens == nil || j.baseURL == "" {
		return ""
	}
	tok, err := j.tokens.Issue(code)
	if err != nil {
		j.logger.Warn().Err(err).Str("code", code).Msg("confirmation token not issued")
		return ""
	}
	return j.baseURL + "/api/confirma-cita/" + tok
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

// Scheduler runs the job on a cron spec in the clinic timezone.
type Scheduler struct {
	cron   *cron.Cron
	job    *Job
	spec   string
	logger zerolog.Logger
}

func NewScheduler(job *Job, spec string, loc *time.Location, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		job:    job,
		spec:   spec,
		logger: logger,
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.job.Run(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("reminder run failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule reminders %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.Info().Str("spec", s.spec).Msg("reminder scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("reminder scheduler stopped")
}
