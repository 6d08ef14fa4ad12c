package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/clinic"
)

// Catalog resolves the calendar and service named in a request.
type Catalog interface {
	GetCalendar(ctx context.Context, number string) (*clinic.Calendar, error)
	GetService(ctx context.Context, number string) (*clinic.Service, error)
}

// Response is the bot-facing answer to an availability query.
type Response struct {
	Respuesta string    `json:"respuesta"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

func reply(msg string) Response { return Response{Respuesta: msg} }

// User-facing messages.
const (
	msgMissingParams   = `⚠️ Error: Faltan parámetros. Se requiere "service" y "date".`
	msgBadDate         = "⚠️ Error: Formato de fecha inválido. Por favor, usa el formato YYYY-MM-DD."
	msgCalendarMissing = "🚫 Error: El calendario solicitado no fue encontrado."
	msgServiceMissing  = "🚫 Error: El servicio solicitado no fue encontrado."
	msgPastDate        = "⚠️ No puedes consultar fechas en el pasado. Por favor, selecciona una fecha futura."
	msgSundayNoNext    = "😔 Los días domingos no contamos con servicio.\n\n🔍 Por favor, intenta con otra fecha o contacta directamente."
	MsgUnexpected      = "🤖 Ha ocurrido un error inesperado al consultar la disponibilidad."
)

// Service answers availability queries.
type Service struct {
	catalog      Catalog
	eval         *Evaluator
	planner      *Planner
	format       Formatter
	maxDaysAhead int
	logger       zerolog.Logger
}

func NewService(catalog Catalog, eval *Evaluator, planner *Planner, maxDaysAhead int, logger zerolog.Logger) *Service {
	return &Service{
		catalog:      catalog,
		eval:         eval,
		planner:      planner,
		format:       NewFormatter(eval.Now),
		maxDaysAhead: maxDaysAhead,
		logger:       logger,
	}
}

// Evaluator exposes the day evaluator shared with booking.
func (s *Service) Evaluator() *Evaluator { return s.eval }

// Planner exposes the multi-day planner.
func (s *Service) Planner() *Planner { return s.planner }

// ResolveTarget loads the calendar and service and builds the search target.
func (s *Service) ResolveTarget(ctx context.Context, calendarNumber, serviceNumber string) (Target, *clinic.Calendar, *clinic.Service, error) {
	cal, err := s.catalog.GetCalendar(ctx, calendarNumber)
	if err != nil {
		return Target{}, nil, nil, err
	}
	svc, err := s.catalog.GetService(ctx, serviceNumber)
	if err != nil {
		return Target{}, nil, nil, err
	}
	t := Target{CalendarNumber: cal.Number, CalendarID: cal.GoogleCalendarID, ServiceNumber: svc.Number}
	return t, cal, svc, nil
}

// ParseDate reads YYYY-MM-DD as local midnight in the clinic timezone.
func (s *Service) ParseDate(v string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", v, s.eval.Location())
}

// Query answers GET /api/consulta-disponibilidad. The returned error is set
// only for collaborator failures; every user mistake is a message.
func (s *Service) Query(ctx context.Context, calendarNumber, serviceNumber, dateStr string) (Response, error) {
	if serviceNumber == "" || dateStr == "" {
		return reply(msgMissingParams), nil
	}
	if calendarNumber == "" {
		calendarNumber = "1"
	}
	date, err := s.ParseDate(dateStr)
	if err != nil {
		return reply(msgBadDate), nil
	}

	t, _, _, err := s.ResolveTarget(ctx, calendarNumber, serviceNumber)
	switch {
	case errors.Is(err, clinic.ErrCalendarNotFound):
		return reply(msgCalendarMissing), nil
	case errors.Is(err, clinic.ErrServiceNotFound):
		return reply(msgServiceMissing), nil
	case err != nil:
		return Response{}, err
	}

	today := s.eval.Today()
	now := s.eval.Now()
	if date.Before(today) {
		return reply(msgPastDate), nil
	}
	if s.maxDaysAhead > 0 && date.After(today.AddDate(0, 0, s.maxDaysAhead)) {
		return reply(fmt.Sprintf("⚠️ Solo puedes consultar fechas dentro de los próximos %d días. Por favor, elige una fecha más cercana.", s.maxDaysAhead)), nil
	}

	if IsSunday(date) {
		next := s.planner.NextAvailableDate(ctx, t, date)
		if next == nil {
			return reply(msgSundayNoNext), nil
		}
		return reply(fmt.Sprintf("😔 Los días domingos no contamos con servicio, puedes consultar el día **%s** (%s) a las **%s**.\n\n🔍 Esta es la próxima fecha y hora más cercana disponible en el calendario.",
			RelativeDay(next.Date, now), next.DateStr, Hour12(next.FirstSlot.Hour))), nil
	}

	open, err := s.eval.IsWorkingDay(ctx, t, date)
	if err != nil {
		return Response{}, err
	}
	if !open {
		return reply(fmt.Sprintf("🚫 No hay servicio para %s. Por favor, elige otra fecha.", RelativeDay(date, now))), nil
	}

	var days []MenuDay
	for _, d := range s.planner.PrimaryWindow(ctx, t, date) {
		if d.HasSlots() {
			days = append(days, MenuDay{DayResult: d})
		}
	}
	if len(days) > 0 {
		text, meta := s.format.Menu(days)
		return Response{Respuesta: text, Metadata: &meta}, nil
	}

	if alts := s.planner.Alternatives(ctx, t, date); len(alts) > 0 {
		days = make([]MenuDay, 0, len(alts))
		for _, a := range alts {
			days = append(days, MenuDay{DayResult: a.DayResult, Direction: a.Direction, Distance: a.Distance})
		}
		text, meta := s.format.AlternativesMenu(date, days)
		return Response{Respuesta: text, Metadata: &meta}, nil
	}

	dayName := RelativeDay(date, now)
	if next := s.planner.NextAvailableDate(ctx, t, date); next != nil {
		return reply(fmt.Sprintf("😔 No tengo horarios disponibles para *%s* (%s).\n\n🔍 Te recomiendo el día **%s** (%s) a las **%s**.\n\n📅 Esta es la próxima fecha y hora más cercana disponible en el calendario.",
			dayName, dateStr, RelativeDay(next.Date, now), next.DateStr, Hour12(next.FirstSlot.Hour))), nil
	}
	return reply(fmt.Sprintf("😔 No tengo horarios disponibles para *%s* (%s).\n\n🔍 Te sugerimos elegir otra fecha o contactarnos directamente.", dayName, dateStr)), nil
}

// CurrentDate is the payload of GET /api/consulta-fecha-actual.
type CurrentDate struct {
	FechaHora string `json:"fechaHora"`
	Timestamp int64  `json:"timestamp"`
	ISOString string `json:"isoString"`
}

func (s *Service) CurrentDate() CurrentDate {
	now := s.eval.Now()
	return CurrentDate{
		FechaHora: CurrentDateText(now),
		Timestamp: now.UnixMilli(),
		ISOString: now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// Diagnostic modes.
const (
	ModeDay          = "day"
	ModeWindow       = "window"
	ModeAlternatives = "alternatives"
	ModeNext         = "next"
)

// Diagnostic is the raw output of one core computation.
type Diagnostic struct {
	Mode         string         `json:"mode"`
	Calendar     string         `json:"calendar"`
	Service      string         `json:"service"`
	Date         string         `json:"date"`
	Now          string         `json:"now"`
	Days         []*DayResult   `json:"days,omitempty"`
	Alternatives []Alternative  `json:"alternatives,omitempty"`
	Next         *NextAvailable `json:"next,omitempty"`
	Urgency      string         `json:"urgency,omitempty"`
}

var (
	ErrUnknownMode = errors.New("unknown diagnostic mode")
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")
)

// Diagnose runs one planner or evaluator step and returns its raw result,
// including busy intervals and per-hour checks.
func (s *Service) Diagnose(ctx context.Context, mode, calendarNumber, serviceNumber, dateStr string) (*Diagnostic, error) {
	if calendarNumber == "" {
		calendarNumber = "1"
	}
	if serviceNumber == "" {
		serviceNumber = "1"
	}
	if mode == "" {
		mode = ModeDay
	}
	date := s.eval.Today()
	if dateStr != "" {
		d, err := s.ParseDate(dateStr)
		if err != nil {
			return nil, ErrInvalidDate
		}
		date = d
	}
	t, _, _, err := s.ResolveTarget(ctx, calendarNumber, serviceNumber)
	if err != nil {
		return nil, err
	}

	out := &Diagnostic{
		Mode:     mode,
		Calendar: calendarNumber,
		Service:  serviceNumber,
		Date:     date.Format("2006-01-02"),
		Now:      s.eval.Now().Format(time.RFC3339),
	}
	switch mode {
	case ModeDay:
		res, err := s.eval.EvaluateDay(ctx, t, date)
		if err != nil {
			return nil, err
		}
		out.Days = []*DayResult{res}
		out.Urgency = UrgencyText(res.OccupationPercentage)
	case ModeWindow:
		out.Days = s.planner.PrimaryWindow(ctx, t, date)
	case ModeAlternatives:
		out.Alternatives = s.planner.Alternatives(ctx, t, date)
	case ModeNext:
		out.Next = s.planner.NextAvailableDate(ctx, t, date)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	return out, nil
}
