package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/availability"
	"github.com/clinic/agenda/pkg/pagination"
)

const (
	msgScheduleAction = `⚠️ Error: Se requiere action: "schedule".`
	msgCancelAction   = `⚠️ Error: Se requiere action: "cancel".`
	msgBadBody        = "⚠️ Error: El cuerpo de la solicitud no es un JSON válido."
	msgBadLink        = "⚠️ El enlace de confirmación no es válido o ya expiró. Por favor, confirma respondiendo a nuestro mensaje."
	msgUnknownClient  = "🤷 No encontramos un cliente registrado con ese teléfono."

	msgSelectionReturning = `¡Perfecto! Elegiste las %s del %s 👍

Encontramos tus datos en nuestro sistema:
• Nombre: %s
• Correo: %s

¿Usamos estos mismos datos para agendar tu cita? Responde 'sí' para confirmar 😊`
	msgSelectionNew = `¡Perfecto! Elegiste las %s del %s 👍

¿Me puedes decir tu nombre para la reserva? 😊`
	msgSelectionFailed = "Ocurrió un error al verificar tus datos. Por favor, proporciona tu nombre para continuar 😊"
	msgSelectionUsage  = "Usa POST con telefono, horaSeleccionada, fechaSeleccionada y servicio."
)

// Client kinds reported after a time was picked.
const (
	ClientReturning = "recurrente"
	ClientNew       = "nuevo"
	ClientUnknown   = "desconocido"
)

// CodeParser turns a signed confirmation token back into a reservation code.
type CodeParser interface {
	Parse(token string) (string, error)
}

// Reply is the bot-facing answer. Every booking route answers 200.
type Reply struct {
	Respuesta string `json:"respuesta"`
	IDCita    string `json:"id_cita,omitempty"`
}

// ClientReply answers the client recognition routes.
type ClientReply struct {
	Respuesta  string         `json:"respuesta"`
	Encontrado bool           `json:"encontrado"`
	Cliente    *ClientInfo    `json:"cliente,omitempty"`
	Citas      []*Appointment `json:"citas,omitempty"`
}

// flexString accepts "1" and 1 alike.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type scheduleBody struct {
	Action      string     `json:"action"`
	Calendar    flexString `json:"calendar"`
	Service     flexString `json:"service"`
	ServiceName string     `json:"serviceName"`
	Date        string     `json:"date"`
	Time        string     `json:"time"`
	ClientName  string     `json:"clientName"`
	ClientEmail string     `json:"clientEmail"`
	ClientPhone flexString `json:"clientPhone"`
}

type cancelBody struct {
	Action        string     `json:"action"`
	Calendar      flexString `json:"calendar"`
	EventID       string     `json:"eventId"`
	CodigoReserva string     `json:"codigo_reserva"`
	CodeCamel     string     `json:"codigoReserva"`
}

func (b cancelBody) code() string {
	for _, c := range []string{b.EventID, b.CodigoReserva, b.CodeCamel} {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

type rescheduleBody struct {
	CodigoReserva string `json:"codigo_reserva"`
	Fecha         string `json:"fecha_reagendada"`
	Hora          string `json:"hora_reagendada"`
}

type confirmBody struct {
	CodigoReserva string `json:"codigo_reserva"`
}

// SelectionReply tells the bot whether it still has to ask for the
// client's details after a time was picked.
type SelectionReply struct {
	Respuesta     string      `json:"respuesta"`
	TipoCliente   string      `json:"tipo_cliente"`
	Cliente       *ClientInfo `json:"cliente,omitempty"`
	RequiereDatos bool        `json:"requiere_datos"`
}

type selectionBody struct {
	Telefono flexString `json:"telefono"`
	Hora     string     `json:"horaSeleccionada"`
	Fecha    string     `json:"fechaSeleccionada"`
	Servicio string     `json:"servicio"`
}

type clientBody struct {
	Telefono flexString `json:"telefono"`
	Phone    flexString `json:"phone"`
}

// Handler serves the booking endpoints.
type Handler struct {
	svc    *Service
	tokens CodeParser
	logger zerolog.Logger
}

// NewHandler builds the handler. tokens may be nil when confirmation links
// are disabled.
func NewHandler(svc *Service, tokens CodeParser, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/agenda-cita", h.AgendaCita)
	api.POST("/cancela-cita", h.CancelaCita)
	api.POST("/reagenda-cita", h.ReagendaCita)
	api.POST("/confirma-cita", h.ConfirmaCita)
	api.GET("/confirma-cita/:token", h.ConfirmaCitaLink)
	api.GET("/reconocer-cliente", h.ReconocerCliente)
	api.POST("/reconocer-cliente", h.ReconocerCliente)
	api.GET("/verificar-cliente", h.VerificarCliente)
	api.POST("/verificar-cliente", h.VerificarCliente)
	api.GET("/verificar-cliente-seleccion-hora", h.SeleccionHoraUso)
	api.POST("/verificar-cliente-seleccion-hora", h.VerificarSeleccionHora)
	api.GET("/citas", h.Citas)
}

// RegisterOpsRoutes mounts the staff-facing listing.
func (h *Handler) RegisterOpsRoutes(ops *echo.Group) {
	ops.GET("/agenda", h.Agenda)
}

func (h *Handler) AgendaCita(c echo.Context) error {
	var body scheduleBody
	if err := decode(c, &body); err != nil {
		return h.reply(c, msgBadBody, "")
	}
	if body.Action != "schedule" {
		return h.reply(c, msgScheduleAction, "")
	}
	out, err := h.svc.Create(c.Request().Context(), CreateRequest{
		Calendar:    string(body.Calendar),
		Service:     string(body.Service),
		ServiceName: body.ServiceName,
		Date:        strings.TrimSpace(body.Date),
		Time:        strings.TrimSpace(body.Time),
		ClientName:  strings.TrimSpace(body.ClientName),
		ClientEmail: strings.TrimSpace(body.ClientEmail),
		ClientPhone: string(body.ClientPhone),
	})
	if err != nil {
		return h.fail(c, "agendar", err)
	}
	return h.reply(c, out.Message, out.Code)
}

func (h *Handler) CancelaCita(c echo.Context) error {
	var body cancelBody
	if err := decode(c, &body); err != nil {
		return h.reply(c, msgBadBody, "")
	}
	if body.Action != "cancel" {
		return h.reply(c, msgCancelAction, "")
	}
	out, err := h.svc.Cancel(c.Request().Context(), CancelRequest{Code: body.code(), Calendar: string(body.Calendar)})
	if err != nil {
		return h.fail(c, "cancelar", err)
	}
	return h.reply(c, out.Message, "")
}

func (h *Handler) ReagendaCita(c echo.Context) error {
	var body rescheduleBody
	if err := decode(c, &body); err != nil {
		return h.reply(c, msgBadBody, "")
	}
	out, err := h.svc.Reschedule(c.Request().Context(), RescheduleRequest{
		Code: body.CodigoReserva,
		Date: strings.TrimSpace(body.Fecha),
		Time: strings.TrimSpace(body.Hora),
	})
	if err != nil {
		return h.fail(c, "reagendar", err)
	}
	return h.reply(c, out.Message, out.Code)
}

func (h *Handler) ConfirmaCita(c echo.Context) error {
	var body confirmBody
	if err := decode(c, &body); err != nil {
		return h.reply(c, msgBadBody, "")
	}
	out, err := h.svc.Confirm(c.Request().Context(), body.CodigoReserva)
	if err != nil {
		return h.fail(c, "confirmar", err)
	}
	return h.reply(c, out.Message, "")
}

// ConfirmaCitaLink confirms through the signed link sent in reminders.
func (h *Handler) ConfirmaCitaLink(c echo.Context) error {
	if h.tokens == nil {
		return h.reply(c, msgBadLink, "")
	}
	code, err := h.tokens.Parse(c.Param("token"))
	if err != nil {
		h.logger.Warn().Err(err).Str("request_id", requestID(c)).Msg("confirmation link rejected")
		return h.reply(c, msgBadLink, "")
	}
	out, err := h.svc.Confirm(c.Request().Context(), code)
	if err != nil {
		return h.fail(c, "confirmar", err)
	}
	return h.reply(c, out.Message, "")
}

func (h *Handler) ReconocerCliente(c echo.Context) error {
	info, ok, err := h.lookup(c)
	if err != nil {
		return h.failClient(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, ClientReply{Respuesta: msgUnknownClient})
	}
	return c.JSON(http.StatusOK, ClientReply{
		Respuesta:  "👋 ¡Hola de nuevo, " + info.Name + "!",
		Encontrado: true,
		Cliente:    info,
	})
}

// VerificarCliente is ReconocerCliente plus the client's upcoming appointments.
func (h *Handler) VerificarCliente(c echo.Context) error {
	info, ok, err := h.lookup(c)
	if err != nil {
		return h.failClient(c, err)
	}
	if !ok {
		return c.JSON(http.StatusOK, ClientReply{Respuesta: msgUnknownClient})
	}
	citas, err := h.svc.UpcomingAppointments(c.Request().Context(), info.Phone)
	if err != nil {
		return h.failClient(c, err)
	}
	return c.JSON(http.StatusOK, ClientReply{
		Respuesta:  "👋 ¡Hola de nuevo, " + info.Name + "!",
		Encontrado: true,
		Cliente:    info,
		Citas:      citas,
	})
}

// VerificarSeleccionHora runs once the user picked a time: returning
// clients are offered their stored details, new ones are asked for a name.
func (h *Handler) VerificarSeleccionHora(c echo.Context) error {
	var body selectionBody
	if err := decode(c, &body); err != nil {
		return c.JSON(http.StatusOK, SelectionReply{Respuesta: msgBadBody, TipoCliente: ClientUnknown})
	}
	info, err := h.svc.RecognizeClient(c.Request().Context(), string(body.Telefono))
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusOK, SelectionReply{Respuesta: ve.UserMessage(), TipoCliente: ClientUnknown})
	case err != nil:
		h.logger.Error().Err(err).Str("request_id", requestID(c)).Msg("client check after time selection failed")
		return c.JSON(http.StatusOK, SelectionReply{Respuesta: msgSelectionFailed, TipoCliente: ClientUnknown, RequiereDatos: true})
	case info == nil:
		return c.JSON(http.StatusOK, SelectionReply{
			Respuesta:     fmt.Sprintf(msgSelectionNew, body.Hora, body.Fecha),
			TipoCliente:   ClientNew,
			RequiereDatos: true,
		})
	}
	return c.JSON(http.StatusOK, SelectionReply{
		Respuesta:   fmt.Sprintf(msgSelectionReturning, body.Hora, body.Fecha, info.Name, orDefault(info.Email, "No registrado")),
		TipoCliente: ClientReturning,
		Cliente:     info,
	})
}

func (h *Handler) SeleccionHoraUso(c echo.Context) error {
	return c.JSON(http.StatusOK, Reply{Respuesta: msgSelectionUsage})
}

func (h *Handler) Citas(c echo.Context) error {
	citas, err := h.svc.UpcomingAppointments(c.Request().Context(), c.QueryParam("telefono"))
	if err != nil {
		return h.failClient(c, err)
	}
	return c.JSON(http.StatusOK, ClientReply{
		Respuesta:  upcomingText(citas),
		Encontrado: len(citas) > 0,
		Citas:      citas,
	})
}

// Agenda pages through one day's appointments: ?fecha=YYYY-MM-DD&calendario=N.
func (h *Handler) Agenda(c echo.Context) error {
	list, err := h.svc.DayAgenda(c.Request().Context(), c.QueryParam("fecha"), c.QueryParam("calendario"))
	if err != nil {
		return h.failClient(c, err)
	}
	p := pagination.FromContext(c)
	lo, hi := p.Window(len(list))
	resp := pagination.NewResponse(list[lo:hi], len(list), p)
	resp.Respuesta = fmt.Sprintf("📋 %d citas en la agenda.", len(list))
	return c.JSON(http.StatusOK, resp)
}

func upcomingText(citas []*Appointment) string {
	if len(citas) == 0 {
		return "📭 No tienes citas próximas."
	}
	var b strings.Builder
	b.WriteString("📅 Tus próximas citas:\n")
	for _, a := range citas {
		date := a.Date
		if d, err := time.Parse("2006-01-02", a.Date); err == nil {
			date = availability.LongDate(d)
		}
		fmt.Fprintf(&b, "\n• %s a las %s (Código: %s) - %s", date, availability.Time12(a.Time), a.ReservationCode, a.Status)
	}
	return b.String()
}

// lookup reads the phone from the query string or a JSON body.
func (h *Handler) lookup(c echo.Context) (*ClientInfo, bool, error) {
	phone := c.QueryParam("telefono")
	if phone == "" {
		phone = c.QueryParam("phone")
	}
	if phone == "" && c.Request().Method == http.MethodPost {
		var body clientBody
		if err := decode(c, &body); err == nil {
			phone = string(body.Telefono)
			if phone == "" {
				phone = string(body.Phone)
			}
		}
	}
	info, err := h.svc.RecognizeClient(c.Request().Context(), phone)
	if err != nil {
		return nil, false, err
	}
	return info, info != nil, nil
}

func decode(c echo.Context, v any) error {
	return json.NewDecoder(c.Request().Body).Decode(v)
}

func (h *Handler) reply(c echo.Context, msg, code string) error {
	return c.JSON(http.StatusOK, Reply{Respuesta: msg, IDCita: code})
}

// fail maps a service error to its bot-facing text. Only collaborator
// failures are logged as errors.
func (h *Handler) fail(c echo.Context, verb string, err error) error {
	return h.reply(c, h.message(c, verb, err), "")
}

func (h *Handler) failClient(c echo.Context, err error) error {
	return c.JSON(http.StatusOK, ClientReply{Respuesta: h.message(c, "consultar", err)})
}

func (h *Handler) message(c echo.Context, verb string, err error) string {
	var (
		ve *ValidationError
		pv *PolicyViolation
		ce *ConflictError
		nf *NotFoundError
		co *CollaboratorError
	)
	switch {
	case errors.As(err, &ve):
		return ve.UserMessage()
	case errors.As(err, &pv):
		return pv.Message
	case errors.As(err, &ce):
		return fmt.Sprintf(msgConflict, ce.Time)
	case errors.As(err, &nf):
		return nf.Message
	case errors.As(err, &co) && co.Message != "":
		h.logger.Error().Err(err).Str("request_id", requestID(c)).Str("op", co.Op).Msg("booking collaborator failed")
		return co.Message
	}
	h.logger.Error().Err(err).Str("request_id", requestID(c)).Str("path", c.Path()).Msg("booking request failed")
	return "🤖 Ha ocurrido un error inesperado al " + verb + " la cita."
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}
