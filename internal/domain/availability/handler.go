package availability

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/agenda/internal/domain/clinic"
)

// Handler serves the availability endpoints. Bot-facing routes always answer
// 200 with a respuesta text.
type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the bot-facing routes on api and the diagnostic
// route on ops, which the caller guards with operator auth.
func (h *Handler) RegisterRoutes(api, ops *echo.Group) {
	api.GET("/consulta-disponibilidad", h.ConsultaDisponibilidad)
	api.GET("/consulta-fecha-actual", h.ConsultaFechaActual)
	ops.GET("/diagnostico", h.Diagnostico)
}

func (h *Handler) ConsultaDisponibilidad(c echo.Context) error {
	service := c.QueryParam("service")
	date := c.QueryParam("date")
	resp, err := h.svc.Query(c.Request().Context(), c.QueryParam("calendar"), service, date)
	if err != nil {
		rid, _ := c.Get("request_id").(string)
		h.logger.Error().Err(err).
			Str("request_id", rid).
			Str("service", service).
			Str("date", date).
			Msg("availability query failed")
		resp = reply(MsgUnexpected)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) ConsultaFechaActual(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.CurrentDate())
}

// Diagnostico is an operator endpoint, so it uses real status codes.
func (h *Handler) Diagnostico(c echo.Context) error {
	out, err := h.svc.Diagnose(c.Request().Context(),
		c.QueryParam("mode"), c.QueryParam("calendar"), c.QueryParam("service"), c.QueryParam("date"))
	switch {
	case errors.Is(err, clinic.ErrCalendarNotFound), errors.Is(err, clinic.ErrServiceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUnknownMode), errors.Is(err, ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}
