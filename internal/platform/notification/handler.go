package notification

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/agenda/pkg/pagination"
)

// Handler exposes the delivery log to operators.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notificaciones", h.List)
	g.GET("/notificaciones/estadisticas", h.Stats)
	g.GET("/notificaciones/:id", h.Get)
	g.POST("/notificaciones/:id/reintentar", h.Retry)
}

// List pages through the log newest first, optionally for one recipient.
func (h *Handler) List(c echo.Context) error {
	all := h.manager.List(c.QueryParam("destinatario"))
	p := pagination.FromContext(c)
	lo, hi := p.Window(len(all))
	return c.JSON(http.StatusOK, pagination.NewResponse(all[lo:hi], len(all), p))
}

func (h *Handler) Get(c echo.Context) error {
	n, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Retry(c echo.Context) error {
	n, err := h.manager.Retry(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotRetryable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		// Delivery failed again; the snapshot carries the new error.
		return c.JSON(http.StatusBadGateway, n)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}
