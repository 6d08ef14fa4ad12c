package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler(now time.Time) (*Handler, *fixture, *echo.Echo) {
	f := newFixture(now)
	return NewHandler(f.svc, zerolog.Nop()), f, echo.New()
}

func TestHandler_ConsultaDisponibilidad(t *testing.T) {
	h, _, e := newTestHandler(at(2025, time.January, 10, 8, 0))
	req := httptest.NewRequest(http.MethodGet, "/?service=1&date=2025-01-13", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ConsultaDisponibilidad(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(resp.Respuesta, "Lunes 13") || resp.Metadata == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandler_ConsultaDisponibilidad_ErrorIs200(t *testing.T) {
	h, f, e := newTestHandler(at(2025, time.January, 10, 8, 0))
	f.rules.err = errors.New("db down")
	req := httptest.NewRequest(http.MethodGet, "/?service=1&date=2025-01-13", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ConsultaDisponibilidad(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error inesperado") {
		t.Errorf("expected generic message, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "db down") {
		t.Error("internal error leaked into response")
	}
}

func TestHandler_ConsultaFechaActual(t *testing.T) {
	h, _, e := newTestHandler(at(2025, time.January, 6, 9, 30))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ConsultaFechaActual(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got CurrentDate
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FechaHora != "lunes, 06 de enero de 2025, 09:30:00 GMT-06:00" {
		t.Errorf("unexpected fechaHora %q", got.FechaHora)
	}
	if got.ISOString != "2025-01-06T15:30:00.000Z" {
		t.Errorf("unexpected isoString %q", got.ISOString)
	}
}

func TestHandler_Diagnostico(t *testing.T) {
	h, _, e := newTestHandler(at(2025, time.January, 10, 8, 0))

	req := httptest.NewRequest(http.MethodGet, "/?mode=window&date=2025-01-13", nil)
	rec := httptest.NewRecorder()
	if err := h.Diagnostico(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/?mode=bogus", nil)
	rec = httptest.NewRecorder()
	err := h.Diagnostico(e.NewContext(req, rec))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?calendar=9", nil)
	rec = httptest.NewRecorder()
	err = h.Diagnostico(e.NewContext(req, rec))
	if !errors.As(err, &he) || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
