package middleware

import (
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PanicReply is the text the bot receives when a handler panics.
const PanicReply = "🤖 Ha ocurrido un error inesperado. Por favor, intenta de nuevo en unos minutos."

// Recovery turns handler panics into a logged error. Requests under
// botPrefix get the usual 200 {"respuesta"} envelope so the chatbot always
// has something to relay; everything else gets a 500.
func Recovery(logger zerolog.Logger, botPrefix string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				buf := make([]byte, 4096)
				buf = buf[:runtime.Stack(buf, false)]
				rid, _ := c.Get(RequestIDKey).(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("route", c.Path()).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", buf).
					Msg("handler panicked")

				if botPrefix != "" && strings.HasPrefix(c.Request().URL.Path, botPrefix) && !c.Response().Committed {
					err = c.JSON(http.StatusOK, map[string]string{"respuesta": PanicReply})
					return
				}
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
