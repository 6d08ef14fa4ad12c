package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const msgTimeout = "⏳ La solicitud tardó demasiado. Por favor, intenta de nuevo en unos momentos."

// RequestTimeout puts a deadline on each request context and runs the
// handler on the same goroutine, so every collaborator call sees the
// deadline and the echo.Context is never touched after the middleware
// returns. When the deadline passed and nothing was written yet, the bot
// gets a 200 with a {respuesta} body. Paths listed in skip (e.g.
// long-running operator jobs) are exempt.
func RequestTimeout(timeout time.Duration, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipped[c.Request().URL.Path] {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) || c.Response().Committed {
				return err
			}
			return c.JSON(http.StatusOK, map[string]string{"respuesta": msgTimeout})
		}
	}
}
