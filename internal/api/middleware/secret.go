package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SecretHeader carries the shared secret agreed with the platform adapter.
const SecretHeader = "X-Adapter-Secret"

// SharedSecret rejects requests whose secret header does not match. The
// adapter seam is not a public API; a static shared secret is its whole
// authentication story.
func SharedSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(SecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid adapter secret")
			}
			return next(c)
		}
	}
}
