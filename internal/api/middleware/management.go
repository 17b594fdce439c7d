package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

const ManagementSecretQueryParam = "mgmt-secret"

// ManagementSecret rejects requests whose mgmt-secret query parameter does not match secret.
func ManagementSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			presented := c.QueryParam(ManagementSecretQueryParam)
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid management secret")
			}

			return next(c)
		}
	}
}
