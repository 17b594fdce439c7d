package common

import (
	"context"
	"net/http"
	"time"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/labstack/echo/v4"
)

const healthyTimeout = 5 * time.Second

func GetHealthyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/healthy", getHealthyHandler(s))
}

func getHealthyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthyTimeout)
		defer cancel()

		if err := s.Healthy(ctx); err != nil {
			util.LogFromContext(ctx).Error().Err(err).Msg("Health check failed")
			return c.String(http.StatusServiceUnavailable, err.Error())
		}

		return c.String(http.StatusOK, "Healthy.")
	}
}
