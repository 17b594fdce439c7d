package router

import (
	"net/http"

	"github.com/kashguard/go-keypool/internal/api/httperrors"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// HTTPErrorHandler renders every error as types.PublicHTTPError.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *httperrors.HTTPError
	var echoErr *echo.HTTPError

	switch {
	case errors.As(err, &httpErr):
	case errors.As(err, &echoErr):
		title := http.StatusText(echoErr.Code)
		if msg, ok := echoErr.Message.(string); ok && msg != "" {
			title = msg
		}
		httpErr = httperrors.NewHTTPError(echoErr.Code, types.PublicHTTPErrorTypeGeneric, title)
		httpErr.Internal = echoErr.Internal
	default:
		httpErr = httperrors.NewHTTPError(http.StatusInternalServerError, types.PublicHTTPErrorTypeGeneric, http.StatusText(http.StatusInternalServerError))
		httpErr.Internal = err
	}

	code := int(*httpErr.Code)
	log := util.LogFromEchoContext(c)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("Request failed")
	} else {
		log.Debug().Err(err).Int("status", code).Msg("Request rejected")
	}

	var resErr error
	if c.Request().Method == http.MethodHead {
		resErr = c.NoContent(code)
	} else {
		resErr = c.JSON(code, httpErr.PublicHTTPError)
	}

	if resErr != nil {
		log.Error().Err(resErr).AnErr("http_err", err).Msg("Failed to render error response")
	}
}
