package walletkeys

import (
	"strings"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/api/httperrors"
	"github.com/kashguard/go-keypool/internal/auth"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/labstack/echo/v4"
)

const bearerPrefix = "bearer "

// authenticateRequester checks the body credentials or, if absent, the bearer token of the request.
func authenticateRequester(c echo.Context, s *api.Server, requesterID, requesterSecret string) (string, error) {
	creds := auth.Credentials{
		RequesterID:     requesterID,
		RequesterSecret: requesterSecret,
	}

	if creds.RequesterID == "" && creds.RequesterSecret == "" {
		creds.BearerToken = bearerToken(c)
	}

	id, err := s.Auth.Authenticate(c.Request().Context(), creds)
	if err != nil {
		util.LogFromEchoContext(c).Debug().Err(err).Str("requester_id", requesterID).Msg("Rejected requester")
		return "", httperrors.ErrUnauthorizedRequester.Wrap(err)
	}

	return id, nil
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(header[len(bearerPrefix):])
}
