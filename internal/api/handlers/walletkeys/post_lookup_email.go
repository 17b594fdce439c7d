package walletkeys

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/labstack/echo/v4"
)

func PostLookupEmailRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1WalletKeys.POST("/lookup/email", postLookupEmailHandler(s))
}

func postLookupEmailHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostLookupEmailPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if _, err := authenticateRequester(c, s, body.RequesterID, body.RequesterSecret); err != nil {
			return err
		}

		email := body.Email.String()
		known, err := s.Lookup.IsKnownOwner(ctx, email)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.LookupEmailResponse{
			Email:  swag.String(email),
			IsUser: swag.Bool(known),
		})
	}
}
