package walletkeys

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/labstack/echo/v4"
)

func PostLookupPubRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1WalletKeys.POST("/lookup/pub", postLookupPubHandler(s))
}

func postLookupPubHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var body types.PostLookupPubPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		if _, err := authenticateRequester(c, s, body.RequesterID, body.RequesterSecret); err != nil {
			return err
		}

		issued, err := s.Lookup.IsIssuedPublicKey(ctx, *body.Pub)
		if err != nil {
			return err
		}

		return util.ValidateAndReturn(c, http.StatusOK, &types.LookupPubResponse{
			IsWalletKey: swag.Bool(issued),
			Pub:         body.Pub,
		})
	}
}
