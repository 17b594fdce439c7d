package auth

import (
	"net/http"

	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/api/httperrors"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/labstack/echo/v4"
)

const tokenTypeBearer = "bearer"

func PostTokenRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1Auth.POST("/token", postTokenHandler(s))
}

func postTokenHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		var body types.PostRequesterTokenPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		res, err := s.Auth.IssueToken(ctx, *body.RequesterID, *body.RequesterSecret)
		if err != nil {
			log.Debug().Err(err).Str("requester_id", *body.RequesterID).Msg("Refused to issue requester token")
			return httperrors.ErrUnauthorizedRequester.Wrap(err)
		}

		validUntil := strfmt.DateTime(res.ValidUntil)
		expiresIn := int64(res.ValidUntil.Sub(s.Clock.Now()).Seconds())

		return util.ValidateAndReturn(c, http.StatusOK, &types.RequesterTokenResponse{
			AccessToken: swag.String(res.Token),
			ExpiresIn:   swag.Int64(expiresIn),
			TokenType:   swag.String(tokenTypeBearer),
			ValidUntil:  &validUntil,
		})
	}
}
