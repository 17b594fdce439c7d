package walletkeys

import (
	"net/http"

	"github.com/go-openapi/swag"
	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/types"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/labstack/echo/v4"
)

func PostProvisionWalletKeyRoute(s *api.Server) *echo.Route {
	return s.Router.APIV1WalletKeys.POST("", postProvisionWalletKeyHandler(s))
}

func postProvisionWalletKeyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		log := util.LogFromContext(ctx)

		var body types.PostProvisionWalletKeyPayload
		if err := util.BindAndValidateBody(c, &body); err != nil {
			return err
		}

		requesterID, err := authenticateRequester(c, s, body.RequesterID, body.RequesterSecret)
		if err != nil {
			return err
		}

		res, err := s.Provision.Provision(ctx, key.ProvisionRequest{
			Coin:                     *body.Coin,
			CustomerID:               *body.CustomerID,
			OwnerEmail:               body.UserEmail.String(),
			NotificationURL:          body.NotificationURL.String(),
			CustomMetadata:           body.Custom,
			DisableNotificationEmail: body.DisableNotificationEmail,
		})
		if err != nil {
			log.Debug().Err(err).Str("coin", *body.Coin).Str("requester_id", requesterID).Msg("Failed to provision wallet key")
			return toHTTPError(err)
		}

		log.Info().
			Str("coin", *body.Coin).
			Str("requester_id", requesterID).
			Str("master_key_id", res.MasterKey.ID).
			Uint32("path", res.WalletKey.DerivationPath).
			Msg("Provisioned wallet key")

		response := &types.ProvisionWalletKeyResponse{
			Custom:       body.Custom,
			MasterKey:    swag.String(res.MasterKey.PublicKey),
			MasterKeySig: res.MasterKey.Signature,
			Path:         swag.Int64(int64(res.WalletKey.DerivationPath)),
			Pub:          swag.String(res.WalletKey.PublicKey),
			UserEmail:    swag.String(res.WalletKey.OwnerEmail),
		}

		return util.ValidateAndReturn(c, http.StatusCreated, response)
	}
}
