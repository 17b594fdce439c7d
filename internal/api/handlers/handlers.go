package handlers

import (
	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/api/handlers/auth"
	"github.com/kashguard/go-keypool/internal/api/handlers/common"
	"github.com/kashguard/go-keypool/internal/api/handlers/walletkeys"
	"github.com/labstack/echo/v4"
)

func AttachAllRoutes(s *api.Server) {
	s.Router.Routes = []*echo.Route{
		auth.PostTokenRoute(s),
		common.GetHealthyRoute(s),
		common.GetMetricsRoute(s),
		common.GetReadyRoute(s),
		walletkeys.PostLookupEmailRoute(s),
		walletkeys.PostLookupPubRoute(s),
		walletkeys.PostProvisionWalletKeyRoute(s),
	}
}
