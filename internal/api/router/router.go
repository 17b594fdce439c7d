package router

import (
	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/api/handlers"
	"github.com/kashguard/go-keypool/internal/api/middleware"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

func Init(s *api.Server) {
	s.Echo = echo.New()

	s.Echo.Debug = s.Config.Echo.Debug
	s.Echo.HideBanner = true
	s.Echo.Logger.SetOutput(&echoLogger{level: s.Config.Logger.RequestLevel})
	s.Echo.HTTPErrorHandler = HTTPErrorHandler

	s.Echo.Pre(echoMiddleware.RemoveTrailingSlash())

	s.Echo.Use(echoMiddleware.Recover())
	s.Echo.Use(echoMiddleware.RequestID())
	s.Echo.Use(middleware.Logger(middleware.LoggerConfigFromServer(s.Config.Logger)))
	s.Echo.Use(echoMiddleware.BodyLimit("64K"))

	s.Router = &api.Router{
		Routes: nil, // will be populated by handlers.AttachAllRoutes(s)

		// Unsecured base group available at /**
		Root: s.Echo.Group(""),

		// Management endpoints, guarded by the management secret, available at /-/**
		Management: s.Echo.Group("/-", middleware.ManagementSecret(s.Config.Management.Secret)),

		// Requester token exchange available at /api/v1/auth/**
		APIV1Auth: s.Echo.Group("/api/v1/auth"),

		// Wallet key provisioning and lookups available at /api/v1/wallet-keys/**,
		// requester credentials are checked per handler since they may arrive in the body
		APIV1WalletKeys: s.Echo.Group("/api/v1/wallet-keys"),
	}

	handlers.AttachAllRoutes(s)
}
