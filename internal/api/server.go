package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/dropbox/godropbox/time2"
	"github.com/kashguard/go-keypool/internal/auth"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/infra/provision"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/mailer"
	"github.com/kashguard/go-keypool/internal/metrics"
	"github.com/kashguard/go-keypool/internal/util"
	"github.com/kashguard/go-keypool/internal/util/cert"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	// Import postgres driver for database/sql package
	_ "github.com/lib/pq"
)

type Router struct {
	Routes          []*echo.Route
	Root            *echo.Group
	Management      *echo.Group
	APIV1Auth       *echo.Group
	APIV1WalletKeys *echo.Group
}

// Server is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized after the InitNewServer* call.
// Components labeled as `server:"optional"` may stay nil depending on the configured pool backend.
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type Server struct {
	// skip wire:
	// -> initialized with router.Init(s) function
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`

	Config    config.Server
	DB        *sql.DB       `server:"optional"`
	Redis     *redis.Client `server:"optional"`
	Mailer    *mailer.Mailer
	Clock     time2.Clock
	Metrics   *metrics.Service
	Auth      *auth.RequesterAuthenticator
	Store     storage.Store
	Provision *provision.Service
	Lookup    *key.LookupService
}

// newServerWithComponents is used by wire to initialize the server components.
// Components not listed here won't be handled by wire and should be initialized separately.
// Components which shouldn't be handled must be labeled `wire:"-"` in Server struct.
func newServerWithComponents(
	cfg config.Server,
	db *sql.DB,
	rdb *redis.Client,
	mail *mailer.Mailer,
	clock time2.Clock,
	metrics *metrics.Service,
	authenticator *auth.RequesterAuthenticator,
	store storage.Store,
	provisionService *provision.Service,
	lookup *key.LookupService,
) *Server {
	return &Server{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Mailer:    mail,
		Clock:     clock,
		Metrics:   metrics,
		Auth:      authenticator,
		Store:     store,
		Provision: provisionService,
		Lookup:    lookup,
	}
}

func NewServer(config config.Server) *Server {
	s := &Server{
		Config: config,
	}

	return s
}

func (s *Server) Ready() bool {
	if err := util.IsStructInitialized(s); err != nil {
		log.Debug().Err(err).Msg("Server is not fully initialized")
		return false
	}

	return true
}

// Healthy pings the backing stores of the configured pool.
func (s *Server) Healthy(ctx context.Context) error {
	if s.DB != nil {
		if err := s.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
	}

	return nil
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	log.Info().
		Str("listen_address", s.Config.Echo.ListenAddress).
		Str("pool_backend", s.Config.Pool.Backend).
		Int("coins", len(s.Config.Coins)).
		Bool("requester_auth_required", s.Config.RequesterAuth.Required).
		Msg("Starting key pool server")

	if s.Config.Echo.EnableTLS {
		if err := cert.VerifyServerCertificate(s.Config.Echo.TLSCertFile, s.Config.Echo.TLSKeyFile, s.Config.Echo.TLSCACertFile); err != nil {
			return fmt.Errorf("invalid TLS configuration: %w", err)
		}

		if err := s.Echo.StartTLS(s.Config.Echo.ListenAddress, s.Config.Echo.TLSCertFile, s.Config.Echo.TLSKeyFile); err != nil {
			return fmt.Errorf("failed to start echo server: %w", err)
		}

		return nil
	}

	if err := s.Echo.Start(s.Config.Echo.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")
		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	if s.Redis != nil {
		log.Debug().Msg("Closing redis client")
		if err := s.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			log.Error().Err(err).Msg("Failed to close redis client")
			errs = append(errs, err)
		}
	}

	if s.DB != nil {
		log.Debug().Msg("Closing database connection")
		if err := s.DB.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			log.Error().Err(err).Msg("Failed to close database connection")
			errs = append(errs, err)
		}
	}

	return errs
}
