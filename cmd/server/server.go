package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/api/router"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/persistence"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

type flags struct {
	migrate bool
}

func New() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the key pool HTTP server",
		Run: func(_ *cobra.Command, _ []string) {
			run(f)
		},
	}

	cmd.Flags().BoolVarP(&f.migrate, "migrate", "m", false, "Apply pending database migrations before starting")

	return cmd
}

func run(f flags) {
	cfg := config.DefaultServiceConfigFromEnv()

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	if f.migrate {
		if s.DB == nil {
			log.Fatal().Str("pool_backend", cfg.Pool.Backend).Msg("Cannot migrate, the configured pool backend has no database")
		}

		version, err := persistence.Migrate(s.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
		log.Info().Uint("version", version).Msg("Applied migrations")
	}

	router.Init(s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if errs := s.Shutdown(shutdownCtx); len(errs) > 0 {
		log.Fatal().Errs("shutdownErrors", errs).Msg("Failed to gracefully shut down server")
	}
}
