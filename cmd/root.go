package cmd

import (
	"os"

	"github.com/kashguard/go-keypool/cmd/cert"
	"github.com/kashguard/go-keypool/cmd/db"
	"github.com/kashguard/go-keypool/cmd/pool"
	"github.com/kashguard/go-keypool/cmd/server"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "keypool",
	Short: "Issues wallet public keys from a pool of pre-generated master keys",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		configureLogger(config.DefaultServiceConfigFromEnv().Logger)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		server.New(),
		db.New(),
		pool.New(),
		cert.New(),
	)
}

func configureLogger(cfg config.LoggerServer) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(cfg.Level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.TimeFormat = "15:04:05"
		}))
	}
}
