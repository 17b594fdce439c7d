package cert

import (
	"time"

	"github.com/kashguard/go-keypool/internal/util/cert"
	"github.com/kashguard/go-keypool/internal/util/command"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("cert",
		newGenCmd(),
	)
}

func newGenCmd() *cobra.Command {
	var outDir string
	var hostnames []string

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a development CA and server certificate for the HTTPS listener",
		Run: func(_ *cobra.Command, _ []string) {
			if err := cert.GenerateDevelopmentCertificates(outDir, hostnames, time.Now()); err != nil {
				log.Fatal().Err(err).Msg("Failed to generate certificates")
			}

			log.Info().Str("dir", outDir).Strs("hosts", hostnames).Msg("Certificates generated successfully")
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "certs", "Output directory for certificates")
	cmd.Flags().StringSliceVar(&hostnames, "host", []string{"localhost", "127.0.0.1"}, "Hostnames/IPs for the server certificate")

	return cmd
}
