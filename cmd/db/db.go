package db

import (
	"context"
	"time"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/persistence"
	"github.com/kashguard/go-keypool/internal/util/command"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("db",
		newMigrate(),
		newSeed(),
	)
}

func newMigrate() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Applies the embedded database migrations",
		Run: func(_ *cobra.Command, _ []string) {
			cfg := config.DefaultServiceConfigFromEnv()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			db, err := persistence.NewDB(ctx, cfg.Database)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to database")
			}
			defer db.Close()

			if down {
				if err := persistence.MigrateDown(db); err != nil {
					log.Fatal().Err(err).Msg("Failed to roll back migrations")
				}
				log.Info().Msg("Rolled back all migrations")
				return
			}

			version, err := persistence.Migrate(db)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}

			log.Info().Uint("version", version).Msg("Applied migrations")
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back every applied migration instead")

	return cmd
}

func newSeed() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fills the pool with freshly generated demo master keys for every configured coin",
		Run: func(_ *cobra.Command, _ []string) {
			cfg := config.DefaultServiceConfigFromEnv()
			if cfg.Pool.Backend == config.PoolBackendMemory {
				log.Fatal().Msg("Seeding the in-memory pool has no effect, configure a persistent pool backend")
			}

			s, err := api.InitNewServer(cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to initialize server")
			}
			defer s.Shutdown(context.Background())

			ctx := context.Background()
			deriver := key.NewDerivationService()
			seeded := make(map[string]bool)

			for _, coin := range cfg.Coins {
				if seeded[coin.KeyType] {
					continue
				}
				seeded[coin.KeyType] = true

				masters, err := deriver.GenerateMasterKeys(key.GenerateOptions{
					KeyType:  coin.KeyType,
					Curve:    coin.Curve,
					Extended: coin.Curve == config.CurveSecp256k1,
					Count:    count,
				})
				if err != nil {
					log.Fatal().Err(err).Str("key_type", coin.KeyType).Msg("Failed to generate master keys")
				}

				inserted, err := s.Store.InsertMasterKeys(ctx, masters)
				if err != nil {
					log.Fatal().Err(err).Str("key_type", coin.KeyType).Msg("Failed to insert master keys")
				}

				log.Info().Str("key_type", coin.KeyType).Int("inserted", inserted).Msg("Seeded master keys")
			}
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 20, "Master keys to generate per key type")

	return cmd
}
