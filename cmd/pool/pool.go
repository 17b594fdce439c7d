package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/kashguard/go-keypool/internal/api"
	"github.com/kashguard/go-keypool/internal/config"
	"github.com/kashguard/go-keypool/internal/infra/key"
	"github.com/kashguard/go-keypool/internal/infra/storage"
	"github.com/kashguard/go-keypool/internal/util/command"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("pool",
		newImportCmd(),
		newStatusCmd(),
	)
}

// masterKeyRecord is one entry of an import file.
type masterKeyRecord struct {
	KeyType   string `json:"keyType"`
	PublicKey string `json:"publicKey"`
	ChainCode string `json:"chainCode,omitempty"`
	Curve     string `json:"curve,omitempty"`
	Signature string `json:"signature,omitempty"`
}

func newImportCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Adds unassigned master keys from a JSON file to the pool",
		Run: func(_ *cobra.Command, _ []string) {
			masters, err := readMasterKeys(file)
			if err != nil {
				log.Fatal().Err(err).Str("file", file).Msg("Failed to read master keys")
			}

			s := initServer()
			defer s.Shutdown(context.Background())

			inserted, err := s.Store.InsertMasterKeys(context.Background(), masters)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to import master keys")
			}

			log.Info().
				Int("read", len(masters)).
				Int("inserted", inserted).
				Int("skipped", len(masters)-inserted).
				Msg("Imported master keys")
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "keys.json", "JSON file holding an array of master keys")

	return cmd
}

func newStatusCmd() *cobra.Command {
	var keyTypes []string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Prints the number of unassigned master keys per key type",
		Run: func(_ *cobra.Command, _ []string) {
			s := initServer()
			defer s.Shutdown(context.Background())

			if len(keyTypes) == 0 {
				keyTypes = configuredKeyTypes(s.Config)
			}

			for _, kt := range keyTypes {
				remaining, err := s.Store.CountUnassigned(context.Background(), kt)
				if err != nil {
					log.Fatal().Err(err).Str("key_type", kt).Msg("Failed to count unassigned master keys")
				}

				fmt.Printf("%s\t%d\n", kt, remaining)
			}
		},
	}

	cmd.Flags().StringSliceVar(&keyTypes, "key-type", nil, "Key types to report (default: every configured key type)")

	return cmd
}

func initServer() *api.Server {
	cfg := config.DefaultServiceConfigFromEnv()
	if cfg.Pool.Backend == config.PoolBackendMemory {
		log.Fatal().Msg("The in-memory pool only lives inside the server process, configure a persistent pool backend")
	}

	s, err := api.InitNewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	return s
}

func readMasterKeys(path string) ([]*storage.MasterKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	var records []masterKeyRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.Wrap(err, "failed to parse file")
	}

	return toMasterKeys(records)
}

func toMasterKeys(records []masterKeyRecord) ([]*storage.MasterKey, error) {
	deriver := key.NewDerivationService()
	masters := make([]*storage.MasterKey, 0, len(records))

	for i, r := range records {
		curve := r.Curve
		if curve == "" {
			curve = config.CurveSecp256k1
		}

		mk := &storage.MasterKey{
			KeyType:   r.KeyType,
			PublicKey: r.PublicKey,
			ChainCode: r.ChainCode,
			Curve:     curve,
			Signature: r.Signature,
		}

		if mk.KeyType == "" {
			return nil, errors.Errorf("entry %d: key type is required", i)
		}
		if err := deriver.ValidateMasterKey(mk); err != nil {
			return nil, errors.Wrapf(err, "entry %d", i)
		}

		masters = append(masters, mk)
	}

	return masters, nil
}

func configuredKeyTypes(cfg config.Server) []string {
	seen := make(map[string]bool)
	var keyTypes []string

	for _, c := range cfg.Coins {
		if !seen[c.KeyType] {
			seen[c.KeyType] = true
			keyTypes = append(keyTypes, c.KeyType)
		}
	}

	sort.Strings(keyTypes)

	return keyTypes
}
